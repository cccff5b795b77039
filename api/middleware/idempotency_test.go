package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

const visitsPath = "/api/v1/programs/7b1e4c1e-0000-4000-8000-000000000001/visits"

func TestReplayWindowSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"visit", http.MethodPost, visitsPath, scanReplayTTL, true},
		{"redemption", http.MethodPost, "/api/v1/programs/abc/redemptions", scanReplayTTL, true},
		{"create reward", http.MethodPost, "/api/v1/programs/abc/rewards", catalogReplayTTL, true},
		{"gift sync all", http.MethodPost, "/api/v1/admin/gift-sync", catalogReplayTTL, true},
		{"gift sync one", http.MethodPost, "/api/v1/admin/programs/abc/gift-sync", catalogReplayTTL, true},
		{"update reward", http.MethodPatch, "/api/v1/programs/abc/rewards/def", 0, false},
		{"read", http.MethodGet, "/api/v1/programs/abc/rewards", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := replayWindow(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", resp.Code)
	}

	replay := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	if resp.Header().Get(ReplayedHeader) != "" {
		t.Fatalf("first response must not carry the replay marker")
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"diff"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	assertErrorCode(t, resp, pkgerrors.CodeIdempotency)
}

func TestIdempotencyMiddlewareRejectsRetryWhileInFlight(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)

	var retry *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if retry == nil {
			retry = httptest.NewRecorder()
			again := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
			again.Header.Set(IdempotencyKeyHeader, "inflight")
			mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("retry must not reach the handler while the original runs")
			})).ServeHTTP(retry, again)
		}
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
	req.Header.Set(IdempotencyKeyHeader, "inflight")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected original 201 got %d", resp.Code)
	}
	if retry.Code != http.StatusConflict {
		t.Fatalf("expected in-flight retry 409 got %d", retry.Code)
	}
	assertErrorCode(t, retry, pkgerrors.CodeIdempotency)
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
		req.Header.Set(IdempotencyKeyHeader, "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected the retry after a 503 to run again, handler ran %d times", calls)
	}
	if len(store.data) != 1 {
		t.Fatalf("expected the successful retry to be stored, got %d records", len(store.data))
	}
}

func TestIdempotencyMiddlewareScopesKeysByActor(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, actor := range []string{"staff-a", "staff-b"} {
		req := httptest.NewRequest(http.MethodPost, visitsPath, strings.NewReader(`{"foo":"bar"}`))
		req.Header.Set(IdempotencyKeyHeader, "shared")
		req = req.WithContext(context.WithValue(req.Context(), ctxActorID, actor))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected distinct actors not to share a key, handler ran %d times", calls)
	}
}

func assertErrorCode(t *testing.T, resp *httptest.ResponseRecorder, want pkgerrors.Code) {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(want) {
		t.Fatalf("expected error code %s got %s", want, payload.Error.Code)
	}
}
