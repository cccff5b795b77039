package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
)

type testReconciler struct {
	report giftsync.Report
	err    error
	last   uuid.UUID
}

func (r *testReconciler) Reconcile(ctx context.Context) (giftsync.Report, error) {
	return r.report, r.err
}

func (r *testReconciler) ReconcileProgram(ctx context.Context, programID uuid.UUID) (giftsync.Report, error) {
	r.last = programID
	return r.report, r.err
}

func TestGiftSyncAll(t *testing.T) {
	svc := &testReconciler{report: giftsync.Report{Examined: 3, Created: 1}}
	resp := httptest.NewRecorder()
	GiftSyncAll(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGiftSyncAllPartialFailure(t *testing.T) {
	svc := &testReconciler{
		report: giftsync.Report{Examined: 2, Created: 1},
		err:    errors.New("program x: db down"),
	}
	resp := httptest.NewRecorder()
	GiftSyncAll(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	env := decodeError(t, resp)
	report, ok := env.Error.Details["report"].(map[string]any)
	if !ok || report["created"] != float64(1) {
		t.Fatalf("expected report in details, got %+v", env.Error.Details)
	}
}

func TestGiftSyncProgram(t *testing.T) {
	programID := uuid.New()
	svc := &testReconciler{}
	req := addRouteParam(httptest.NewRequest(http.MethodPost, "/", nil), "programId", programID.String())
	resp := httptest.NewRecorder()
	GiftSyncProgram(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.last != programID {
		t.Fatalf("unexpected program %s", svc.last)
	}
}
