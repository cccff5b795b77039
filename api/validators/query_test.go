package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/pagination"
)

func TestParsePageParams(t *testing.T) {
	params, err := ParsePageParams(httptest.NewRequest(http.MethodGet, "/history?cursor=%20abc%20", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != pagination.DefaultLimit || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}

	cases := map[string]string{
		"non numeric":   "/history?limit=ten",
		"zero":          "/history?limit=0",
		"above ceiling": "/history?limit=101",
	}
	for name, target := range cases {
		_, err := ParsePageParams(httptest.NewRequest(http.MethodGet, target, nil))
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		details, _ := pkgerrors.As(err).Details().(map[string]any)
		if details["field"] != "limit" {
			t.Fatalf("%s: expected limit field, got %v", name, details)
		}
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("programId", id.String())
	routeCtx.URLParams.Add("rewardId", "nope")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	got, err := ParseUUIDParam(req, "programId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := ParseUUIDParam(req, "rewardId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseUUIDFieldRejectsMalformedBodyValue(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUIDField("customer_id", " "+id.String()+" ")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	for _, raw := range []string{"", "not-a-uuid", "1234"} {
		_, err := ParseUUIDField("reward_id", raw)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%q: expected validation error, got %v", raw, err)
		}
		details, _ := pkgerrors.As(err).Details().(map[string]any)
		if details["field"] != "reward_id" {
			t.Fatalf("%q: expected reward_id field, got %v", raw, details)
		}
	}
}
