package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/visitrewards-backend/pkg/auth"
	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "idp"}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsForeignSecret(t *testing.T) {
	token := mintTestToken(t, config.JWTConfig{Secret: "other", Issuer: "idp"}, enums.ActorRoleStaff)
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	program := uuid.New()
	token := mintTestToken(t, testJWT, enums.ActorRoleOwner, program)

	var captured struct {
		actor  string
		role   enums.ActorRole
		access bool
	}
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.actor = ActorIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.access = ClaimsFromContext(r.Context()).CanAccessProgram(program)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.actor == "" {
		t.Fatal("expected actor id in context")
	}
	if captured.role != enums.ActorRoleOwner {
		t.Fatalf("expected role owner got %s", captured.role)
	}
	if !captured.access {
		t.Fatal("expected program access from claims")
	}
}

func TestRequireCatalogManager(t *testing.T) {
	handler := RequireCatalogManager(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for role, want := range map[enums.ActorRole]int{
		enums.ActorRoleStaff:  http.StatusForbidden,
		enums.ActorRoleOwner:  http.StatusOK,
		enums.ActorRoleSystem: http.StatusOK,
	} {
		claims := testClaims(role)
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &claims))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("role %s: expected %d got %d", role, want, resp.Code)
		}
	}
}

func testClaims(role enums.ActorRole, programs ...uuid.UUID) pkgAuth.StaffClaims {
	now := time.Now().UTC()
	return pkgAuth.StaffClaims{
		ProgramIDs: programs,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "idp",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.ActorRole, programs ...uuid.UUID) string {
	t.Helper()
	claims := testClaims(role, programs...)
	claims.Issuer = cfg.Issuer
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := bearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAuthFailsClosedWithoutSecret(t *testing.T) {
	handler := Auth(config.JWTConfig{Issuer: "idp"}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a verifier")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
