package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
	"github.com/angelmondragon/visitrewards-backend/internal/memberships"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/internal/redemptions"
	"github.com/angelmondragon/visitrewards-backend/internal/visits"
	pkgAuth "github.com/angelmondragon/visitrewards-backend/pkg/auth"
	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubVisitService struct{}

func (stubVisitService) RecordVisit(ctx context.Context, input visits.RecordVisitInput) (*visits.VisitResult, error) {
	return &visits.VisitResult{}, nil
}

type stubRedemptionService struct{}

func (stubRedemptionService) Redeem(ctx context.Context, input redemptions.RedeemInput) (*redemptions.RedeemResult, error) {
	return &redemptions.RedeemResult{}, nil
}

func (stubRedemptionService) Eligible(ctx context.Context, customerID, programID uuid.UUID) (*redemptions.EligibleResult, error) {
	return &redemptions.EligibleResult{}, nil
}

type stubCatalogService struct{}

func (stubCatalogService) Catalog(ctx context.Context, programID uuid.UUID) (*programs.ProgramConfig, error) {
	return &programs.ProgramConfig{ProgramID: programID, Active: true}, nil
}

func (stubCatalogService) CreateReward(ctx context.Context, programID uuid.UUID, input programs.CreateRewardInput) (*programs.RewardDTO, error) {
	return &programs.RewardDTO{ID: uuid.New(), ProgramID: programID, Name: input.Name, CostVisits: input.CostVisits}, nil
}

func (stubCatalogService) UpdateReward(ctx context.Context, programID, rewardID uuid.UUID, input programs.UpdateRewardInput) (*programs.RewardDTO, error) {
	return &programs.RewardDTO{ID: rewardID, ProgramID: programID}, nil
}

func (stubCatalogService) UpdateGiftSettings(ctx context.Context, programID uuid.UUID, input programs.UpdateGiftSettingsInput) (*programs.GiftSettingsResult, error) {
	return &programs.GiftSettingsResult{ProgramID: programID}, nil
}

type stubMembershipService struct{}

func (stubMembershipService) Snapshot(ctx context.Context, programID, customerID uuid.UUID) (*memberships.Snapshot, error) {
	return &memberships.Snapshot{}, nil
}

func (stubMembershipService) History(ctx context.Context, input memberships.HistoryInput) (*memberships.HistoryPage, error) {
	return &memberships.HistoryPage{Kind: memberships.HistoryVisits}, nil
}

type stubReconciler struct{}

func (stubReconciler) Reconcile(ctx context.Context) (giftsync.Report, error) {
	return giftsync.Report{}, nil
}

func (stubReconciler) ReconcileProgram(ctx context.Context, programID uuid.UUID) (giftsync.Report, error) {
	return giftsync.Report{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "idp"},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, Deps{
		DB:          stubPinger{},
		Redis:       stubPinger{},
		Metrics:     prometheus.NewRegistry(),
		Visits:      stubVisitService{},
		Redemptions: stubRedemptionService{},
		Catalog:     stubCatalogService{},
		Memberships: stubMembershipService{},
		GiftSync:    stubReconciler{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole, programIDs ...uuid.UUID) string {
	t.Helper()
	now := time.Now()
	claims := pkgAuth.StaffClaims{
		ProgramIDs: programIDs,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func serve(router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	if resp := serve(router, http.MethodGet, "/health/live", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/health/ready", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(testConfig())
	if resp := serve(router, http.MethodGet, "/metrics", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}

func TestProgramRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := serve(router, http.MethodGet, "/api/v1/programs/"+uuid.NewString()+"/rewards", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestProgramRoutesEnforceProgramScope(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	programID := uuid.New()

	foreign := buildToken(t, cfg, enums.ActorRoleStaff, uuid.New())
	resp := serve(router, http.MethodGet, "/api/v1/programs/"+programID.String()+"/rewards", foreign, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign program got %d", resp.Code)
	}

	own := buildToken(t, cfg, enums.ActorRoleStaff, programID)
	resp = serve(router, http.MethodGet, "/api/v1/programs/"+programID.String()+"/rewards", own, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for own program got %d", resp.Code)
	}
}

func TestStaffCanScanAndRedeem(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	programID := uuid.New()
	token := buildToken(t, cfg, enums.ActorRoleStaff, programID)

	visitBody := `{"customer_id":"` + uuid.NewString() + `"}`
	resp := serve(router, http.MethodPost, "/api/v1/programs/"+programID.String()+"/visits", token, visitBody)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for visit got %d: %s", resp.Code, resp.Body.String())
	}

	redeemBody := `{"customer_id":"` + uuid.NewString() + `","reward_id":"` + uuid.NewString() + `"}`
	resp = serve(router, http.MethodPost, "/api/v1/programs/"+programID.String()+"/redemptions", token, redeemBody)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for redemption got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCatalogWritesRequireOwner(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	programID := uuid.New()
	body := `{"name":"Coffee","cost_visits":5}`
	target := "/api/v1/programs/" + programID.String() + "/rewards"

	staff := buildToken(t, cfg, enums.ActorRoleStaff, programID)
	if resp := serve(router, http.MethodPost, target, staff, body); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff got %d", resp.Code)
	}

	owner := buildToken(t, cfg, enums.ActorRoleOwner, programID)
	if resp := serve(router, http.MethodPost, target, owner, body); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for owner got %d: %s", resp.Code, resp.Body.String())
	}

	gift := "/api/v1/programs/" + programID.String() + "/gift"
	if resp := serve(router, http.MethodPatch, gift, owner, `{"enabled":true}`); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for gift settings got %d", resp.Code)
	}
}

func TestMemberRoutes(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	programID := uuid.New()
	token := buildToken(t, cfg, enums.ActorRoleStaff, programID)
	base := "/api/v1/programs/" + programID.String() + "/members/" + uuid.NewString()

	if resp := serve(router, http.MethodGet, base, token, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for snapshot got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, base+"/history?kind=visits", token, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for history got %d", resp.Code)
	}
}

func TestAdminGiftSyncRequiresSystemRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	programID := uuid.New()

	owner := buildToken(t, cfg, enums.ActorRoleOwner, programID)
	if resp := serve(router, http.MethodPost, "/api/v1/admin/gift-sync", owner, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for owner got %d", resp.Code)
	}

	system := buildToken(t, cfg, enums.ActorRoleSystem)
	if resp := serve(router, http.MethodPost, "/api/v1/admin/gift-sync", system, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for system got %d", resp.Code)
	}
	target := "/api/v1/admin/programs/" + programID.String() + "/gift-sync"
	if resp := serve(router, http.MethodPost, target, system, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for program sync got %d", resp.Code)
	}
}
