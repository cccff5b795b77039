package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/visitrewards-backend/api/controllers"
	"github.com/angelmondragon/visitrewards-backend/api/middleware"
	"github.com/angelmondragon/visitrewards-backend/internal/memberships"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/internal/redemptions"
	"github.com/angelmondragon/visitrewards-backend/internal/visits"
	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/visitrewards-backend/pkg/redis"
)

// Deps carries the services and infrastructure the HTTP surface needs.
type Deps struct {
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	ProgramAccess middleware.ProgramAccess
	Metrics       prometheus.Gatherer
	Visits        visits.Service
	Redemptions   redemptions.Service
	Catalog       programs.Service
	Memberships   memberships.Service
	GiftSync      controllers.GiftReconciler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	access := deps.ProgramAccess
	if access == nil {
		access = middleware.ClaimsProgramAccess{}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/programs/{programId}", func(r chi.Router) {
			r.Use(middleware.ProgramScope(access, logg))

			r.Post("/visits", controllers.RecordVisit(deps.Visits, logg))
			r.Post("/redemptions", controllers.Redeem(deps.Redemptions, logg))

			r.Get("/rewards", controllers.ListRewards(deps.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCatalogManager(logg))
				r.Post("/rewards", controllers.CreateReward(deps.Catalog, logg))
				r.Patch("/rewards/{rewardId}", controllers.UpdateReward(deps.Catalog, logg))
				r.Patch("/gift", controllers.UpdateGiftSettings(deps.Catalog, logg))
			})

			r.Route("/members/{customerId}", func(r chi.Router) {
				r.Get("/", controllers.MemberSnapshot(deps.Memberships, logg))
				r.Get("/history", controllers.MemberHistory(deps.Memberships, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleSystem))
			r.Post("/gift-sync", controllers.GiftSyncAll(deps.GiftSync, logg))
			r.With(middleware.ProgramScope(access, logg)).
				Post("/programs/{programId}/gift-sync", controllers.GiftSyncProgram(deps.GiftSync, logg))
		})
	})

	return r
}
