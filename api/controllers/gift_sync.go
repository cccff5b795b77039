package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/api/responses"
	"github.com/angelmondragon/visitrewards-backend/api/validators"
	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

// GiftReconciler is the reconcile surface exposed to operators.
type GiftReconciler interface {
	Reconcile(ctx context.Context) (giftsync.Report, error)
	ReconcileProgram(ctx context.Context, programID uuid.UUID) (giftsync.Report, error)
}

// GiftSyncAll reconciles every gift-enabled program. Partial failures still
// return the report alongside the error.
func GiftSyncAll(svc GiftReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift sync unavailable"))
			return
		}
		report, err := svc.Reconcile(r.Context())
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gift sync incomplete")
			}
			responses.WriteError(r.Context(), logg, w, typed.WithDetails(map[string]any{"report": report}))
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func GiftSyncProgram(svc GiftReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift sync unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.ReconcileProgram(r.Context(), programID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
