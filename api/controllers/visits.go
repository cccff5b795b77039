package controllers

import (
	"net/http"

	"github.com/angelmondragon/visitrewards-backend/api/middleware"
	"github.com/angelmondragon/visitrewards-backend/api/responses"
	"github.com/angelmondragon/visitrewards-backend/api/validators"
	"github.com/angelmondragon/visitrewards-backend/internal/visits"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

type recordVisitRequest struct {
	CustomerID  string `json:"customer_id" validate:"required,uuid"`
	SelfCheckIn bool   `json:"self_check_in"`
}

// RecordVisit handles a scan. Self check-ins carry no staff actor.
func RecordVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "visit service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordVisitRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := validators.ParseUUIDField("customer_id", body.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := visits.RecordVisitInput{
			CustomerID: customerID,
			ProgramID:  programID,
			ActorRole:  middleware.RoleFromContext(r.Context()),
		}
		if !body.SelfCheckIn {
			actorID, ok := middleware.ActorUUIDFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff actor missing"))
				return
			}
			input.StaffActorID = &actorID
		}

		result, err := svc.RecordVisit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
