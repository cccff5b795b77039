package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/visitrewards-backend/api/middleware"
	"github.com/angelmondragon/visitrewards-backend/api/responses"
	"github.com/angelmondragon/visitrewards-backend/api/validators"
	"github.com/angelmondragon/visitrewards-backend/internal/redemptions"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

const requestTokenHeader = "X-Request-Token"

type redeemRequest struct {
	CustomerID   string `json:"customer_id" validate:"required,uuid"`
	RewardID     string `json:"reward_id" validate:"required,uuid"`
	RequestToken string `json:"request_token" validate:"max=128"`
}

// Redeem spends visits on a reward. The request token may come from the body
// or the X-Request-Token header; the body wins.
func Redeem(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff actor missing"))
			return
		}

		var body redeemRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := validators.ParseUUIDField("customer_id", body.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rewardID, err := validators.ParseUUIDField("reward_id", body.RewardID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := redemptions.RedeemInput{
			CustomerID:   customerID,
			ProgramID:    programID,
			RewardID:     rewardID,
			StaffActorID: actorID,
			ActorRole:    middleware.RoleFromContext(r.Context()),
		}
		token := strings.TrimSpace(body.RequestToken)
		if token == "" {
			token = strings.TrimSpace(r.Header.Get(requestTokenHeader))
		}
		if token != "" {
			input.RequestToken = &token
		}

		result, err := svc.Redeem(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
