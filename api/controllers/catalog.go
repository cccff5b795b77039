package controllers

import (
	"net/http"

	"github.com/angelmondragon/visitrewards-backend/api/responses"
	"github.com/angelmondragon/visitrewards-backend/api/validators"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

type createRewardRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=120"`
	Description string `json:"description" validate:"max=500"`
	CostVisits  int    `json:"cost_visits" validate:"required,min=1"`
	Active      *bool  `json:"active"`
}

type updateRewardRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	CostVisits  *int    `json:"cost_visits" validate:"omitempty,min=1"`
	Active      *bool   `json:"active"`
}

type giftSettingsRequest struct {
	Enabled *bool   `json:"enabled"`
	Text    *string `json:"text" validate:"omitempty,max=120"`
}

// ListRewards returns the active catalog and gift settings.
func ListRewards(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cfg, err := svc.Catalog(r.Context(), programID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

func CreateReward(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createRewardRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reward, err := svc.CreateReward(r.Context(), programID, programs.CreateRewardInput{
			Name:        validators.SanitizeString(body.Name, 120),
			Description: validators.SanitizeString(body.Description, 500),
			CostVisits:  body.CostVisits,
			Active:      body.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reward)
	}
}

func UpdateReward(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rewardID, err := validators.ParseUUIDParam(r, "rewardId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateRewardRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reward, err := svc.UpdateReward(r.Context(), programID, rewardID, programs.UpdateRewardInput{
			Name:        body.Name,
			Description: body.Description,
			CostVisits:  body.CostVisits,
			Active:      body.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reward)
	}
}

// UpdateGiftSettings toggles the first-visit gift and reports the reconcile
// it triggered.
func UpdateGiftSettings(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body giftSettingsRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Enabled == nil && body.Text == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "enabled or text is required"))
			return
		}
		result, err := svc.UpdateGiftSettings(r.Context(), programID, programs.UpdateGiftSettingsInput{
			Enabled: body.Enabled,
			Text:    body.Text,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
