package controllers

import (
	"net/http"

	"github.com/angelmondragon/visitrewards-backend/api/responses"
	"github.com/angelmondragon/visitrewards-backend/api/validators"
	"github.com/angelmondragon/visitrewards-backend/internal/memberships"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

// MemberSnapshot returns balances, eligible rewards and the next goal.
func MemberSnapshot(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Snapshot(r.Context(), programID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// MemberHistory pages through visits or redemptions, newest first.
func MemberHistory(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}
		programID, err := validators.ParseUUIDParam(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), memberships.HistoryInput{
			ProgramID:  programID,
			CustomerID: customerID,
			Kind:       memberships.HistoryKind(validators.QueryString(r, "kind")),
			Page:       page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}
