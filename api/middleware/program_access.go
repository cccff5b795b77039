package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/api/responses"
	pkgAuth "github.com/angelmondragon/visitrewards-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

// ProgramAccess decides whether an authenticated actor operates a program.
type ProgramAccess interface {
	CanAccess(ctx context.Context, claims *pkgAuth.StaffClaims, programID uuid.UUID) (bool, error)
}

// ClaimsProgramAccess trusts the program list carried in the token.
type ClaimsProgramAccess struct{}

func (ClaimsProgramAccess) CanAccess(_ context.Context, claims *pkgAuth.StaffClaims, programID uuid.UUID) (bool, error) {
	return claims.CanAccessProgram(programID), nil
}

// ProgramScope rejects requests whose {programId} the caller does not operate.
func ProgramScope(access ProgramAccess, logg *logger.Logger) func(http.Handler) http.Handler {
	if access == nil {
		access = ClaimsProgramAccess{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			programID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "programId")))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid program id"))
				return
			}
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			ok, err := access.CanAccess(r.Context(), claims, programID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check program access"))
				return
			}
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "program access denied"))
				return
			}

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithProgramID(ctx, programID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
