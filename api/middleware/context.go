package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/visitrewards-backend/pkg/auth"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

type contextKey string

const (
	ctxActorID contextKey = "staff_actor_id"
	ctxRole    contextKey = "actor_role"
	ctxClaims  contextKey = "staff_claims"
)

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// ClaimsFromContext returns the verified token claims, or nil outside Auth.
func ClaimsFromContext(ctx context.Context) *pkgAuth.StaffClaims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxClaims).(*pkgAuth.StaffClaims); ok {
		return v
	}
	return nil
}

// ActorUUIDFromContext parses the authenticated actor id.
func ActorUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ActorIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithClaims injects verified claims into the context. Tests use it to skip
// token minting.
func WithClaims(ctx context.Context, claims *pkgAuth.StaffClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxClaims, claims)
	ctx = context.WithValue(ctx, ctxActorID, claims.Subject)
	return context.WithValue(ctx, ctxRole, claims.Role)
}
