package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

// StaffClaims is the token minted by the external identity provider for
// staff, owners and system callers. The subject is the actor id.
type StaffClaims struct {
	ProgramIDs []uuid.UUID     `json:"program_ids"`
	Role       enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// ActorID parses the subject into the actor identifier.
func (c *StaffClaims) ActorID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// CanAccessProgram reports whether the caller operates the given program.
// System callers are not scoped to programs.
func (c *StaffClaims) CanAccessProgram(programID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.Role == enums.ActorRoleSystem {
		return true
	}
	for _, id := range c.ProgramIDs {
		if id == programID {
			return true
		}
	}
	return false
}
