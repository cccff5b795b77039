package payloads

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

// NotificationRequestedEvent asks the delivery service to alert a customer.
type NotificationRequestedEvent struct {
	CustomerID   uuid.UUID              `json:"customer_id"`
	ProgramID    uuid.UUID              `json:"program_id"`
	MembershipID uuid.UUID              `json:"membership_id"`
	Kind         enums.NotificationKind `json:"kind"`
	RewardID     uuid.UUID              `json:"reward_id"`
	RewardName   string                 `json:"reward_name"`
	Message      string                 `json:"message"`
}

// Validate rejects payloads the delivery service could not route.
func (e NotificationRequestedEvent) Validate() error {
	if e.CustomerID == uuid.Nil {
		return errors.New("customer_id is required")
	}
	if e.ProgramID == uuid.Nil {
		return errors.New("program_id is required")
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}
