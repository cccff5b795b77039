package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	rewardID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.NotificationRequestedEvent{
		CustomerID: uuid.New(),
		ProgramID:  uuid.New(),
		Kind:       enums.NotificationKindRewardUnlocked,
		RewardID:   rewardID,
		RewardName: "Free coffee",
		Message:    "You unlocked Free coffee",
	})

	event := models.OutboxEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateMembership,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "notification-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.NotificationRequestedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.RewardID != rewardID || payload.RewardName != "Free coffee" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryRejections(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustMarshal(t, payloads.NotificationRequestedEvent{
		CustomerID: uuid.New(),
		ProgramID:  uuid.New(),
		Kind:       enums.NotificationKindRewardRedeemed,
	})

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order_created"),
			AggregateType: enums.AggregateMembership,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, valid),
		},
		"aggregate mismatch": {
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.OutboxAggregateType("program"),
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, valid),
		},
		"missing aggregate id": {
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateMembership,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, valid),
		},
		"null payload": {
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateMembership,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"invalid payload": {
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateMembership,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"kind":"reward_unlocked"}`)),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
			if unknown := errors.Is(err, ErrUnknownEvent); unknown != (name == "unknown event") {
				t.Fatalf("ErrUnknownEvent match = %v for %s", unknown, name)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected missing topic error")
	}
}

func TestRegisterRejectsDuplicatesAndListsTopics(t *testing.T) {
	reg := newTestEventRegistry(t)
	err := reg.register(EventDescriptor{
		EventType:      enums.EventNotificationRequested,
		AggregateType:  enums.AggregateMembership,
		Topic:          "other-topic",
		PayloadFactory: func() any { return &payloads.NotificationRequestedEvent{} },
	})
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	topics := reg.Topics()
	if len(topics) != 1 || topics[0] != "notification-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "notification-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
