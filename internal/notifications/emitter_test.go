package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/dbtest"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type failingWriter struct{}

func (failingWriter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func TestNewEmitterValidatesDeps(t *testing.T) {
	_, err := NewEmitter(nil, failingWriter{}, nil)
	assert.Error(t, err)
	_, err = NewEmitter(db.NewFromConn(dbtest.Open(t)), nil, nil)
	assert.Error(t, err)
}

func TestEmitQueuesOutboxEvents(t *testing.T) {
	conn := dbtest.Open(t)
	emitter, err := NewEmitter(db.NewFromConn(conn), outbox.NewService(outbox.NewRepository(conn), nil), nil)
	require.NoError(t, err)

	membershipID := uuid.New()
	customerID := uuid.New()
	programID := uuid.New()
	queued := emitter.Emit(context.Background(),
		Notice{
			Kind:         enums.NotificationKindRewardUnlocked,
			CustomerID:   customerID,
			ProgramID:    programID,
			MembershipID: membershipID,
			RewardID:     uuid.New(),
			RewardName:   "Coffee",
		},
		Notice{
			Kind:         enums.NotificationKindRewardRedeemed,
			CustomerID:   customerID,
			ProgramID:    programID,
			MembershipID: membershipID,
			RewardID:     uuid.New(),
			RewardName:   "Welcome!",
		},
	)
	assert.Equal(t, 2, queued)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, enums.EventNotificationRequested, row.EventType)
		assert.Equal(t, enums.AggregateMembership, row.AggregateType)
		assert.Equal(t, membershipID, row.AggregateID)
	}

	kinds := map[enums.NotificationKind]string{}
	for _, row := range rows {
		var envelope outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &envelope))
		var data payloads.NotificationRequestedEvent
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
		assert.NoError(t, data.Validate())
		assert.Equal(t, customerID, data.CustomerID)
		kinds[data.Kind] = data.Message
	}
	assert.Contains(t, kinds[enums.NotificationKindRewardUnlocked], "Coffee")
	assert.Contains(t, kinds[enums.NotificationKindRewardRedeemed], "Welcome!")
}

func TestEmitSwallowsFailures(t *testing.T) {
	conn := dbtest.Open(t)
	emitter, err := NewEmitter(db.NewFromConn(conn), failingWriter{}, nil)
	require.NoError(t, err)

	queued := emitter.Emit(context.Background(), Notice{
		Kind:       enums.NotificationKindRewardRedeemed,
		CustomerID: uuid.New(),
		ProgramID:  uuid.New(),
	})
	assert.Equal(t, 0, queued)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitNoNotices(t *testing.T) {
	var emitter *Emitter
	assert.Equal(t, 0, emitter.Emit(context.Background()))
}
