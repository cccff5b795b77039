package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/registry"
)

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, buildMessage(row, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// buildMessage forwards the stored envelope untouched. Messages for one
// membership share an ordering key so a member sees unlocks before redemptions.
func buildMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":      resolved.Envelope.EventID,
		"event_type":    string(row.EventType),
		"membership_id": row.AggregateID.String(),
		"created_at":    row.CreatedAt.Format(time.RFC3339Nano),
	}
	if n := notificationOf(resolved); n != nil {
		attrs["notification_kind"] = string(n.Kind)
		attrs["program_id"] = n.ProgramID.String()
		attrs["customer_id"] = n.CustomerID.String()
	}
	return &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: row.AggregateID.String(),
	}
}

func notificationOf(resolved *registry.ResolvedEvent) *payloads.NotificationRequestedEvent {
	if resolved == nil {
		return nil
	}
	n, _ := resolved.Payload.(*payloads.NotificationRequestedEvent)
	return n
}

func (r *Relay) orderedPublishers() func(topic string) topicPublisher {
	cache := map[string]topicPublisher{}
	return func(topic string) topicPublisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		p := r.pubsub.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		pub := &orderedPublisher{Publisher: p}
		cache[topic] = pub
		return pub
	}
}

// orderedPublisher resumes an ordering key after a failed publish; Pub/Sub
// otherwise rejects every later message for that key.
type orderedPublisher struct {
	*gcppubsub.Publisher
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{
		PublishResult: p.Publisher.Publish(ctx, msg),
		resume:        func() { p.Publisher.ResumePublish(msg.OrderingKey) },
	}
}

type orderedResult struct {
	*gcppubsub.PublishResult
	resume func()
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	if r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.PublishResult.Get(ctx)
	if err != nil && r.resume != nil {
		r.resume()
	}
	return id, err
}
