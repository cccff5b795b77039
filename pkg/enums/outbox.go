package enums

// OutboxAggregateType identifies the ledger entity an outbox row is keyed on.
// The relay uses the aggregate id as the Pub/Sub ordering key.
type OutboxAggregateType string

const AggregateMembership OutboxAggregateType = "membership"

var aggregateTypes = set[OutboxAggregateType]{AggregateMembership}

func (a OutboxAggregateType) IsValid() bool {
	return aggregateTypes.has(a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType names the payload schema carried by an outbox row.
type OutboxEventType string

const EventNotificationRequested OutboxEventType = "notification_requested"

var outboxEventTypes = set[OutboxEventType]{EventNotificationRequested}

func (e OutboxEventType) IsValid() bool {
	return outboxEventTypes.has(e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", value)
}
