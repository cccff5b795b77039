package models

// All lists every persisted model in dependency order. Used for SQLite schemas
// where the Postgres goose migrations do not apply.
func All() []any {
	return []any{
		&Program{},
		&Reward{},
		&Membership{},
		&VisitRecord{},
		&RedemptionRecord{},
		&RedemptionRequestToken{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
