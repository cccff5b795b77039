package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// knownConstraints names the ledger rule behind each schema guard.
var knownConstraints = map[string]string{
	"chk_memberships_balance":            "redeemable_within_accumulated",
	"ux_memberships_program_customer":    "one_membership_per_customer",
	"ux_redemption_request_tokens":       "request_token_single_use",
	"ux_rewards_program_system_tag":      "single_first_visit_gift",
	"chk_rewards_cost_non_negative":      "reward_cost_non_negative",
	"chk_redemption_records_staff_actor": "staff_redemption_has_actor",
	"fk_redemption_records_reward":       "redemption_references_reward",
	"fk_visit_records_membership":        "visit_references_membership",
	"fk_redemption_records_membership":   "redemption_references_membership",
}

// ErrorDump flattens an error chain for structured request logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	// LedgerRule is set when PGConstraint is one of the ledger's schema guards.
	LedgerRule string `json:"ledger_rule,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint, d.PGTable = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName
		d.PGColumn, d.PGDetail, d.PGMessage = pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode, d.PGConstraint, d.PGTable = string(pqErr.Code), pqErr.Constraint, pqErr.Table
		d.PGColumn, d.PGDetail, d.PGMessage = pqErr.Column, pqErr.Detail, pqErr.Message
	}
	d.LedgerRule = knownConstraints[d.PGConstraint]
	return d
}
