package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts balance-changing operations and their failures.
type LedgerMetrics struct {
	visits          prometheus.Counter
	redemptions     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	conflictRetries *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	visits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "visits_recorded_total",
		Help:      "Visits recorded across all programs.",
	})
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemptions_total",
		Help:      "Successful reward redemptions by source.",
	}, []string{"source"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemption_failures_total",
		Help:      "Rejected redemption attempts by error code.",
	}, []string{"code"})
	conflictRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_conflict_retries_total",
		Help:      "Retries caused by concurrent balance updates.",
	}, []string{"operation"})
	reg.MustRegister(visits, redemptions, failures, conflictRetries)
	return &LedgerMetrics{
		visits:          visits,
		redemptions:     redemptions,
		failures:        failures,
		conflictRetries: conflictRetries,
	}
}

func (m *LedgerMetrics) IncVisit() {
	if m == nil || m.visits == nil {
		return
	}
	m.visits.Inc()
}

func (m *LedgerMetrics) IncRedemption(source string) {
	if m == nil || m.redemptions == nil {
		return
	}
	m.redemptions.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *LedgerMetrics) IncRedemptionFailure(code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncConflictRetry satisfies the retry observer used by the membership guard.
func (m *LedgerMetrics) IncConflictRetry(operation string) {
	if m == nil || m.conflictRetries == nil {
		return
	}
	m.conflictRetries.WithLabelValues(normalizeLabel(operation)).Inc()
}
