package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	m.ObserveDuration("gift-sync", 250*time.Millisecond)
	m.IncSuccess("gift-sync")
	m.IncSuccess("gift-sync")
	m.IncFailure("gift-sync")
	m.IncFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "visitrewards_cron_job_runs_total")
	if got := sampleValue(runs, map[string]string{"job": "gift-sync", "result": "success"}); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := sampleValue(runs, map[string]string{"job": "gift-sync", "result": "failure"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := sampleValue(runs, map[string]string{"job": "unknown", "result": "failure"}); got != 1 {
		t.Fatalf("expected empty job name to be labelled unknown, got %v", got)
	}

	last := findMetricFamily(mfs, "visitrewards_cron_job_last_success_timestamp_seconds")
	if got := sampleValue(last, map[string]string{"job": "gift-sync"}); got != 1_700_000_000 {
		t.Fatalf("unexpected last success timestamp %v", got)
	}

	if got, err := fetchHistogramSum(mfs, "visitrewards_cron_job_duration_seconds", "job", "gift-sync"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 0.25 {
		t.Fatalf("expected duration sum 0.25, got %f", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.IncSuccess("job")
	nilMetrics.IncFailure("job")
	NewCronJobMetrics(nil).ObserveDuration("job", time.Second)
	NewCronJobMetrics(nil).IncSuccess("job")
}

// sampleValue returns the counter or gauge value of the sample carrying every
// given label, or -1 when none matches.
func sampleValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	if mf == nil {
		return -1
	}
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
				matched++
			}
		}
		if matched != len(labels) {
			continue
		}
		if c := metric.GetCounter(); c != nil {
			return c.GetValue()
		}
		return metric.GetGauge().GetValue()
	}
	return -1
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	if got := sampleValue(mf, map[string]string{label: value}); got >= 0 {
		return got, nil
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric.GetHistogram().GetSampleSum(), nil
			}
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}
