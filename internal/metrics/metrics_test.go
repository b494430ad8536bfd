package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Admission("admitted")
	m.Admission("admitted")
	m.Admission("parent_busy")
	m.Skip("no_show")
	m.TxAttempt("join", "retried")
	m.TxAttempt("join", "committed")
	m.MeetingEnded(240)
	m.Notification("status_update")
	m.WSClients(3)
	m.RelayEvent("published")

	if got := testutil.ToFloat64(m.admissions.WithLabelValues("admitted")); got != 2 {
		t.Errorf("expected 2 admissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.txAttempts.WithLabelValues("join", "retried")); got != 1 {
		t.Errorf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.wsClients); got != 3 {
		t.Errorf("expected 3 clients, got %v", got)
	}
	if n := testutil.CollectAndCount(m.meetingDuration); n != 1 {
		t.Errorf("expected one histogram, got %d", n)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("expected registered series, got %d (%v)", n, err)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.Admission("admitted")
	m.Skip("no_show")
	m.TxAttempt("join", "committed")
	m.MeetingEnded(10)
	m.Notification("queue_update")
	m.WSClients(1)
	m.RelayEvent("failed")
}
