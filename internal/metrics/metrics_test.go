package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CheckedIn("present")
	m.CheckedIn("present")
	m.CheckedIn("late")
	m.Rejected("already_checked_in")
	m.AutoCompleted(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CheckIns.WithLabelValues("present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckIns.WithLabelValues("late")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("already_checked_in")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsClosed))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CheckedIn("present")
		m.Rejected("x")
		m.AutoCompleted(1)
	})
}
