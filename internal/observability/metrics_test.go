package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/auth/login", "POST", 200, 10*time.Millisecond)
	m.RecordRequest("/auth/login", "POST", 200, 12*time.Millisecond)
	m.RecordError("/auth/login", "POST", "AUTHENTICATION_FAILED")
	m.RecordAnalysis("text", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestCount.WithLabelValues("/auth/login", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorCount.WithLabelValues("/auth/login", "POST", "AUTHENTICATION_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisCount.WithLabelValues("text", "ok")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordAnalysis("text", "ok")
	})
}
