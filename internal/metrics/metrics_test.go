package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/metrics"
)

func TestMetrics(t *testing.T) {
	t.Run("counts outcomes per label", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		m.ObserveClick(metrics.ResultCreated)
		m.ObserveClick(metrics.ResultCreated)
		m.ObserveClick(metrics.ResultDuplicate)
		m.ObserveConversion("pixel", metrics.ResultNoop)
		m.ObserveHeartbeat()
		m.ObserveTrackerCheck("heartbeat", true)

		count, err := testutil.GatherAndCount(reg, "attribution_clicks_total")
		assert.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = testutil.GatherAndCount(reg, "tracker_checks_total")
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		var m *metrics.Metrics

		assert.NotPanics(t, func() {
			m.ObserveClick(metrics.ResultCreated)
			m.ObserveConversion("json", metrics.ResultFailed)
			m.ObserveHeartbeat()
			m.ObserveTrackerCheck("none", false)
		})
	})
}
