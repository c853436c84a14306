package dispatch

import (
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := testDispatcher(t, WithCategories(CategoryMonitor, CategoryGetPut), WithRegisterer(reg))

	require.NoError(t, d.Dispatch(CategoryMonitor, func(...Param) error { return nil }))
	require.NoError(t, d.Dispatch(CategoryMonitor, func(...Param) error { return errors.New("failed") }))
	require.NoError(t, d.Dispatch(CategoryMonitor, nil))
	require.NoError(t, d.Dispatch(CategoryGetPut, func(...Param) error { return nil }))

	w, err := d.Worker(CategoryMonitor)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		stats := w.Stats()
		return stats.Executed == 2 && stats.Failed == 1
	}, testWaitTimeout, 5*time.Millisecond)

	assert.Equal(t, 2.0, gatherValue(t, reg, "pvdispatch_callbacks_enqueued_total", CategoryMonitor), "A nil callback should not be counted")
	assert.Equal(t, 1.0, gatherValue(t, reg, "pvdispatch_callbacks_enqueued_total", CategoryGetPut))
	assert.Equal(t, 2.0, gatherValue(t, reg, "pvdispatch_callbacks_executed_total", CategoryMonitor))
	assert.Equal(t, 1.0, gatherValue(t, reg, "pvdispatch_callbacks_failed_total", CategoryMonitor))
	assert.Equal(t, 1.0, gatherValue(t, reg, "pvdispatch_worker_alive", CategoryMonitor))
	assert.Equal(t, 0.0, gatherValue(t, reg, "pvdispatch_queue_depth", CategoryMonitor))

	count, err := testutil.GatherAndCount(reg, "pvdispatch_callback_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "Latency should be observed for each category that executed a callback")

	require.NoError(t, d.Stop())
	count, err = testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Metrics should be unregistered when the dispatcher stops")
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	testDispatcher(t, WithRegisterer(reg))
	d, err := New(WithRegisterer(reg))
	require.NoError(t, err, "Dispatchers are distinguished by ID, so both may register")
	require.NoError(t, d.Stop())
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, cat Category) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() != "category" || label.GetValue() != string(cat) {
					continue
				}
				switch {
				case metric.GetCounter() != nil:
					return metric.GetCounter().GetValue()
				case metric.GetGauge() != nil:
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("Metric %s not found for category %s", name, cat)
	return 0
}
