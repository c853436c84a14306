package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pvdispatch"

var _ prometheus.Collector = (*collector)(nil)

// collector exposes worker stats as Prometheus metrics, labelled by category.
type collector struct {
	d *Dispatcher

	enqueued   *prometheus.Desc
	executed   *prometheus.Desc
	failed     *prometheus.Desc
	dropped    *prometheus.Desc
	rejected   *prometheus.Desc
	queueDepth *prometheus.Desc
	alive      *prometheus.Desc
	latency    *prometheus.HistogramVec
}

func newCollector(d *Dispatcher) *collector {
	constLabels := prometheus.Labels{"dispatcher": d.id}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"category"}, constLabels)
	}
	return &collector{
		d:          d,
		enqueued:   desc("callbacks_enqueued_total", "Total number of callbacks accepted by a category worker"),
		executed:   desc("callbacks_executed_total", "Total number of callbacks executed by a category worker"),
		failed:     desc("callbacks_failed_total", "Total number of callbacks that returned an error or panicked"),
		dropped:    desc("callbacks_dropped_total", "Total number of queued callbacks discarded by a forced stop"),
		rejected:   desc("callbacks_rejected_total", "Total number of callbacks rejected because the dispatcher was stopping"),
		queueDepth: desc("queue_depth", "Number of callbacks waiting in a category queue"),
		alive:      desc("worker_alive", "Whether the category worker is running (1) or not (0)"),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "callback_duration_seconds",
				Help:        "Histogram of callback execution duration in seconds",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
				ConstLabels: constLabels,
			},
			[]string{"category"},
		),
	}
}

func (c *collector) observer(cat Category) prometheus.Observer {
	return c.latency.WithLabelValues(string(cat))
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.enqueued
	ch <- c.executed
	ch <- c.failed
	ch <- c.dropped
	ch <- c.rejected
	ch <- c.queueDepth
	ch <- c.alive
	c.latency.Describe(ch)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, cat := range c.d.categories {
		stats := c.d.workers[cat].Stats()
		label := string(cat)
		ch <- prometheus.MustNewConstMetric(c.enqueued, prometheus.CounterValue, float64(stats.Enqueued), label)
		ch <- prometheus.MustNewConstMetric(c.executed, prometheus.CounterValue, float64(stats.Executed), label)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(stats.Failed), label)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(stats.Dropped), label)
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.Rejected), label)
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(stats.QueueLen), label)
		var alive float64
		if stats.Alive {
			alive = 1
		}
		ch <- prometheus.MustNewConstMetric(c.alive, prometheus.GaugeValue, alive, label)
	}
	c.latency.Collect(ch)
}
