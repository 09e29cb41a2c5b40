// Package metrics exports dispatcher activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

const (
	namespace = "seqgate"
	subsystem = "dispatch"
)

// Collector is a dispatch.Observer that updates Prometheus metrics.
type Collector struct {
	scheduled    prometheus.Counter
	forwarded    prometheus.Counter
	buffered     prometheus.Counter
	pushed       prometheus.Counter
	pushFailures prometheus.Counter
	confirmed    prometheus.Counter
	released     prometheus.Counter
	rejected     *prometheus.CounterVec
	pending      prometheus.Gauge
}

var _ dispatch.Observer = (*Collector)(nil)

// New registers the dispatcher metrics on reg. A nil reg registers nothing,
// which is useful in tests that only read the values back.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Collector{
		scheduled:    counter("scheduled_total", "Items accepted by Schedule"),
		forwarded:    counter("forwarded_total", "Scheduled items forwarded immediately"),
		buffered:     counter("buffered_total", "Scheduled items held in a reorder buffer"),
		pushed:       counter("pushed_total", "Items pushed to the sink"),
		pushFailures: counter("push_failures_total", "Pushes the sink returned an error for"),
		confirmed:    counter("confirmed_total", "Confirm calls on known sources"),
		released:     counter("released_total", "Buffered items released by Confirm"),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_total",
			Help:      "Rejected Schedule and Confirm calls by error code",
		}, []string{"code"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending",
			Help:      "Items currently buffered across all sources",
		}),
	}
}

func (c *Collector) Scheduled(_ ir.Item, outcome dispatch.Outcome) {
	c.scheduled.Inc()
	switch outcome {
	case dispatch.OutcomeForwarded:
		c.forwarded.Inc()
	case dispatch.OutcomeBuffered:
		c.buffered.Inc()
		c.pending.Inc()
	}
}

func (c *Collector) Rejected(_ ir.Item, err *dispatch.DispatchError) {
	c.rejected.WithLabelValues(string(err.Code)).Inc()
}

func (c *Collector) Pushed(d dispatch.Delivery) {
	c.pushed.Inc()
	c.settle(d)
}

func (c *Collector) PushFailed(d dispatch.Delivery, _ error) {
	c.pushFailures.Inc()
	c.settle(d)
}

func (c *Collector) Confirmed(_ ir.Item, released int) {
	c.confirmed.Inc()
	c.released.Add(float64(released))
}

// settle drops the pending gauge for items that left a reorder buffer. Under
// concurrent delivery the gauge can dip briefly before the matching
// Scheduled event raises it.
func (c *Collector) settle(d dispatch.Delivery) {
	if d.Released {
		c.pending.Dec()
	}
}
