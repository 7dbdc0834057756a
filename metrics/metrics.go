// Package metrics exposes prometheus counters for collect runs. A nil
// *Metrics is valid and counts nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	collectRuns prometheus.Counter
	filesMoved  prometheus.Counter
	timeouts    prometheus.Counter
	failures    prometheus.Counter
}

// New creates the counters and registers them with the given registerer.
// Pass prometheus.DefaultRegisterer for the default registry.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		collectRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knimekit_collect_runs_total",
			Help: "Number of started collect runs",
		}),
		filesMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knimekit_files_moved_total",
			Help: "Number of files moved into storage",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knimekit_collect_timeouts_total",
			Help: "Number of collect runs that hit the wait budget",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knimekit_move_failures_total",
			Help: "Number of failed file moves",
		}),
	}

	for _, c := range []prometheus.Counter{m.collectRuns, m.filesMoved, m.timeouts, m.failures} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) CollectStarted() {
	if m == nil {
		return
	}

	m.collectRuns.Inc()
}

func (m *Metrics) FileMoved() {
	if m == nil {
		return
	}

	m.filesMoved.Inc()
}

func (m *Metrics) TimedOut() {
	if m == nil {
		return
	}

	m.timeouts.Inc()
}

func (m *Metrics) MoveFailed() {
	if m == nil {
		return
	}

	m.failures.Inc()
}
