// Package metrics exports Prometheus metrics for supervised rsync runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/supervisor"
)

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomePartial    = "partial"
	OutcomeFailure    = "failure"
	OutcomeTerminated = "terminated"
)

// Observer records run counts, active runs and run durations. It implements
// supervisor.Observer.
type Observer struct {
	job string

	runs     *prometheus.CounterVec
	active   *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	exits    *prometheus.CounterVec
}

var _ supervisor.Observer = (*Observer)(nil)

// NewObserver registers the rsync metrics with reg. A nil reg registers with
// the default Prometheus registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Observer{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rsync_runs_total",
			Help: "Total finished rsync runs by job and outcome",
		}, []string{"job", "outcome"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsync_runs_active",
			Help: "Number of rsync processes currently running",
		}, []string{"job"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rsync_run_duration_seconds",
			Help:    "Wall-clock duration of rsync runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68m
		}, []string{"job"}),
		exits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rsync_exit_codes_total",
			Help: "Total rsync exits by job and exit code",
		}, []string{"job", "code"}),
	}
}

// ForJob returns an Observer that shares o's metrics under the job label.
func (o *Observer) ForJob(job string) *Observer {
	c := *o
	c.job = job
	return &c
}

// Started implements supervisor.Observer.
func (o *Observer) Started(int) {
	o.active.WithLabelValues(o.job).Inc()
}

// Exited implements supervisor.Observer.
func (o *Observer) Exited(exitCode int, elapsed time.Duration) {
	o.active.WithLabelValues(o.job).Dec()
	o.runs.WithLabelValues(o.job, Outcome(exitCode)).Inc()
	o.exits.WithLabelValues(o.job, strconv.Itoa(exitCode)).Inc()
	o.duration.WithLabelValues(o.job).Observe(elapsed.Seconds())
}

// Outcome classifies an exit code.
func Outcome(exitCode int) string {
	switch exitCode {
	case 0:
		return OutcomeSuccess
	case supervisor.TerminatedExitCode:
		return OutcomeTerminated
	case 23, 24:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}
