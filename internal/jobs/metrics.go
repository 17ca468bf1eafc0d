package jobmetrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a task run as seen by the queue.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

// Metrics holds the worker's task collectors.
type Metrics struct {
	handled  *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	elapsed  *prometheus.HistogramVec
	attempt  *prometheus.CounterVec
}

// NewMetrics registers task collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizportal_tasks_handled_total",
			Help: "Task runs by task type and queue outcome.",
		}, []string{"task", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bizportal_tasks_in_flight",
			Help: "Task runs currently executing.",
		}, []string{"task"}),
		elapsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizportal_task_run_seconds",
			Help:    "Wall time of a single task run.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		attempt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizportal_task_attempts_total",
			Help: "Task runs by how many times asynq had already retried them.",
		}, []string{"task", "retried"}),
	}
	reg.MustRegister(m.handled, m.inFlight, m.elapsed, m.attempt)
	return m
}

// Run instruments one execution of a task. The zero and nil Run record nothing.
type Run struct {
	m       *Metrics
	task    string
	started time.Time
	skipped bool
}

// Begin starts a run of task. ctx is the handler context asynq passes in; its retry count
// labels the attempt.
func (m *Metrics) Begin(ctx context.Context, task string) *Run {
	r := &Run{m: m, task: task, started: time.Now()}
	if m == nil {
		return r
	}
	m.inFlight.WithLabelValues(task).Inc()
	retried, _ := asynq.GetRetryCount(ctx)
	m.attempt.WithLabelValues(task, retryBucket(retried)).Inc()
	return r
}

// Skip marks a run that succeeded without doing any work.
func (r *Run) Skip() {
	if r != nil {
		r.skipped = true
	}
}

// Finish records the run's outcome and returns err unchanged.
func (r *Run) Finish(err error) error {
	if r == nil || r.m == nil {
		return err
	}
	r.m.inFlight.WithLabelValues(r.task).Dec()
	r.m.elapsed.WithLabelValues(r.task).Observe(time.Since(r.started).Seconds())
	r.m.handled.WithLabelValues(r.task, r.outcome(err)).Inc()
	return err
}

func (r *Run) outcome(err error) string {
	switch {
	case err == nil && r.skipped:
		return OutcomeSkipped
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeDropped
	default:
		return OutcomeRetry
	}
}

// retryBucket keeps the label set small.
func retryBucket(n int) string {
	if n >= 3 {
		return "3+"
	}
	return strconv.Itoa(n)
}
