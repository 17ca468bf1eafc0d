package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/bizportal/internal/jobs"
	"github.com/odyssey-erp/bizportal/internal/quotes"
	"github.com/odyssey-erp/bizportal/internal/session"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteReconcile re-applies a quote list to a cached portal session.
	TaskQuoteReconcile = "quotes:reconcile"
)

// NewReconcileTask constructs an Asynq task.
func NewReconcileTask(task quotes.ReconcileTask) (*asynq.Task, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteReconcile, data), nil
}

// SessionStore loads and persists portal sessions outside a request.
type SessionStore interface {
	LoadByID(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
}

// ReconcileJob processes TaskQuoteReconcile tasks.
type ReconcileJob struct {
	sessions SessionStore
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewReconcileJob constructs the job handler. metrics may be nil.
func NewReconcileJob(sessions SessionStore, metrics *jobmetrics.Metrics, logger *slog.Logger) *ReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{sessions: sessions, metrics: metrics, logger: logger}
}

// Handle applies the task. Sessions that are gone or no longer hold the company are
// skipped; storage errors are retried.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	run := j.metrics.Begin(ctx, TaskQuoteReconcile)
	return run.Finish(j.handle(ctx, t, run))
}

func (j *ReconcileJob) handle(ctx context.Context, t *asynq.Task, run *jobmetrics.Run) error {
	var task quotes.ReconcileTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode reconcile payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger.With(slog.String("session_id", task.SessionID), slog.String("company_id", task.CompanyID.String()))

	sess, err := j.sessions.LoadByID(ctx, task.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		logger.Info("reconcile skipped, session expired")
		run.Skip()
		return nil
	}
	if err != nil {
		return err
	}

	if err := quotes.Reconcile(sess, task.CompanyID, task.Quotes); err != nil {
		logger.Warn("reconcile retry gave up", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err := j.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	logger.Info("reconcile retry applied", slog.Int("quotes", len(task.Quotes)))
	return nil
}
