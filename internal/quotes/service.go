package quotes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/bizportal/internal/integrations/quoteapi"
	"github.com/odyssey-erp/bizportal/internal/session"
)

// State is a step of one Upsert invocation.
type State string

const (
	StateBuilding    State = "building"
	StateSubmitting  State = "submitting"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateReconciling State = "reconciling"
)

// Submitter sends a payload to the quote creation endpoint.
type Submitter interface {
	Submit(ctx context.Context, payload any) (*quoteapi.Response, error)
}

// Submission describes one attempt for the journal.
type Submission struct {
	SessionID   string
	CompanyID   string
	CompanyTier string
	Payload     QuotePayload
	Outcome     State
	QuoteCode   string
	Error       string
	Duration    time.Duration
}

// Journal records submission attempts.
type Journal interface {
	Record(ctx context.Context, s Submission) error
}

// ReconcileTask asks a worker to redo a reconciliation that failed inline.
type ReconcileTask struct {
	SessionID string  `json:"session_id"`
	CompanyID ID      `json:"company_id"`
	Quotes    []Quote `json:"quotes"`
}

// Scheduler enqueues reconciliation retries.
type Scheduler interface {
	ScheduleReconcile(ctx context.Context, task ReconcileTask) error
}

// Recorder receives outcome and degradation counts.
type Recorder interface {
	ObserveSubmission(outcome State, d time.Duration)
	ObserveReconcile(err error)
	ObserveDegradation(stage string)
}

// Service submits quotes built from the portal session.
type Service struct {
	client    Submitter
	journal   Journal
	scheduler Scheduler
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures optional collaborators of Service.
type Option func(*Service)

// WithJournal records every submission attempt.
func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

// WithScheduler retries failed reconciliations in the background.
func WithScheduler(sc Scheduler) Option { return func(s *Service) { s.scheduler = sc } }

// WithRecorder reports outcomes to metrics.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService constructs a Service.
func NewService(client Submitter, opts ...Option) *Service {
	s := &Service{client: client}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Upsert builds the payload for plan, submits it and reconciles the returned quotes into
// store. The returned response is the server's; submission errors are returned unchanged.
// Nothing after a successful submission can turn the result into an error.
func (s *Service) Upsert(ctx context.Context, plan PlanSelection, store session.Store) (*quoteapi.Response, error) {
	sessionID := sessionIDOf(store)
	logger := s.logger.With(slog.String("session_id", sessionID))

	logger.Debug("quote state", slog.String("state", string(StateBuilding)))
	build := BuildPayload(plan, store)
	for _, d := range build.Degradations {
		logger.Debug("quote resolution degraded",
			slog.String("stage", d.Stage),
			slog.Bool("parse_error", errors.Is(d.Err, ErrRecoverableParse)),
			slog.Any("error", d.Err))
		if s.recorder != nil {
			s.recorder.ObserveDegradation(d.Stage)
		}
	}

	logger.Debug("quote state", slog.String("state", string(StateSubmitting)),
		slog.String("company_id", build.Company.CompanyID.String()),
		slog.String("company_tier", build.CompanyTier.String()))
	start := time.Now()
	resp, err := s.client.Submit(ctx, build.Payload)
	elapsed := time.Since(start)

	outcome := StateSucceeded
	if err != nil {
		outcome = StateFailed
	}
	if s.recorder != nil {
		s.recorder.ObserveSubmission(outcome, elapsed)
	}
	// The journal and retry queue must see the outcome even if the caller has gone away.
	sideCtx := context.WithoutCancel(ctx)
	s.record(sideCtx, logger, sessionID, build, outcome, resp, err, elapsed)

	if err != nil {
		logger.Warn("quote submission failed", slog.Any("error", err))
		return nil, err
	}
	if resp == nil {
		resp = &quoteapi.Response{}
	}
	logger.Info("quote submitted", slog.String("quote_code", resp.QuoteCode), slog.Duration("took", elapsed))

	s.reconcile(sideCtx, logger, sessionID, store, build.Company.CompanyID, resp)
	return resp, nil
}

func (s *Service) reconcile(ctx context.Context, logger *slog.Logger, sessionID string, store session.Store, resolved ID, resp *quoteapi.Response) {
	if resp == nil || len(resp.Quotes) == 0 {
		return
	}
	logger.Debug("quote state", slog.String("state", string(StateReconciling)))

	quotes := make([]Quote, len(resp.Quotes))
	for i, q := range resp.Quotes {
		quotes[i] = Quote(q)
	}
	target := ReconcileTarget(quotes, resolved)

	err := Reconcile(store, target, quotes)
	if s.recorder != nil {
		s.recorder.ObserveReconcile(err)
	}
	if err == nil {
		return
	}
	logger.Warn("quote reconciliation failed", slog.String("company_id", target.String()), slog.Any("error", err))

	if s.scheduler == nil || sessionID == "" || target.IsNull() {
		return
	}
	task := ReconcileTask{SessionID: sessionID, CompanyID: target, Quotes: quotes}
	if err := s.scheduler.ScheduleReconcile(ctx, task); err != nil {
		logger.Warn("schedule reconcile retry", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, sessionID string, build Build, outcome State, resp *quoteapi.Response, submitErr error, elapsed time.Duration) {
	if s.journal == nil {
		return
	}
	entry := Submission{
		SessionID:   sessionID,
		CompanyID:   build.Company.CompanyID.String(),
		CompanyTier: build.CompanyTier.String(),
		Payload:     build.Payload,
		Outcome:     outcome,
		Duration:    elapsed,
	}
	if resp != nil {
		entry.QuoteCode = resp.QuoteCode
	}
	if submitErr != nil {
		entry.Error = submitErr.Error()
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		logger.Warn("journal quote submission", slog.Any("error", err))
	}
}

func sessionIDOf(store session.Store) string {
	if identified, ok := store.(interface{ SessionID() string }); ok {
		return identified.SessionID()
	}
	return ""
}
