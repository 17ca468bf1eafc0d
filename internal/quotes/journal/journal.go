// Package journal keeps a Postgres record of quote submission attempts.
package journal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/bizportal/internal/quotes"
)

// Schema creates the journal table.
const Schema = `CREATE TABLE IF NOT EXISTS quote_submissions (
	id           BIGSERIAL PRIMARY KEY,
	session_id   TEXT        NOT NULL DEFAULT '',
	company_id   TEXT        NOT NULL DEFAULT '',
	company_tier TEXT        NOT NULL,
	outcome      TEXT        NOT NULL,
	quote_code   TEXT,
	error        TEXT,
	duration_ms  BIGINT      NOT NULL,
	payload      JSONB       NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertSubmission = `INSERT INTO quote_submissions
	(session_id, company_id, company_tier, outcome, quote_code, error, duration_ms, payload)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Journal writes submissions into quote_submissions. A *pgxpool.Pool satisfies the
// database handle.
type Journal struct {
	db execer
}

// New returns a Journal over db.
func New(db execer) *Journal {
	return &Journal{db: db}
}

// EnsureSchema creates the table when missing.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if j == nil || j.db == nil {
		return errors.New("journal not initialised")
	}
	_, err := j.db.Exec(ctx, Schema)
	return err
}

// Record implements quotes.Journal.
func (j *Journal) Record(ctx context.Context, s quotes.Submission) error {
	if j == nil || j.db == nil {
		return errors.New("journal not initialised")
	}
	if s.Outcome == "" || s.CompanyTier == "" {
		return errors.New("journal entry requires outcome and company tier")
	}
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(ctx, insertSubmission,
		s.SessionID, s.CompanyID, s.CompanyTier, string(s.Outcome),
		s.QuoteCode, s.Error, s.Duration.Milliseconds(), payload)
	return err
}
