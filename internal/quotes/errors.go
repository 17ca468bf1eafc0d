package quotes

import "errors"

var (
	// ErrRecoverableParse marks cached session data that could not be decoded. It is never
	// returned from Upsert.
	ErrRecoverableParse = errors.New("quotes: cached data unreadable")
	// ErrResolutionDegraded marks a stage that fell back to a documented default.
	ErrResolutionDegraded = errors.New("quotes: resolution fell back to default")
	// ErrReconciliation marks a failure while folding returned quotes into the session.
	ErrReconciliation = errors.New("quotes: reconciliation failed")
	// ErrNothingToReconcile is reported when the response carries no quotes.
	ErrNothingToReconcile = errors.New("quotes: no quotes to reconcile")
)
