package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizportal/internal/integrations/quoteapi"
	"github.com/odyssey-erp/bizportal/internal/session"
)

// ============================================================================
// FAKES
// ============================================================================

type stubSubmitter struct {
	mu       sync.Mutex
	payloads [][]byte
	resp     *quoteapi.Response
	err      error
}

func (s *stubSubmitter) Submit(ctx context.Context, payload any) (*quoteapi.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.payloads = append(s.payloads, raw)
	s.mu.Unlock()
	return s.resp, s.err
}

type memJournal struct {
	entries []Submission
	ctxErrs []error
	err     error
}

func (j *memJournal) Record(ctx context.Context, s Submission) error {
	j.entries = append(j.entries, s)
	j.ctxErrs = append(j.ctxErrs, ctx.Err())
	return j.err
}

type memScheduler struct {
	tasks   []ReconcileTask
	ctxErrs []error
}

func (m *memScheduler) ScheduleReconcile(ctx context.Context, task ReconcileTask) error {
	m.tasks = append(m.tasks, task)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return nil
}

// hangupSubmitter cancels the request context once the server has answered, as a client
// disconnecting mid-request would.
type hangupSubmitter struct {
	cancel context.CancelFunc
	resp   *quoteapi.Response
}

func (h hangupSubmitter) Submit(ctx context.Context, payload any) (*quoteapi.Response, error) {
	h.cancel()
	return h.resp, nil
}

type countingRecorder struct {
	outcomes     []State
	reconciles   []error
	degradations []string
}

func (r *countingRecorder) ObserveSubmission(outcome State, d time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}
func (r *countingRecorder) ObserveReconcile(err error) { r.reconciles = append(r.reconciles, err) }
func (r *countingRecorder) ObserveDegradation(stage string) {
	r.degradations = append(r.degradations, stage)
}

// failingStore accepts reads but refuses writes.
type failingStore struct {
	*session.MemoryStore
	id string
}

func (f failingStore) Set(key string, value any) error { return errors.New("storage full") }
func (f failingStore) SessionID() string               { return f.id }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serverResponse(t *testing.T, body string) *quoteapi.Response {
	t.Helper()
	var resp quoteapi.Response
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&resp))
	resp.Raw = json.RawMessage(body)
	return &resp
}

// ============================================================================
// TESTS
// ============================================================================

func TestUpsertReconcilesReturnedQuotes(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.KeyUser, `{"CustomerID":1,"Companies":[{"CompanyID":9,"Quotes":[]}]}`))

	resp := serverResponse(t, `{"QuoteCode":"Q-1","Quotes":[{"CompanyID":9,"QuoteID":101}]}`)
	submitter := &stubSubmitter{resp: resp}
	recorder := &countingRecorder{}
	journal := &memJournal{}
	svc := NewService(submitter, WithLogger(quietLogger()), WithRecorder(recorder), WithJournal(journal))

	got, err := svc.Upsert(context.Background(), PlanSelection{ID: IntID(55), Name: "Gold"}, store)
	require.NoError(t, err)
	assert.Same(t, resp, got)

	var user map[string]any
	require.NoError(t, store.Get(session.KeyUser).Decode(&user))
	companies := user["Companies"].([]any)
	quotes := companies[0].(map[string]any)["Quotes"].([]any)
	require.Len(t, quotes, 1)
	assert.Equal(t, json.Number("101"), quotes[0].(map[string]any)["QuoteID"])
	assert.Equal(t, json.Number("9"), quotes[0].(map[string]any)["CompanyID"])

	assert.Equal(t, []State{StateSucceeded}, recorder.outcomes)
	assert.Equal(t, []error{nil}, recorder.reconciles)
	require.Len(t, journal.entries, 1)
	assert.Equal(t, StateSucceeded, journal.entries[0].Outcome)
	assert.Equal(t, "Q-1", journal.entries[0].QuoteCode)
	assert.Equal(t, "9", journal.entries[0].CompanyID)
	assert.Equal(t, "user", journal.entries[0].CompanyTier)
}

func TestUpsertReturnsSubmissionErrorUnchanged(t *testing.T) {
	apiErr := &quoteapi.Error{Status: 500, Message: "backend down"}
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.KeyUser, `{"Companies":[{"CompanyID":9}]}`))
	before := store.Get(session.KeyUser)
	recorder := &countingRecorder{}
	journal := &memJournal{}

	svc := NewService(&stubSubmitter{err: apiErr}, WithLogger(quietLogger()), WithRecorder(recorder), WithJournal(journal))
	resp, err := svc.Upsert(context.Background(), PlanSelection{}, store)

	assert.Nil(t, resp)
	assert.Same(t, apiErr, err)
	assert.Equal(t, before, store.Get(session.KeyUser))
	assert.Equal(t, []State{StateFailed}, recorder.outcomes)
	assert.Empty(t, recorder.reconciles)
	require.Len(t, journal.entries, 1)
	assert.Equal(t, "quote api: status 500: backend down", journal.entries[0].Error)
}

func TestUpsertReconciliationFailureStillSucceeds(t *testing.T) {
	base := session.NewMemoryStore()
	require.NoError(t, base.Set(session.KeyUser, `{"Companies":[{"CompanyID":9}]}`))
	store := failingStore{MemoryStore: base, id: "sess-1"}
	scheduler := &memScheduler{}

	resp := serverResponse(t, `{"Quotes":[{"CompanyID":9,"QuoteID":5}]}`)
	svc := NewService(&stubSubmitter{resp: resp}, WithLogger(quietLogger()), WithScheduler(scheduler))

	got, err := svc.Upsert(context.Background(), PlanSelection{}, store)
	require.NoError(t, err)
	assert.Same(t, resp, got)

	require.Len(t, scheduler.tasks, 1)
	assert.Equal(t, "sess-1", scheduler.tasks[0].SessionID)
	assert.Equal(t, "9", scheduler.tasks[0].CompanyID.String())
	assert.Len(t, scheduler.tasks[0].Quotes, 1)
}

func TestUpsertJournalFailureIsIgnored(t *testing.T) {
	svc := NewService(&stubSubmitter{resp: &quoteapi.Response{Raw: json.RawMessage(`{}`)}},
		WithLogger(quietLogger()), WithJournal(&memJournal{err: errors.New("db down")}))
	_, err := svc.Upsert(context.Background(), PlanSelection{}, session.NewMemoryStore())
	assert.NoError(t, err)
}

func TestUpsertIdempotentPayloads(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.KeyUser, storedUser))
	submitter := &stubSubmitter{resp: &quoteapi.Response{}}
	svc := NewService(submitter, WithLogger(quietLogger()))
	plan := decodePlan(t, `{"id": 55, "name": "Gold", "services": [{"ServiceID": 1, "ServiceName": "X"}]}`)

	_, err := svc.Upsert(context.Background(), plan, store)
	require.NoError(t, err)
	_, err = svc.Upsert(context.Background(), plan, store)
	require.NoError(t, err)

	require.Len(t, submitter.payloads, 2)
	assert.Equal(t, submitter.payloads[0], submitter.payloads[1])
}

func TestUpsertRecordsDegradations(t *testing.T) {
	recorder := &countingRecorder{}
	svc := NewService(&stubSubmitter{resp: &quoteapi.Response{}}, WithLogger(quietLogger()), WithRecorder(recorder))
	_, err := svc.Upsert(context.Background(), PlanSelection{}, session.NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, []string{StageIdentity, StageCompany}, recorder.degradations)
}

func TestUpsertWritesBackToPartnerUser(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.KeyPartnerUser, `{"CustomerID":4,"Token":"p","Companies":[{"CompanyID":9}]}`))

	resp := serverResponse(t, `{"QuoteCode":"Q-2","Quotes":[{"CompanyID":9,"QuoteID":7}]}`)
	recorder := &countingRecorder{}
	svc := NewService(&stubSubmitter{resp: resp}, WithLogger(quietLogger()), WithRecorder(recorder))

	_, err := svc.Upsert(context.Background(), PlanSelection{ID: IntID(55)}, store)
	require.NoError(t, err)
	assert.Equal(t, []error{nil}, recorder.reconciles)

	assert.True(t, store.Get(session.KeyUser).IsNull())
	var partner map[string]any
	require.NoError(t, store.Get(session.KeyPartnerUser).Decode(&partner))
	assert.Equal(t, "p", partner["Token"])
	company := partner["Companies"].([]any)[0].(map[string]any)
	require.Len(t, company["Quotes"], 1)
	assert.Equal(t, json.Number("7"), company["Quotes"].([]any)[0].(map[string]any)["QuoteID"])
}

func TestUpsertThroughClientWithNumericQuoteCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"QuoteID":101,"QuoteCode":5001,"Quotes":[{"CompanyID":9,"QuoteID":101}]}`))
	}))
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.KeyUser, `{"CustomerID":1,"Companies":[{"CompanyID":9,"Quotes":[]}]}`))
	recorder := &countingRecorder{}
	journal := &memJournal{}
	svc := NewService(quoteapi.NewClient(quoteapi.Config{BaseURL: srv.URL}),
		WithLogger(quietLogger()), WithRecorder(recorder), WithJournal(journal))

	resp, err := svc.Upsert(context.Background(), PlanSelection{ID: IntID(55)}, store)
	require.NoError(t, err)
	assert.Equal(t, "5001", resp.QuoteCode)
	assert.Equal(t, []error{nil}, recorder.reconciles)
	require.Len(t, journal.entries, 1)
	assert.Equal(t, "5001", journal.entries[0].QuoteCode)

	var user map[string]any
	require.NoError(t, store.Get(session.KeyUser).Decode(&user))
	company := user["Companies"].([]any)[0].(map[string]any)
	assert.Len(t, company["Quotes"], 1)
}

func TestUpsertSideEffectsSurviveCancelledRequest(t *testing.T) {
	base := session.NewMemoryStore()
	require.NoError(t, base.Set(session.KeyUser, `{"Companies":[{"CompanyID":9}]}`))
	store := failingStore{MemoryStore: base, id: "sess-3"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resp := serverResponse(t, `{"QuoteCode":"Q-3","Quotes":[{"CompanyID":9,"QuoteID":5}]}`)
	journal := &memJournal{}
	scheduler := &memScheduler{}
	svc := NewService(hangupSubmitter{cancel: cancel, resp: resp},
		WithLogger(quietLogger()), WithJournal(journal), WithScheduler(scheduler))

	_, err := svc.Upsert(ctx, PlanSelection{}, store)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	require.Len(t, journal.ctxErrs, 1)
	assert.NoError(t, journal.ctxErrs[0])
	require.Len(t, scheduler.ctxErrs, 1)
	assert.NoError(t, scheduler.ctxErrs[0])
}
