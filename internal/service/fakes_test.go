package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProfileStore mirrors the conditional debit semantics of the repository.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
	debited  map[string]bool

	debitCalls int
	// conflicts makes the next N DebitCredit calls report a concurrent change.
	conflicts int
	debitErr  error
	getErr    error
	refilled  map[model.Plan]int
}

func newFakeProfileStore(profiles ...*model.Profile) *fakeProfileStore {
	s := &fakeProfileStore{
		profiles: make(map[string]model.Profile),
		debited:  make(map[string]bool),
	}
	for _, p := range profiles {
		s.profiles[p.ID] = *p
	}
	return s
}

func (s *fakeProfileStore) credits(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id].Credits
}

func (s *fakeProfileStore) debitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.debited)
}

func (s *fakeProfileStore) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &p, nil
}

func (s *fakeProfileStore) GetOrCreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[p.ID]; ok {
		return &existing, false, nil
	}
	s.profiles[p.ID] = *p
	created := *p
	return &created, true, nil
}

func (s *fakeProfileStore) DebitCredit(ctx context.Context, userID, recordID string, observed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debitCalls++
	if s.debitErr != nil {
		return s.debitErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return repository.ErrCreditConflict
	}
	p, ok := s.profiles[userID]
	if !ok {
		return repository.ErrProfileNotFound
	}
	if s.debited[recordID] {
		return repository.ErrAlreadyDebited
	}
	if p.Credits != observed || p.Credits <= 0 {
		return repository.ErrCreditConflict
	}
	p.Credits--
	s.profiles[userID] = p
	s.debited[recordID] = true
	return nil
}

func (s *fakeProfileStore) HasDebit(ctx context.Context, recordID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debited[recordID], nil
}

func (s *fakeProfileStore) UpdatePlan(ctx context.Context, userID string, plan model.Plan, credits int) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	p.Plan = plan
	p.Credits = credits
	s.profiles[userID] = p
	return &p, nil
}

func (s *fakeProfileStore) RefillCredits(ctx context.Context, allowances map[model.Plan]int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refilled = allowances
	var n int64
	for id, p := range s.profiles {
		if credits, ok := allowances[p.Plan]; ok {
			p.Credits = credits
			s.profiles[id] = p
			n++
		}
	}
	return n, nil
}

type fakeHistoryStore struct {
	mu        sync.Mutex
	records   []model.HumanizationRecord
	insertErr error
	// onInsert runs before a record is stored.
	onInsert func(ctx context.Context)
}

func (s *fakeHistoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeHistoryStore) InsertRecord(ctx context.Context, rec *model.HumanizationRecord) error {
	if s.onInsert != nil {
		s.onInsert(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *fakeHistoryStore) ListRecordsByUser(ctx context.Context, userID string) ([]*model.HumanizationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.HumanizationRecord, 0)
	for i := range s.records {
		if s.records[i].UserID == userID {
			rec := s.records[i]
			out = append(out, &rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type fakeSubmitter struct {
	id    string
	err   error
	calls int
	text  string
	opts  model.RewriteOptions
}

func (s *fakeSubmitter) Submit(ctx context.Context, text string, opts model.RewriteOptions) (string, error) {
	s.calls++
	s.text = text
	s.opts = opts
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

type pollResponse struct {
	job *model.RewriteJob
	err error
}

// fakeChecker replays scripted responses; past the script it reports pending.
type fakeChecker struct {
	responses []pollResponse
	calls     int
}

func (c *fakeChecker) PollOnce(ctx context.Context, documentID string) (*model.RewriteJob, error) {
	c.calls++
	if c.calls <= len(c.responses) {
		r := c.responses[c.calls-1]
		return r.job, r.err
	}
	return pending(), nil
}

func pending() *model.RewriteJob {
	return &model.RewriteJob{DocumentID: "doc-1", Status: model.JobPolling}
}

func done(output string) *model.RewriteJob {
	return &model.RewriteJob{DocumentID: "doc-1", Status: model.JobDone, Output: output}
}

func failed() *model.RewriteJob {
	return &model.RewriteJob{DocumentID: "doc-1", Status: model.JobFailed}
}

// countingSleeper records waits without blocking.
type countingSleeper struct {
	calls  int
	before func(call int)
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls++
	if s.before != nil {
		s.before(s.calls)
	}
	return ctx.Err()
}

type fakeLocker struct {
	held       map[string]string
	acquireErr error
	released   []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) AcquireInflight(ctx context.Context, userID string, ttl time.Duration) (string, bool, error) {
	if l.acquireErr != nil {
		return "", false, l.acquireErr
	}
	if _, ok := l.held[userID]; ok {
		return "", false, nil
	}
	token := "token-" + userID
	l.held[userID] = token
	return token, true, nil
}

func (l *fakeLocker) ReleaseInflight(ctx context.Context, userID, token string) error {
	if l.held[userID] == token {
		delete(l.held, userID)
	}
	l.released = append(l.released, token)
	return nil
}

type publishedDebit struct {
	userID   string
	recordID string
}

type fakeReconciler struct {
	published []publishedDebit
}

func (r *fakeReconciler) PublishDebitFailure(ctx context.Context, userID, recordID string) error {
	r.published = append(r.published, publishedDebit{userID: userID, recordID: recordID})
	return nil
}
