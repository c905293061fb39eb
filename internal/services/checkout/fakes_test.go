package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guregu/null"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

type fakeRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.PaymentSession
	ideas     map[string]*domain.Idea
	calls     int
	inserts   int
	insertErr error
	failures  []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[string]*domain.PaymentSession),
		ideas:    make(map[string]*domain.Idea),
	}
}

func (r *fakeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRepo) session(ref string) *domain.PaymentSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[ref]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *fakeRepo) InsertPaymentSession(_ context.Context, s *domain.PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if _, ok := r.sessions[s.PaymentRef]; ok {
		return domain.ErrDuplicate
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	r.sessions[s.PaymentRef] = &cp
	return nil
}

func (r *fakeRepo) GetPaymentSession(_ context.Context, ref string) (*domain.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s, ok := r.sessions[ref]
	if !ok {
		return nil, fmt.Errorf("get payment session %s: %w", ref, domain.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) LockPaymentSession(ctx context.Context, ref string) (*domain.PaymentSession, error) {
	return r.GetPaymentSession(ctx, ref)
}

func (r *fakeRepo) UpdatePaymentStatus(_ context.Context, ref string, status domain.PaymentStatus, lastError null.String) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s, ok := r.sessions[ref]
	if !ok || s.Status != domain.PaymentStatusPending {
		return false, nil
	}
	s.Status = status
	s.LastError = lastError
	return true, nil
}

func (r *fakeRepo) ConfirmLatePayment(_ context.Context, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s, ok := r.sessions[ref]
	if !ok || (s.Status != domain.PaymentStatusTimeout && s.Status != domain.PaymentStatusCancelled) {
		return false, nil
	}
	s.Status = domain.PaymentStatusCompleted
	s.LastError = null.String{}
	return true, nil
}

func (r *fakeRepo) SetPaymentIdea(_ context.Context, ref, ideaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s, ok := r.sessions[ref]
	if !ok {
		return domain.ErrNotFound
	}
	s.IdeaID = null.StringFrom(ideaID)
	s.LastError = null.String{}
	return nil
}

func (r *fakeRepo) RecordSubmissionFailure(_ context.Context, ref, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if s, ok := r.sessions[ref]; ok {
		s.Attempts++
		s.LastError = null.StringFrom(message)
	}
	r.failures = append(r.failures, message)
	return nil
}

func (r *fakeRepo) ListPaymentSessionsByUser(_ context.Context, userID string) ([]*domain.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	out := make([]*domain.PaymentSession, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertIdea(_ context.Context, idea *domain.Idea) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.insertErr != nil {
		return false, r.insertErr
	}
	for _, existing := range r.ideas {
		if existing.PaymentRef == idea.PaymentRef {
			return false, nil
		}
	}
	r.inserts++
	cp := *idea
	r.ideas[idea.ID] = &cp
	return true, nil
}

func (r *fakeRepo) GetIdeaByID(_ context.Context, id string) (*domain.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	idea, ok := r.ideas[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *idea
	return &cp, nil
}

func (r *fakeRepo) GetIdeaByPaymentRef(_ context.Context, ref string) (*domain.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, idea := range r.ideas {
		if idea.PaymentRef == ref {
			cp := *idea
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get idea: %w", domain.ErrNotFound)
}

func (r *fakeRepo) ListIdeasByUser(_ context.Context, userID string) ([]*domain.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	out := make([]*domain.Idea, 0)
	for _, idea := range r.ideas {
		if idea.UserID == userID {
			cp := *idea
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeTx serializes transactions, which is what the row lock gives Submit.
type fakeTx struct {
	mu sync.Mutex
}

func (t *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

type fakeProvider struct {
	mu          sync.Mutex
	refs        []string
	initiateErr error
	cancelErr   error
	statuses    map[string][]domain.PaymentStatus
	afterCancel map[string]domain.PaymentStatus
	initiated   []*domain.CheckoutRequest
	statusCalls map[string]int
	cancelled   []string
}

func newFakeProvider(refs ...string) *fakeProvider {
	return &fakeProvider{
		refs:        refs,
		statuses:    make(map[string][]domain.PaymentStatus),
		afterCancel: make(map[string]domain.PaymentStatus),
		statusCalls: make(map[string]int),
	}
}

func (p *fakeProvider) script(ref string, statuses ...domain.PaymentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[ref] = statuses
}

func (p *fakeProvider) Initiate(_ context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initiated = append(p.initiated, req)
	if p.initiateErr != nil {
		return nil, p.initiateErr
	}
	if len(p.refs) == 0 {
		return nil, errors.New("no more refs")
	}
	ref := p.refs[0]
	p.refs = p.refs[1:]
	return &domain.CheckoutSession{
		PaymentRef: ref,
		PayURL:     "https://pay.example/" + ref[len("pay_"):],
		Status:     domain.PaymentStatusPending,
	}, nil
}

// Status replays the scripted sequence and then repeats its last entry.
func (p *fakeProvider) Status(_ context.Context, ref string) (domain.PaymentStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.statusCalls[ref]
	p.statusCalls[ref] = n + 1

	for _, c := range p.cancelled {
		if c == ref {
			if s, ok := p.afterCancel[ref]; ok {
				return s, nil
			}
			return domain.PaymentStatusCancelled, nil
		}
	}

	seq := p.statuses[ref]
	if len(seq) == 0 {
		return domain.PaymentStatusPending, nil
	}
	if n >= len(seq) {
		return seq[len(seq)-1], nil
	}
	return seq[n], nil
}

func (p *fakeProvider) Cancel(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelErr != nil {
		return p.cancelErr
	}
	p.cancelled = append(p.cancelled, ref)
	return nil
}

func (p *fakeProvider) calls(ref string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCalls[ref]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.initiated) + len(p.cancelled)
	for _, c := range p.statusCalls {
		n += c
	}
	return n
}

type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[string]*wizard.Draft
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[string]*wizard.Draft)}
}

func (f *fakeDrafts) put(d *wizard.Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[d.ID] = d
}

func (f *fakeDrafts) Get(_ context.Context, id string) (*wizard.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDrafts) Update(_ context.Context, id string, fn func(d *wizard.Draft) error) (*wizard.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	if err := fn(&cp); err != nil {
		return nil, err
	}
	f.drafts[id] = &cp
	return &cp, nil
}

func (f *fakeDrafts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, id)
	return nil
}

type fakeStarter struct {
	mu      sync.Mutex
	started []string
	err     error
}

func (f *fakeStarter) StartSubmission(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, ref)
	return f.err
}
