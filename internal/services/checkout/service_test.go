package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/metrics"
	"github.com/GalaDe/ideas-service/internal/poller"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

const (
	testUser  = "user-1"
	testTitle = "Solar Roof Tiles"
	testDesc  = "A modular photovoltaic roofing tile system for residential retrofits"
)

type harness struct {
	svc      *Service
	repo     *fakeRepo
	provider *fakeProvider
	drafts   *fakeDrafts
	starter  *fakeStarter
}

func testConfig() Config {
	return Config{
		OwnerPolicy:    poller.Policy{Interval: time.Millisecond, MaxAttempts: 20},
		ObserverPolicy: poller.Policy{Interval: time.Millisecond, MaxAttempts: 10},
	}
}

func newHarness(t *testing.T, cfg Config, refs ...string) *harness {
	t.Helper()
	h := &harness{
		repo:     newFakeRepo(),
		provider: newFakeProvider(refs...),
		drafts:   newFakeDrafts(),
		starter:  &fakeStarter{},
	}
	h.svc = NewService(cfg, h.repo, &fakeTx{}, h.provider, h.drafts, h.starter, zaptest.NewLogger(t))
	return h
}

// reviewDraft stores a draft that went through every step.
func (h *harness) reviewDraft(t *testing.T) *wizard.Draft {
	t.Helper()
	d := wizard.NewDraft(testUser)
	require.NoError(t, d.State.HandleInputChange("title", testTitle))
	require.NoError(t, d.State.HandleInputChange("description", testDesc))
	require.NoError(t, d.State.HandleInputChange("category", "cleantech"))
	for d.State.CurrentStep != wizard.StepReview {
		require.NoError(t, d.State.NextStep())
	}
	h.drafts.put(d)
	return d
}

func (h *harness) draftRef(t *testing.T, id string) string {
	t.Helper()
	d, err := h.drafts.Get(context.Background(), id)
	require.NoError(t, err)
	return d.PaymentRef
}

func TestInitiate(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_123")
	d := h.reviewDraft(t)

	session, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	assert.Equal(t, "pay_123", session.PaymentRef)
	assert.Equal(t, "https://pay.example/123", session.PayURL)
	assert.Equal(t, domain.PaymentStatusPending, session.Status)
	assert.Equal(t, int64(10000), session.Amount)

	stored := h.repo.session("pay_123")
	require.NotNil(t, stored)
	require.NotNil(t, stored.Payload)
	assert.Equal(t, testTitle, stored.Payload.Title)
	assert.Equal(t, "pay_123", stored.Payload.PaymentRef)

	require.Len(t, h.provider.initiated, 1)
	assert.Equal(t, int64(10000), h.provider.initiated[0].Amount)
	assert.Equal(t, "usd", h.provider.initiated[0].Currency)
	assert.NotEmpty(t, h.provider.initiated[0].IdempotencyKey)

	assert.Equal(t, "pay_123", h.draftRef(t, d.ID))
	assert.Equal(t, []string{"pay_123"}, h.starter.started)
}

func TestInitiate_Rejected(t *testing.T) {
	t.Run("not on review step", func(t *testing.T) {
		h := newHarness(t, testConfig(), "pay_1")
		d := wizard.NewDraft(testUser)
		h.drafts.put(d)

		_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
		assert.ErrorIs(t, err, domain.ErrNotReadyForPayment)
		assert.Zero(t, h.provider.totalCalls())
	})

	t.Run("required fields cleared on review", func(t *testing.T) {
		h := newHarness(t, testConfig(), "pay_1")
		d := h.reviewDraft(t)
		d.State.FormData.Title = " "

		_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
		assert.True(t, wizard.IsValidationError(err))
		assert.Zero(t, h.provider.totalCalls())
	})

	t.Run("draft of another user", func(t *testing.T) {
		h := newHarness(t, testConfig(), "pay_1")
		d := h.reviewDraft(t)

		_, err := h.svc.Initiate(context.Background(), "user-2", d.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestInitiate_NoDuplicateWhilePending(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1", "pay_2")
	d := h.reviewDraft(t)

	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	_, err = h.svc.Initiate(context.Background(), testUser, d.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentPending)
	assert.Len(t, h.provider.initiated, 1)
}

func TestInitiate_AlreadyPaid(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1", "pay_2")
	d := h.reviewDraft(t)

	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)
	_, err = h.svc.RecordProviderStatus(context.Background(), "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)

	_, err = h.svc.Initiate(context.Background(), testUser, d.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestInitiate_ProviderFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.provider.initiateErr = errors.New("provider down")
	d := h.reviewDraft(t)

	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	assert.ErrorIs(t, err, domain.ErrInitiationFailed)

	assert.Empty(t, h.repo.sessions)
	assert.Empty(t, h.draftRef(t, d.ID))
	assert.Empty(t, h.starter.started)
}

func TestInitiate_StarterFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	h.starter.err = errors.New("temporal unavailable")
	d := h.reviewDraft(t)

	session, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", session.PaymentRef)
}

func TestAwaitPayment_StopsAtCompleted(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	h.provider.script("pay_1",
		domain.PaymentStatusPending, domain.PaymentStatusPending, domain.PaymentStatusPending,
		domain.PaymentStatusCompleted)

	status, err := h.svc.AwaitPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, status)
	assert.Equal(t, domain.PaymentStatusCompleted, h.repo.session("pay_1").Status)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, h.provider.calls("pay_1"), "no poll after the terminal status")
	assert.Zero(t, h.svc.owner.Active())
}

func TestAwaitPayment_FailedAllowsRetryWithNewRef(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1", "pay_2")
	d := h.reviewDraft(t)
	ctx := context.Background()

	_, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)
	h.provider.script("pay_1", domain.PaymentStatusPending, domain.PaymentStatusFailed)

	status, err := h.svc.AwaitPayment(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, status)
	assert.Empty(t, h.draftRef(t, d.ID), "failed session is cleared from the draft")

	retry, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_2", retry.PaymentRef)
	assert.NotEqual(t, "pay_1", retry.PaymentRef)
	assert.NotEqual(t, h.provider.initiated[0].IdempotencyKey, h.provider.initiated[1].IdempotencyKey)
}

func TestAwaitPayment_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.OwnerPolicy.MaxAttempts = 3
	h := newHarness(t, cfg, "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	status, err := h.svc.AwaitPayment(context.Background(), "pay_1")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusTimeout, status)
	assert.Equal(t, []string{"pay_1"}, h.provider.cancelled)
	stored := h.repo.session("pay_1")
	assert.Equal(t, domain.PaymentStatusTimeout, stored.Status)
	assert.Equal(t, timeoutMessage, stored.LastError.String)
	assert.Empty(t, h.draftRef(t, d.ID))
}

func TestAwaitPayment_TimeoutButPaid(t *testing.T) {
	cfg := testConfig()
	cfg.OwnerPolicy.MaxAttempts = 2
	h := newHarness(t, cfg, "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)
	h.provider.afterCancel["pay_1"] = domain.PaymentStatusCompleted

	status, err := h.svc.AwaitPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, status)
}

func TestAwaitPayment_CancelFailureKeepsSessionOpen(t *testing.T) {
	cfg := testConfig()
	cfg.OwnerPolicy.MaxAttempts = 2
	h := newHarness(t, cfg, "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)
	h.provider.cancelErr = errors.New("stripe unavailable")

	_, err = h.svc.AwaitPayment(context.Background(), "pay_1")
	require.ErrorIs(t, err, domain.ErrPaymentUnsettled)

	assert.Equal(t, domain.PaymentStatusPending, h.repo.session("pay_1").Status)
	assert.Equal(t, "pay_1", h.draftRef(t, d.ID), "draft stays bound to the open session")

	// The user pays after all and the webhook arrives.
	status, err := h.svc.RecordProviderStatus(context.Background(), "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, status)
	idea, err := h.svc.Submit(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", idea.PaymentRef)
}

func TestAwaitPayment_CancelFailureOnClosedSession(t *testing.T) {
	cfg := testConfig()
	cfg.OwnerPolicy.MaxAttempts = 2
	h := newHarness(t, cfg, "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)
	h.provider.cancelErr = errors.New("session is not open")
	h.provider.script("pay_1", domain.PaymentStatusPending, domain.PaymentStatusPending, domain.PaymentStatusCancelled)

	status, err := h.svc.AwaitPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusTimeout, status)
	assert.Empty(t, h.draftRef(t, d.ID))
}

func TestRecordProviderStatus_LateCompletion(t *testing.T) {
	tests := []struct {
		name   string
		closed domain.PaymentStatus
		want   domain.PaymentStatus
	}{
		{"after timeout", domain.PaymentStatusTimeout, domain.PaymentStatusCompleted},
		{"after cancel", domain.PaymentStatusCancelled, domain.PaymentStatusCompleted},
		{"failed stays failed", domain.PaymentStatusFailed, domain.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig(), "pay_1")
			d := h.reviewDraft(t)
			ctx := context.Background()
			_, err := h.svc.Initiate(ctx, testUser, d.ID)
			require.NoError(t, err)
			_, err = h.svc.RecordProviderStatus(ctx, "pay_1", tt.closed)
			require.NoError(t, err)

			status, err := h.svc.RecordProviderStatus(ctx, "pay_1", domain.PaymentStatusCompleted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.want, h.repo.session("pay_1").Status)

			_, err = h.svc.Submit(ctx, "pay_1")
			if tt.want == domain.PaymentStatusCompleted {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrPaymentNotConfirmed)
			}
		})
	}
}

func TestRecordProviderStatus_LateCompletionFlagsDuplicatePayment(t *testing.T) {
	cfg := testConfig()
	cfg.OwnerPolicy.MaxAttempts = 2
	h := newHarness(t, cfg, "pay_1", "pay_2")
	core, logs := observer.New(zap.ErrorLevel)
	h.svc = NewService(cfg, h.repo, &fakeTx{}, h.provider, h.drafts, h.starter, zap.New(core))
	d := h.reviewDraft(t)
	ctx := context.Background()

	_, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)
	status, err := h.svc.AwaitPayment(ctx, "pay_1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusTimeout, status)
	_, err = h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)

	status, err = h.svc.RecordProviderStatus(ctx, "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, status)

	entries := logs.FilterMessage("payment confirmed after its session was closed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["refund_review"])

	_, err = h.svc.Submit(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_2", h.draftRef(t, d.ID), "draft of the newer payment is kept")
}

func TestAwaitPayment_UsesStoredTerminalStatus(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	_, err = h.svc.RecordProviderStatus(context.Background(), "pay_1", domain.PaymentStatusCancelled)
	require.NoError(t, err)

	status, err := h.svc.AwaitPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, status)
	assert.Zero(t, h.provider.calls("pay_1"))
}

func TestRecordProviderStatus_FirstWriterWins(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	status, err := h.svc.RecordProviderStatus(context.Background(), "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, status)

	status, err = h.svc.RecordProviderStatus(context.Background(), "pay_1", domain.PaymentStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, status)
	assert.Equal(t, "pay_1", h.draftRef(t, d.ID))
}

func TestComplete_EndToEnd(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_123")
	d := h.reviewDraft(t)
	ctx := context.Background()

	session, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/123", session.PayURL)

	h.provider.script("pay_123",
		domain.PaymentStatusPending, domain.PaymentStatusPending, domain.PaymentStatusCompleted)

	out, err := h.svc.Complete(ctx, "pay_123")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, out.Status)
	assert.Equal(t, "/dashboard", out.Redirect)
	require.NotNil(t, out.Idea)
	assert.Equal(t, "pay_123", out.Idea.PaymentRef)
	assert.Equal(t, testTitle, out.Idea.Title)
	assert.Equal(t, testUser, out.Idea.UserID)
	assert.Equal(t, 1, h.repo.inserts)
	assert.Equal(t, out.Idea.ID, h.repo.session("pay_123").IdeaID.String)

	_, err = h.drafts.Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "submitted draft is discarded")

	again, err := h.svc.Submit(ctx, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, out.Idea.ID, again.ID)
	assert.Equal(t, 1, h.repo.inserts)
}

func TestComplete_NotPaid(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)
	h.provider.script("pay_1", domain.PaymentStatusCancelled)

	out, err := h.svc.Complete(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, out.Status)
	assert.Nil(t, out.Idea)
	assert.Empty(t, out.Redirect)
	assert.Zero(t, h.repo.inserts)
}

func TestSubmit_RequiresConfirmedPayment(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	_, err := h.svc.Initiate(context.Background(), testUser, d.ID)
	require.NoError(t, err)

	_, err = h.svc.Submit(context.Background(), "pay_1")
	assert.ErrorIs(t, err, domain.ErrPaymentNotConfirmed)
	assert.Empty(t, h.repo.failures)

	_, err = h.svc.Submit(context.Background(), "pay_unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmit_FailureIsRecordedAndRetried(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	ctx := context.Background()
	_, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)
	_, err = h.svc.RecordProviderStatus(ctx, "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)

	failed := testutil.ToFloat64(metrics.IdeaSubmissions.WithLabelValues("error"))
	ok := testutil.ToFloat64(metrics.IdeaSubmissions.WithLabelValues("ok"))

	h.repo.insertErr = errors.New("connection reset")
	_, err = h.svc.Submit(ctx, "pay_1")
	require.Error(t, err)
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.IdeaSubmissions.WithLabelValues("error")))

	stored := h.repo.session("pay_1")
	assert.Equal(t, 1, stored.Attempts)
	assert.Contains(t, stored.LastError.String, "connection reset")
	_, err = h.drafts.Get(ctx, d.ID)
	assert.NoError(t, err, "draft is kept until the idea exists")

	h.repo.insertErr = nil
	idea, err := h.svc.Submit(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", idea.PaymentRef)
	assert.False(t, h.repo.session("pay_1").LastError.Valid)
	assert.Equal(t, ok+1, testutil.ToFloat64(metrics.IdeaSubmissions.WithLabelValues("ok")))
}

func TestSubmit_ConcurrentCallsCreateOneIdea(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	ctx := context.Background()
	_, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)
	_, err = h.svc.RecordProviderStatus(ctx, "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idea, err := h.svc.Submit(ctx, "pay_1")
			if err == nil {
				ids[i] = idea.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.repo.inserts)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestOwnership(t *testing.T) {
	h := newHarness(t, testConfig(), "pay_1")
	d := h.reviewDraft(t)
	ctx := context.Background()
	_, err := h.svc.Initiate(ctx, testUser, d.ID)
	require.NoError(t, err)

	got, err := h.svc.Payment(ctx, testUser, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.DraftID)

	_, err = h.svc.Payment(ctx, "user-2", "pay_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := h.svc.Payments(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = h.svc.RecordProviderStatus(ctx, "pay_1", domain.PaymentStatusCompleted)
	require.NoError(t, err)
	idea, err := h.svc.Submit(ctx, "pay_1")
	require.NoError(t, err)

	_, err = h.svc.Idea(ctx, "user-2", idea.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	ideas, err := h.svc.Ideas(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, ideas, 1)
}
