package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null"
	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/metrics"
	"github.com/GalaDe/ideas-service/internal/poller"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

const (
	ownerPoller    = "owner"
	observerPoller = "callback"
)

// DraftStore is the subset of draft storage the checkout flow needs.
type DraftStore interface {
	Get(ctx context.Context, id string) (*wizard.Draft, error)
	Update(ctx context.Context, id string, fn func(d *wizard.Draft) error) (*wizard.Draft, error)
	Delete(ctx context.Context, id string) error
}

// SubmissionStarter hands a freshly initiated payment to the durable
// post-payment flow.
type SubmissionStarter interface {
	StartSubmission(ctx context.Context, paymentRef string) error
}

type Config struct {
	OwnerPolicy    poller.Policy
	ObserverPolicy poller.Policy
}

// DefaultConfig polls every 5s for 10 minutes on the owner side and every
// 2s for 2 minutes when the user returns from the payment page.
func DefaultConfig() Config {
	return Config{
		OwnerPolicy:    poller.Policy{Interval: 5 * time.Second, MaxAttempts: 120},
		ObserverPolicy: poller.Policy{Interval: 2 * time.Second, MaxAttempts: 60},
	}
}

type Service struct {
	repo     domain.Repository
	tx       domain.Transactor
	provider domain.PaymentProvider
	drafts   DraftStore
	starter  SubmissionStarter
	logger   *zap.Logger

	owner    *poller.Group[domain.PaymentStatus]
	observer *poller.Group[domain.PaymentStatus]
}

func NewService(cfg Config, repo domain.Repository, tx domain.Transactor, provider domain.PaymentProvider,
	drafts DraftStore, starter SubmissionStarter, logger *zap.Logger) *Service {
	s := &Service{
		repo:     repo,
		tx:       tx,
		provider: provider,
		drafts:   drafts,
		starter:  starter,
		logger:   logger,
	}
	s.owner = poller.NewGroup(cfg.OwnerPolicy, isTerminal, s.pollErrorLogger(ownerPoller))
	s.observer = poller.NewGroup(cfg.ObserverPolicy, isTerminal, s.pollErrorLogger(observerPoller))
	return s
}

func isTerminal(status domain.PaymentStatus) bool {
	return status.IsTerminal()
}

func (s *Service) pollErrorLogger(name string) func(key string, attempt int, err error) {
	return func(key string, attempt int, err error) {
		s.logger.Warn("payment status poll failed",
			zap.String("poller", name),
			zap.String("payment_ref", key),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

// ownedDraft loads a draft and hides drafts of other users.
func (s *Service) ownedDraft(ctx context.Context, userID, draftID string) (*wizard.Draft, error) {
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// Initiate opens a payment session for a draft that is ready to submit.
func (s *Service) Initiate(ctx context.Context, userID, draftID string) (*domain.PaymentSession, error) {
	draft, err := s.ownedDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.State.CurrentStep != wizard.StepReview {
		return nil, domain.ErrNotReadyForPayment
	}
	if err := draft.State.Validate(); err != nil {
		return nil, err
	}

	previousRef := draft.PaymentRef
	if previousRef != "" {
		prev, err := s.repo.GetPaymentSession(ctx, previousRef)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, err
		case prev.Status == domain.PaymentStatusPending:
			return nil, domain.ErrPaymentPending
		case prev.Status == domain.PaymentStatusCompleted:
			return nil, domain.ErrAlreadyPaid
		}
	}

	amount := domain.MinorUnits(domain.SubmissionFee)
	cs, err := s.provider.Initiate(ctx, &domain.CheckoutRequest{
		DraftID:        draft.ID,
		UserID:         userID,
		Title:          draft.State.FormData.Title,
		Amount:         amount,
		Currency:       domain.SubmissionCurrency,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		metrics.PaymentSessionsInitiated.WithLabelValues("error").Inc()
		s.logger.Error("payment initiation failed", zap.String("draft_id", draft.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrInitiationFailed, err)
	}

	session := &domain.PaymentSession{
		PaymentRef: cs.PaymentRef,
		DraftID:    draft.ID,
		UserID:     userID,
		Amount:     amount,
		Currency:   domain.SubmissionCurrency,
		PayURL:     cs.PayURL,
		Status:     domain.PaymentStatusPending,
		Payload:    draft.State.BuildSubmission(cs.PaymentRef),
	}
	if err := s.repo.InsertPaymentSession(ctx, session); err != nil {
		s.abandon(ctx, cs.PaymentRef, err)
		return nil, err
	}

	// A concurrent initiation for the same draft may have won in the meantime.
	_, err = s.drafts.Update(ctx, draft.ID, func(d *wizard.Draft) error {
		if d.PaymentRef != previousRef {
			return domain.ErrPaymentPending
		}
		d.PaymentRef = session.PaymentRef
		return nil
	})
	if err != nil {
		s.abandon(ctx, session.PaymentRef, err)
		return nil, err
	}

	metrics.PaymentSessionsInitiated.WithLabelValues("ok").Inc()
	s.logger.Info("payment session initiated",
		zap.String("payment_ref", session.PaymentRef),
		zap.String("draft_id", draft.ID),
		zap.String("user_id", userID))

	if s.starter != nil {
		if err := s.starter.StartSubmission(ctx, session.PaymentRef); err != nil {
			s.logger.Error("failed to start submission workflow",
				zap.String("payment_ref", session.PaymentRef), zap.Error(err))
		}
	}
	return session, nil
}

// abandon closes a session that could not be attached to its draft.
func (s *Service) abandon(ctx context.Context, paymentRef string, cause error) {
	if err := s.provider.Cancel(ctx, paymentRef); err != nil {
		s.logger.Warn("failed to cancel abandoned payment session", zap.String("payment_ref", paymentRef), zap.Error(err))
	}
	if _, err := s.repo.UpdatePaymentStatus(ctx, paymentRef, domain.PaymentStatusCancelled, null.StringFrom(cause.Error())); err != nil {
		s.logger.Warn("failed to record abandoned payment session", zap.String("payment_ref", paymentRef), zap.Error(err))
	}
}

// Payment returns one of the user's payment sessions.
func (s *Service) Payment(ctx context.Context, userID, paymentRef string) (*domain.PaymentSession, error) {
	session, err := s.repo.GetPaymentSession(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

func (s *Service) Payments(ctx context.Context, userID string) ([]*domain.PaymentSession, error) {
	return s.repo.ListPaymentSessionsByUser(ctx, userID)
}

func (s *Service) Idea(ctx context.Context, userID, ideaID string) (*domain.Idea, error) {
	idea, err := s.repo.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if idea.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return idea, nil
}

func (s *Service) Ideas(ctx context.Context, userID string) ([]*domain.Idea, error) {
	return s.repo.ListIdeasByUser(ctx, userID)
}
