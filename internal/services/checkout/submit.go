package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/metrics"
)

// Submit creates the idea paid for by paymentRef. It can be called any
// number of times; every call after the first returns the same idea.
func (s *Service) Submit(ctx context.Context, paymentRef string) (*domain.Idea, error) {
	start := time.Now()

	var (
		idea    *domain.Idea
		draftID string
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		session, err := s.repo.LockPaymentSession(ctx, paymentRef)
		if err != nil {
			return err
		}
		draftID = session.DraftID
		if session.Status != domain.PaymentStatusCompleted {
			return domain.ErrPaymentNotConfirmed
		}

		idea, err = s.repo.GetIdeaByPaymentRef(ctx, paymentRef)
		switch {
		case err == nil:
			if !session.IdeaID.Valid {
				return s.repo.SetPaymentIdea(ctx, paymentRef, idea.ID)
			}
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if session.Payload == nil {
			return fmt.Errorf("payment %s has no submission payload", paymentRef)
		}
		idea = newIdea(session)
		inserted, err := s.repo.InsertIdea(ctx, idea)
		if err != nil {
			return err
		}
		if !inserted {
			if idea, err = s.repo.GetIdeaByPaymentRef(ctx, paymentRef); err != nil {
				return err
			}
		}
		return s.repo.SetPaymentIdea(ctx, paymentRef, idea.ID)
	})
	if err != nil {
		metrics.IdeaSubmissions.WithLabelValues("error").Inc()
		if !errors.Is(err, domain.ErrPaymentNotConfirmed) && !errors.Is(err, domain.ErrNotFound) {
			s.recordFailure(ctx, paymentRef, err)
		}
		return nil, err
	}

	metrics.IdeaSubmissions.WithLabelValues("ok").Inc()
	metrics.IdeaSubmissionDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("idea submitted", zap.String("payment_ref", paymentRef), zap.String("idea_id", idea.ID))

	s.discardDraft(ctx, draftID, paymentRef)
	return idea, nil
}

// discardDraft deletes the submitted draft unless it already belongs to a
// newer payment.
func (s *Service) discardDraft(ctx context.Context, draftID, paymentRef string) {
	d, err := s.drafts.Get(ctx, draftID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err == nil && d.PaymentRef != "" && d.PaymentRef != paymentRef {
		return
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		s.logger.Warn("failed to discard submitted draft", zap.String("draft_id", draftID), zap.Error(err))
	}
}

func (s *Service) recordFailure(ctx context.Context, paymentRef string, cause error) {
	s.logger.Error("idea submission failed", zap.String("payment_ref", paymentRef), zap.Error(cause))
	if err := s.repo.RecordSubmissionFailure(ctx, paymentRef, cause.Error()); err != nil {
		s.logger.Error("failed to record submission failure", zap.String("payment_ref", paymentRef), zap.Error(err))
	}
}

func newIdea(session *domain.PaymentSession) *domain.Idea {
	p := session.Payload
	return &domain.Idea{
		ID:             uuid.NewString(),
		UserID:         session.UserID,
		PaymentRef:     session.PaymentRef,
		Title:          p.Title,
		Description:    p.Description,
		Category:       p.Category,
		Status:         domain.IdeaStatusSubmitted,
		AdditionalData: p.AdditionalData,
		CreatedAt:      time.Now().UTC(),
	}
}
