package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/guregu/null"
	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/metrics"
	"github.com/GalaDe/ideas-service/internal/poller"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

const timeoutMessage = "payment was not confirmed before the polling limit"

// Outcome is the result of driving a payment to a terminal state.
type Outcome struct {
	PaymentRef string               `json:"paymentRef"`
	Status     domain.PaymentStatus `json:"status"`
	Idea       *domain.Idea         `json:"idea,omitempty"`
	Redirect   string               `json:"redirect,omitempty"`
}

// statusQuery prefers a terminal status already stored (for example by a
// webhook) and otherwise asks the provider.
func (s *Service) statusQuery(paymentRef, pollerName string) poller.Query[domain.PaymentStatus] {
	return func(ctx context.Context) (domain.PaymentStatus, error) {
		session, err := s.repo.GetPaymentSession(ctx, paymentRef)
		if err != nil {
			metrics.PaymentPolls.WithLabelValues(pollerName, "error").Inc()
			return "", err
		}
		if session.Status.IsTerminal() {
			metrics.PaymentPolls.WithLabelValues(pollerName, "stored").Inc()
			return session.Status, nil
		}

		status, err := s.provider.Status(ctx, paymentRef)
		if err != nil {
			metrics.PaymentPolls.WithLabelValues(pollerName, "error").Inc()
			return "", err
		}
		metrics.PaymentPolls.WithLabelValues(pollerName, string(status)).Inc()
		return status, nil
	}
}

func (s *Service) poll(ctx context.Context, group *poller.Group[domain.PaymentStatus], name, paymentRef string) (domain.PaymentStatus, error) {
	gauge := metrics.PaymentPollsActive.WithLabelValues(name)
	gauge.Inc()
	defer gauge.Dec()

	res, err := group.Do(ctx, paymentRef, s.statusQuery(paymentRef, name))
	return res.Value, err
}

// AwaitPayment polls a payment until it is terminal and records the result.
// When the polling cap is reached the provider session is expired so that it
// can no longer be paid, and the payment ends as TIMEOUT unless a last check
// shows it was paid after all.
func (s *Service) AwaitPayment(ctx context.Context, paymentRef string) (domain.PaymentStatus, error) {
	status, err := s.poll(ctx, s.owner, ownerPoller, paymentRef)
	switch {
	case errors.Is(err, poller.ErrTimeout):
		return s.expire(ctx, paymentRef)
	case err != nil:
		return "", err
	}
	return s.record(ctx, paymentRef, status, ownerPoller, null.String{})
}

func (s *Service) expire(ctx context.Context, paymentRef string) (domain.PaymentStatus, error) {
	s.logger.Warn("payment polling limit reached", zap.String("payment_ref", paymentRef))

	cancelErr := s.provider.Cancel(ctx, paymentRef)
	if cancelErr != nil {
		s.logger.Error("failed to expire payment session", zap.String("payment_ref", paymentRef), zap.Error(cancelErr))
	}

	status, err := s.provider.Status(ctx, paymentRef)
	switch {
	case err == nil && status == domain.PaymentStatusCompleted:
		return s.record(ctx, paymentRef, status, ownerPoller, null.String{})
	case cancelErr == nil, err == nil && status.IsTerminal():
		return s.record(ctx, paymentRef, domain.PaymentStatusTimeout, ownerPoller, null.StringFrom(timeoutMessage))
	}
	// The session may still be paid; it stays PENDING until it can be closed.
	return "", fmt.Errorf("%w: %s: %v", domain.ErrPaymentUnsettled, paymentRef, cancelErr)
}

// RecordProviderStatus applies a status pushed by the provider.
func (s *Service) RecordProviderStatus(ctx context.Context, paymentRef string, status domain.PaymentStatus) (domain.PaymentStatus, error) {
	return s.record(ctx, paymentRef, status, "webhook", null.String{})
}

// record moves a PENDING session to status. Only the first writer wins; later
// callers get the status that was stored.
func (s *Service) record(ctx context.Context, paymentRef string, status domain.PaymentStatus, source string, lastError null.String) (domain.PaymentStatus, error) {
	if !status.IsTerminal() {
		return status, nil
	}

	changed, err := s.repo.UpdatePaymentStatus(ctx, paymentRef, status, lastError)
	if err != nil {
		return "", err
	}
	session, err := s.repo.GetPaymentSession(ctx, paymentRef)
	if err != nil {
		return "", err
	}
	if !changed {
		if status == domain.PaymentStatusCompleted &&
			(session.Status == domain.PaymentStatusTimeout || session.Status == domain.PaymentStatusCancelled) {
			return s.confirmLate(ctx, session, source)
		}
		return session.Status, nil
	}

	metrics.PaymentSessionsFinished.WithLabelValues(string(status), source).Inc()
	s.logger.Info("payment session finished",
		zap.String("payment_ref", paymentRef),
		zap.String("status", string(status)),
		zap.String("source", source))

	if status.Retryable() {
		s.releaseDraft(ctx, session)
	}
	return session.Status, nil
}

// confirmLate accepts a provider confirmation for a session that was already
// closed on our side. The money was taken, so the payment counts as COMPLETED.
// If the draft went on to another payment the user may have paid twice.
func (s *Service) confirmLate(ctx context.Context, session *domain.PaymentSession, source string) (domain.PaymentStatus, error) {
	changed, err := s.repo.ConfirmLatePayment(ctx, session.PaymentRef)
	if err != nil {
		return "", err
	}
	if !changed {
		current, err := s.repo.GetPaymentSession(ctx, session.PaymentRef)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	}

	duplicate := false
	if d, err := s.drafts.Get(ctx, session.DraftID); err == nil {
		duplicate = d.PaymentRef != "" && d.PaymentRef != session.PaymentRef
	}
	metrics.PaymentSessionsFinished.WithLabelValues(string(domain.PaymentStatusCompleted), source).Inc()
	s.logger.Error("payment confirmed after its session was closed",
		zap.String("payment_ref", session.PaymentRef),
		zap.String("previous_status", string(session.Status)),
		zap.String("source", source),
		zap.Bool("refund_review", duplicate))
	return domain.PaymentStatusCompleted, nil
}

// releaseDraft clears a failed session from its draft so a new payment can
// be started.
func (s *Service) releaseDraft(ctx context.Context, session *domain.PaymentSession) {
	_, err := s.drafts.Update(ctx, session.DraftID, func(d *wizard.Draft) error {
		if d.PaymentRef == session.PaymentRef {
			d.PaymentRef = ""
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("failed to release draft", zap.String("draft_id", session.DraftID), zap.Error(err))
	}
}

// Complete waits for the payment and, once it is confirmed, submits the idea.
func (s *Service) Complete(ctx context.Context, paymentRef string) (*Outcome, error) {
	status, err := s.AwaitPayment(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	out := &Outcome{PaymentRef: paymentRef, Status: status}
	if status != domain.PaymentStatusCompleted {
		return out, nil
	}

	idea, err := s.Submit(ctx, paymentRef)
	if err != nil {
		return out, err
	}
	out.Idea = idea
	out.Redirect = domain.DashboardPath
	return out, nil
}
