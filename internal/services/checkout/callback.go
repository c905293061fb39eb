package checkout

import (
	"context"
	"errors"

	"github.com/guregu/null"
	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/poller"
)

type CallbackState string

const (
	CallbackSuccess CallbackState = "success"
	CallbackError   CallbackState = "error"
	CallbackTimeout CallbackState = "timeout"

	ActionRetry     = "retry"
	ActionDashboard = "dashboard"

	ResultCancel = "cancel"
)

// CallbackView is what the user sees after returning from the payment page.
type CallbackView struct {
	State      CallbackState        `json:"state"`
	PaymentRef string               `json:"paymentRef,omitempty"`
	Status     domain.PaymentStatus `json:"status,omitempty"`
	IdeaID     string               `json:"ideaId,omitempty"`
	Message    string               `json:"message,omitempty"`
	Actions    []string             `json:"actions,omitempty"`
	Redirect   string               `json:"redirect,omitempty"`
}

// ResolveCallback settles the state of a payment the user was redirected
// back from. A payment still pending when the callback poll gives up stays
// PENDING; the owner side keeps watching it.
func (s *Service) ResolveCallback(ctx context.Context, paymentRef, result string) (*CallbackView, error) {
	if paymentRef == "" {
		return &CallbackView{
			State:   CallbackError,
			Message: domain.ErrMissingPaymentRef.Error(),
			Actions: []string{ActionDashboard},
		}, domain.ErrMissingPaymentRef
	}

	session, err := s.repo.GetPaymentSession(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	status := session.Status
	if !status.IsTerminal() {
		if result == ResultCancel {
			if err := s.provider.Cancel(ctx, paymentRef); err != nil {
				s.logger.Warn("failed to cancel payment after callback", zap.String("payment_ref", paymentRef), zap.Error(err))
			}
		}

		status, err = s.poll(ctx, s.observer, observerPoller, paymentRef)
		switch {
		case errors.Is(err, poller.ErrTimeout):
			return &CallbackView{
				State:      CallbackTimeout,
				PaymentRef: paymentRef,
				Status:     domain.PaymentStatusPending,
				Message:    "payment confirmation is taking longer than expected",
				Actions:    []string{ActionDashboard},
			}, nil
		case err != nil:
			return nil, err
		}
		if status, err = s.record(ctx, paymentRef, status, observerPoller, null.String{}); err != nil {
			return nil, err
		}
	}

	if status != domain.PaymentStatusCompleted {
		return &CallbackView{
			State:      CallbackError,
			PaymentRef: paymentRef,
			Status:     status,
			Message:    "payment " + paymentRef + " was not completed",
			Actions:    []string{ActionRetry, ActionDashboard},
		}, nil
	}

	view := &CallbackView{
		State:      CallbackSuccess,
		PaymentRef: paymentRef,
		Status:     status,
		Redirect:   domain.DashboardPath,
	}
	if idea, err := s.Submit(ctx, paymentRef); err == nil {
		view.IdeaID = idea.ID
	} else {
		view.Message = "payment confirmed, your idea is being submitted"
	}
	return view, nil
}
