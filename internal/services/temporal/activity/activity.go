package activity

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/GalaDe/ideas-service/internal/domain"
)

const (
	AwaitPaymentActivity = "AwaitPaymentActivity"
	SubmitIdeaActivity   = "SubmitIdeaActivity"

	// ErrTypePaymentNotConfirmed marks submissions that must not be retried.
	ErrTypePaymentNotConfirmed = "PaymentNotConfirmed"

	_defaultHeartbeatInterval = 10 * time.Second
)

// Checkout is the part of the checkout service driven by the workflow.
type Checkout interface {
	AwaitPayment(ctx context.Context, paymentRef string) (domain.PaymentStatus, error)
	Submit(ctx context.Context, paymentRef string) (*domain.Idea, error)
}

// Registry is satisfied by a worker and by the Temporal test environments.
type Registry interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

type TemporalActivityPort struct {
	checkout          Checkout
	heartbeatInterval time.Duration
}

func NewTemporalActivityPort(checkout Checkout, heartbeatInterval time.Duration) *TemporalActivityPort {
	if heartbeatInterval <= 0 {
		heartbeatInterval = _defaultHeartbeatInterval
	}
	return &TemporalActivityPort{
		checkout:          checkout,
		heartbeatInterval: heartbeatInterval,
	}
}

func (a *TemporalActivityPort) RegisterActivities(w Registry) {
	w.RegisterActivityWithOptions(a.awaitPaymentActivity, activity.RegisterOptions{Name: AwaitPaymentActivity})
	w.RegisterActivityWithOptions(a.submitIdeaActivity, activity.RegisterOptions{Name: SubmitIdeaActivity})
}

// awaitPaymentActivity polls until the payment is terminal. It heartbeats
// while waiting so a lost worker is noticed long before the poll cap.
func (a *TemporalActivityPort) awaitPaymentActivity(ctx context.Context, paymentRef string) (domain.PaymentStatus, error) {
	stop := a.heartbeat(ctx, paymentRef)
	defer stop()

	status, err := a.checkout.AwaitPayment(ctx, paymentRef)
	if err != nil {
		return "", err
	}
	activity.GetLogger(ctx).Info("payment settled", "payment_ref", paymentRef, "status", status)
	return status, nil
}

func (a *TemporalActivityPort) heartbeat(ctx context.Context, paymentRef string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, paymentRef)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

type SubmitIdeaOutput struct {
	IdeaID string `json:"idea_id"`
}

func (a *TemporalActivityPort) submitIdeaActivity(ctx context.Context, paymentRef string) (*SubmitIdeaOutput, error) {
	idea, err := a.checkout.Submit(ctx, paymentRef)
	if errors.Is(err, domain.ErrPaymentNotConfirmed) || errors.Is(err, domain.ErrNotFound) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePaymentNotConfirmed, err)
	}
	if err != nil {
		activity.GetLogger(ctx).Warn("idea submission attempt failed",
			"payment_ref", paymentRef, "attempt", activity.GetInfo(ctx).Attempt, "error", err)
		return nil, err
	}
	return &SubmitIdeaOutput{IdeaID: idea.ID}, nil
}
