package domain

import "context"

type CheckoutRequest struct {
	DraftID        string
	UserID         string
	Title          string
	Amount         int64 // Minor units
	Currency       string
	IdempotencyKey string
}

// CheckoutSession is the provider's view of a payment.
type CheckoutSession struct {
	PaymentRef string
	PayURL     string
	Status     PaymentStatus
}

// PaymentProvider creates hosted payment pages and reports their status.
type PaymentProvider interface {
	Initiate(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	Status(ctx context.Context, paymentRef string) (PaymentStatus, error)
	// Cancel stops a session from accepting a payment. Cancelling a session
	// that is already closed is not an error.
	Cancel(ctx context.Context, paymentRef string) error
}
