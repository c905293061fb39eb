package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("already exists")
	ErrPaymentPending      = errors.New("a payment for this draft is already pending")
	ErrAlreadyPaid         = errors.New("this draft has already been paid for")
	ErrPaymentNotConfirmed = errors.New("payment is not confirmed")
	ErrNotReadyForPayment  = errors.New("draft is not ready for payment")
	ErrMissingPaymentRef   = errors.New("missing payment reference")
	ErrInitiationFailed    = errors.New("payment initiation failed")
	ErrPaymentUnsettled    = errors.New("payment session could not be closed")
)
