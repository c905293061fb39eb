package domain

import (
	"context"

	"github.com/guregu/null"
)

type Repository interface {
	InsertPaymentSession(ctx context.Context, session *PaymentSession) error
	GetPaymentSession(ctx context.Context, paymentRef string) (*PaymentSession, error)
	// LockPaymentSession reads the session with a row lock; only meaningful inside a transaction.
	LockPaymentSession(ctx context.Context, paymentRef string) (*PaymentSession, error)
	// UpdatePaymentStatus moves a PENDING session to status and reports whether it did.
	UpdatePaymentStatus(ctx context.Context, paymentRef string, status PaymentStatus, lastError null.String) (bool, error)
	// ConfirmLatePayment moves a TIMEOUT or CANCELLED session to COMPLETED and reports whether it did.
	ConfirmLatePayment(ctx context.Context, paymentRef string) (bool, error)
	SetPaymentIdea(ctx context.Context, paymentRef, ideaID string) error
	RecordSubmissionFailure(ctx context.Context, paymentRef, message string) error
	ListPaymentSessionsByUser(ctx context.Context, userID string) ([]*PaymentSession, error)

	// InsertIdea stores the idea unless one already exists for its payment reference.
	InsertIdea(ctx context.Context, idea *Idea) (bool, error)
	GetIdeaByID(ctx context.Context, id string) (*Idea, error)
	GetIdeaByPaymentRef(ctx context.Context, paymentRef string) (*Idea, error)
	ListIdeasByUser(ctx context.Context, userID string) ([]*Idea, error)
}
