package domain

import "context"

// Transactor defines a Transaction Port interface
type Transactor interface {
	// Manage a transactions
	WithinTransaction(context.Context, func(ctx context.Context) error) error
}
