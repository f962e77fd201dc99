package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Account, error)

	GetByID(ctx context.Context, userID int64, id string) (*Account, error)

	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)

	// ListByItemID returns the accounts mirrored from one linked item.
	ListByItemID(ctx context.Context, userID int64, itemID string) ([]*Account, error)

	// UpdateBalances reports false when no account under the item has the remote ID.
	UpdateBalances(ctx context.Context, userID int64, itemID string, update BalanceUpdate) (bool, error)

	// Delete removes an account and its transactions.
	Delete(ctx context.Context, userID int64, id string) error
}
