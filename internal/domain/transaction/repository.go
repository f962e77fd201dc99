package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data access.
// Every method is scoped by user ID.
type Repository interface {
	// UpsertRemote inserts or overwrites provider records keyed on
	// (user ID, remote transaction ID) and returns the rows written.
	UpsertRemote(ctx context.Context, userID int64, records []RemoteUpsertParams) (int64, error)

	// UpdateRemote updates the row matching the remote ID. It reports false
	// when no row matched.
	UpdateRemote(ctx context.Context, userID int64, params RemoteUpdateParams) (bool, error)

	// DeleteByRemoteIDs removes rows whose remote ID is in the set. Absent IDs are ignored.
	DeleteByRemoteIDs(ctx context.Context, userID int64, remoteIDs []string) (int64, error)

	Create(ctx context.Context, params CreateParams) (*Transaction, error)
	GetByID(ctx context.Context, userID int64, id string) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	Update(ctx context.Context, userID int64, id string, params UpdateParams) (*Transaction, error)
	Delete(ctx context.Context, userID int64, id string) error

	// SpendingByCategory sums positive (outgoing) amounts per category in [from, to).
	SpendingByCategory(ctx context.Context, userID int64, from, to time.Time) (map[Category]decimal.Decimal, error)
}
