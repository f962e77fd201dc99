package item

import (
	"context"
	"time"
)

// Repository defines the interface for linked item data access.
// Get methods return (nil, nil) when nothing matches.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*LinkedItem, error)

	GetByID(ctx context.Context, userID int64, id string) (*LinkedItem, error)

	ListByUserID(ctx context.Context, userID int64) ([]*LinkedItem, error)

	// ListAll returns every linked item, for scheduled syncs.
	ListAll(ctx context.Context) ([]*LinkedItem, error)

	// SaveCursor stores the cursor reached by a fully drained sync.
	SaveCursor(ctx context.Context, userID int64, id string, cursor string, syncedAt time.Time) error

	// DeleteWithDependents removes the item's transactions, then its
	// accounts, then the item, in one storage transaction.
	DeleteWithDependents(ctx context.Context, userID int64, id string) (*DeleteResult, error)
}
