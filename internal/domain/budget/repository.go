package budget

import (
	"context"
	"time"
)

// Repository defines the interface for budget data access
type Repository interface {
	// Upsert creates or replaces the limit for (user, category, month).
	Upsert(ctx context.Context, params UpsertParams) (*Budget, error)

	ListByMonth(ctx context.Context, userID int64, month time.Time) ([]*Budget, error)

	Delete(ctx context.Context, userID int64, id string) (bool, error)
}
