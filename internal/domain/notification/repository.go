package notification

import "context"

// Repository defines the interface for device token storage.
type Repository interface {
	// UpsertDeviceToken registers the token, moving it to this user if
	// another user had it.
	UpsertDeviceToken(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error)
	GetActiveTokensByUserID(ctx context.Context, userID int64) ([]*DeviceToken, error)
	DeactivateToken(ctx context.Context, token string) error
}
