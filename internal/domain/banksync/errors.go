package banksync

import (
	"errors"
	"fmt"

	"finsync/internal/domain/item"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/plaid"
)

var (
	// ErrItemNotFound means the item does not exist for the requesting user.
	ErrItemNotFound = item.ErrItemNotFound

	// ErrRemoteProvider wraps every failure returned by the aggregation provider.
	ErrRemoteProvider = errors.New("remote provider error")

	// ErrProviderNotConfigured means the provider credentials are missing.
	ErrProviderNotConfigured = plaid.ErrNotConfigured

	// ErrCursorStalled means the provider reported more pages without
	// advancing the cursor.
	ErrCursorStalled = errors.New("provider reported more pages without a new cursor")

	// ErrSyncInProgress is returned when another sync holds the item's lock.
	ErrSyncInProgress = errors.New("a sync is already running for this item")
)

// IsConfigurationError reports a missing or unusable secret: vault key or
// provider credentials.
func IsConfigurationError(err error) bool {
	return errors.Is(err, crypto.ErrConfiguration) || errors.Is(err, ErrProviderNotConfigured)
}

// IsIntegrityError reports a stored credential that failed authenticated decryption.
func IsIntegrityError(err error) bool {
	return errors.Is(err, crypto.ErrIntegrity)
}

func providerError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteProvider, op, err)
}
