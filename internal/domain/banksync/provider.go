package banksync

import (
	"context"
	"time"

	"finsync/internal/infrastructure/plaid"
)

// Provider is the aggregation API as used by sync and linking.
type Provider interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	GetAccounts(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*plaid.SyncResponse, error)
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time, count int) (*plaid.TransactionsResponse, error)
	RemoveItem(ctx context.Context, accessToken string) error
	CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkTokenResponse, error)
}

var _ Provider = (*plaid.Client)(nil)

// Vault seals and opens provider access tokens.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Locker serializes syncs of the same item. release must be called once
// when acquired is true.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Notifier is told about finished syncs that changed something.
type Notifier interface {
	NotifySyncComplete(ctx context.Context, summary *SyncSummary)
}
