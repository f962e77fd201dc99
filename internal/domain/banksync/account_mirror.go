package banksync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"finsync/internal/domain/account"
	"finsync/internal/domain/item"
	"finsync/internal/infrastructure/plaid"
)

const defaultCurrency = "USD"

// AccountMirror keeps local accounts in step with the provider's accounts
// for one linked item.
type AccountMirror struct {
	accounts account.Repository
	log      zerolog.Logger
}

func NewAccountMirror(accounts account.Repository, log zerolog.Logger) *AccountMirror {
	return &AccountMirror{
		accounts: accounts,
		log:      log.With().Str("component", "account_mirror").Logger(),
	}
}

// HydrateAccounts inserts one local account per remote account. It must run
// only once per item, right after linking.
func (m *AccountMirror) HydrateAccounts(ctx context.Context, it *item.LinkedItem, remote []plaid.Account) ([]*account.Account, error) {
	created := make([]*account.Account, 0, len(remote))
	for _, ra := range remote {
		params := accountParams(it, ra)
		acct, err := m.accounts.Create(ctx, params)
		if err != nil {
			return created, fmt.Errorf("failed to create account %s: %w", ra.AccountID, err)
		}
		created = append(created, acct)
	}

	m.log.Info().
		Int64("user_id", it.UserID).
		Str("item_id", it.ID).
		Int("accounts", len(created)).
		Msg("hydrated accounts")
	return created, nil
}

// RefreshBalances overwrites balances of accounts already mirrored under the
// item. Unknown remote accounts and per-account failures are skipped.
func (m *AccountMirror) RefreshBalances(ctx context.Context, it *item.LinkedItem, remote []plaid.Account) int {
	updated := 0
	for _, ra := range remote {
		ok, err := m.accounts.UpdateBalances(ctx, it.UserID, it.ID, account.BalanceUpdate{
			RemoteAccountID:  ra.AccountID,
			CurrentBalance:   ra.Balances.Current,
			AvailableBalance: ra.Balances.Available,
		})
		if err != nil {
			m.log.Warn().Err(err).
				Str("item_id", it.ID).
				Str("remote_account_id", ra.AccountID).
				Msg("failed to refresh balance")
			continue
		}
		if !ok {
			m.log.Debug().
				Str("item_id", it.ID).
				Str("remote_account_id", ra.AccountID).
				Msg("no local account for remote account")
			continue
		}
		updated++
	}
	return updated
}

// BuildRemoteToLocalIDMap maps remote account IDs to local account IDs for
// one item. It is read fresh on every sync.
func (m *AccountMirror) BuildRemoteToLocalIDMap(ctx context.Context, userID int64, itemID string) (map[string]string, error) {
	accts, err := m.accounts.ListByItemID(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item accounts: %w", err)
	}

	ids := make(map[string]string, len(accts))
	for _, a := range accts {
		if a.RemoteAccountID != nil {
			ids[*a.RemoteAccountID] = a.ID
		}
	}
	return ids, nil
}

func accountParams(it *item.LinkedItem, ra plaid.Account) account.CreateParams {
	itemID := it.ID
	remoteID := ra.AccountID

	currency := defaultCurrency
	if ra.Balances.ISOCurrencyCode != nil && *ra.Balances.ISOCurrencyCode != "" {
		currency = *ra.Balances.ISOCurrencyCode
	}

	name := ra.Name
	if name == "" && ra.OfficialName != nil {
		name = *ra.OfficialName
	}
	if name == "" {
		name = "Account"
	}

	return account.CreateParams{
		UserID:           it.UserID,
		LinkedItemID:     &itemID,
		RemoteAccountID:  &remoteID,
		Name:             name,
		OfficialName:     ra.OfficialName,
		Mask:             ra.Mask,
		Type:             account.NormalizeType(ra.Type),
		Subtype:          ra.Subtype,
		CurrentBalance:   ra.Balances.Current,
		AvailableBalance: ra.Balances.Available,
		Currency:         currency,
		InstitutionName:  it.InstitutionName,
		IsManual:         false,
	}
}
