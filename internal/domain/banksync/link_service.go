package banksync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/domain/item"
	"finsync/internal/infrastructure/plaid"
)

const defaultLookbackDays = 30

// InstitutionMeta is what the front end reports about the chosen bank.
type InstitutionMeta struct {
	ID   string `json:"institutionId"`
	Name string `json:"institutionName"`
}

// LinkResult reports a new connection. InitialSyncError is set when the
// first transaction fetch failed; the item and accounts are kept anyway.
type LinkResult struct {
	Success           bool   `json:"success"`
	ItemID            string `json:"itemId"`
	AccountsAdded     int    `json:"accountsAdded"`
	TransactionsAdded int    `json:"transactionsAdded"`
	InitialSyncError  string `json:"initialSyncError,omitempty"`
}

// LinkService creates and removes bank connections.
type LinkService struct {
	items        item.Repository
	vault        Vault
	provider     Provider
	mirror       *AccountMirror
	reconciler   *Reconciler
	lookbackDays int
	initialCount int
	log          zerolog.Logger
	now          func() time.Time
}

func NewLinkService(items item.Repository, vault Vault, provider Provider, mirror *AccountMirror, reconciler *Reconciler, lookbackDays int, log zerolog.Logger) *LinkService {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	return &LinkService{
		items:        items,
		vault:        vault,
		provider:     provider,
		mirror:       mirror,
		reconciler:   reconciler,
		lookbackDays: lookbackDays,
		initialCount: DefaultPageSize,
		log:          log.With().Str("service", "link").Logger(),
		now:          time.Now,
	}
}

// CreateLinkToken returns a token for opening the provider's Link flow.
func (s *LinkService) CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkTokenResponse, error) {
	resp, err := s.provider.CreateLinkToken(ctx, userID)
	if err != nil {
		return nil, providerError("create link token", err)
	}
	return resp, nil
}

// LinkNewItem exchanges the public token, stores the encrypted access token,
// mirrors the item's accounts and loads a first window of transactions.
// If the item cannot be stored or its accounts cannot be mirrored, the
// connection is revoked at the provider and nothing is kept locally.
func (s *LinkService) LinkNewItem(ctx context.Context, userID int64, publicToken string, inst InstitutionMeta) (*LinkResult, error) {
	exchanged, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, providerError("exchange public token", err)
	}

	sealed, err := s.vault.Encrypt(exchanged.AccessToken)
	if err != nil {
		s.revoke(ctx, userID, exchanged.AccessToken)
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	it, err := s.items.Create(ctx, item.CreateParams{
		UserID:               userID,
		RemoteItemID:         exchanged.ItemID,
		EncryptedAccessToken: sealed,
		InstitutionID:        optional(inst.ID),
		InstitutionName:      optional(inst.Name),
	})
	if err != nil {
		s.revoke(ctx, userID, exchanged.AccessToken)
		return nil, fmt.Errorf("failed to save item: %w", err)
	}

	log := s.log.With().Int64("user_id", userID).Str("item_id", it.ID).Logger()

	accounts, err := s.provider.GetAccounts(ctx, exchanged.AccessToken)
	if err != nil {
		s.discard(ctx, it, exchanged.AccessToken)
		return nil, providerError("get accounts", err)
	}

	created, err := s.mirror.HydrateAccounts(ctx, it, accounts.Accounts)
	if err != nil {
		s.discard(ctx, it, exchanged.AccessToken)
		return nil, err
	}

	result := &LinkResult{
		Success:       true,
		ItemID:        it.ID,
		AccountsAdded: len(created),
	}

	accountMap := make(map[string]string, len(created))
	for _, a := range created {
		if a.RemoteAccountID != nil {
			accountMap[*a.RemoteAccountID] = a.ID
		}
	}

	added, err := s.initialFetch(ctx, userID, exchanged.AccessToken, accountMap)
	if err != nil {
		log.Warn().Err(err).Msg("initial transaction fetch failed, next sync will catch up")
		result.InitialSyncError = err.Error()
		return result, nil
	}
	result.TransactionsAdded = added

	log.Info().
		Int("accounts", result.AccountsAdded).
		Int("transactions", result.TransactionsAdded).
		Msg("item linked")
	return result, nil
}

func (s *LinkService) initialFetch(ctx context.Context, userID int64, accessToken string, accountMap map[string]string) (int, error) {
	end := s.now()
	start := end.AddDate(0, 0, -s.lookbackDays)

	resp, err := s.provider.GetTransactions(ctx, accessToken, start, end, s.initialCount)
	if err != nil {
		return 0, providerError("get transactions", err)
	}

	res, err := s.reconciler.ApplyAdded(ctx, userID, resp.Transactions, accountMap)
	if err != nil {
		return 0, err
	}
	return res.Added, nil
}

// discard drops an item whose accounts could not be mirrored, both locally
// and at the provider.
func (s *LinkService) discard(ctx context.Context, it *item.LinkedItem, accessToken string) {
	s.revoke(ctx, it.UserID, accessToken)
	if _, err := s.items.DeleteWithDependents(ctx, it.UserID, it.ID); err != nil {
		s.log.Error().Err(err).Str("item_id", it.ID).Msg("failed to discard half-linked item")
	}
}

// revoke is best-effort: a failure leaves an orphaned item at the provider,
// which is logged for manual cleanup.
func (s *LinkService) revoke(ctx context.Context, userID int64, accessToken string) {
	if err := s.provider.RemoveItem(ctx, accessToken); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to revoke provider item after aborted link")
	}
}

// UnlinkItem revokes the item at the provider if possible, then deletes its
// transactions, accounts and the item itself. Only local failures are returned.
func (s *LinkService) UnlinkItem(ctx context.Context, userID int64, itemID string) error {
	it, err := s.items.GetByID(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}
	if it == nil {
		return ErrItemNotFound
	}

	log := s.log.With().Int64("user_id", userID).Str("item_id", it.ID).Logger()

	if accessToken, err := s.vault.Decrypt(it.EncryptedAccessToken); err != nil {
		log.Warn().Err(err).Msg("cannot decrypt access token, skipping remote removal")
	} else if err := s.provider.RemoveItem(ctx, accessToken); err != nil {
		log.Warn().Err(err).Msg("remote item removal failed, removing local data anyway")
	}

	res, err := s.items.DeleteWithDependents(ctx, userID, it.ID)
	if err != nil {
		return fmt.Errorf("failed to delete item data: %w", err)
	}

	log.Info().
		Int64("transactions", res.Transactions).
		Int64("accounts", res.Accounts).
		Msg("item unlinked")
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
