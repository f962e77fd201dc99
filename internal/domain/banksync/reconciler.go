package banksync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/plaid"
)

// DefaultPageSize is the number of records requested per sync page.
const DefaultPageSize = 500

// PageResult counts what one page (or a whole drain) did. Added, Modified
// and Removed are rows actually written; the rest were skipped.
type PageResult struct {
	Added      int
	Modified   int
	Removed    int
	Orphaned   int // record for an account not mirrored locally
	Mismatched int // modified record with no local row
	Malformed  int // record the provider sent with an unparsable date
}

func (r *PageResult) add(o PageResult) {
	r.Added += o.Added
	r.Modified += o.Modified
	r.Removed += o.Removed
	r.Orphaned += o.Orphaned
	r.Mismatched += o.Mismatched
	r.Malformed += o.Malformed
}

// Skipped is the number of records that were not applied.
func (r PageResult) Skipped() int {
	return r.Orphaned + r.Mismatched + r.Malformed
}

// DrainResult is the outcome of reading the delta feed to its end.
type DrainResult struct {
	PageResult
	Cursor string
	Pages  int
}

// Reconciler applies the provider's delta feed to local transactions.
type Reconciler struct {
	transactions transaction.Repository
	provider     Provider
	pageSize     int
	log          zerolog.Logger
}

func NewReconciler(transactions transaction.Repository, provider Provider, pageSize int, log zerolog.Logger) *Reconciler {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &Reconciler{
		transactions: transactions,
		provider:     provider,
		pageSize:     pageSize,
		log:          log.With().Str("component", "reconciler").Logger(),
	}
}

// Drain pulls pages starting at cursor until the provider reports no more
// and applies each in order. It never persists the cursor; the caller saves
// DrainResult.Cursor once this returns without error.
func (r *Reconciler) Drain(ctx context.Context, userID int64, accessToken, cursor string, accountMap map[string]string) (*DrainResult, error) {
	result := &DrainResult{Cursor: cursor}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := r.provider.SyncTransactions(ctx, accessToken, result.Cursor, r.pageSize)
		if err != nil {
			return nil, providerError("sync transactions", err)
		}
		// Asking again with the same cursor would return the same page forever.
		if page.HasMore && (page.NextCursor == "" || page.NextCursor == result.Cursor) {
			return nil, providerError("sync transactions", fmt.Errorf("%w (cursor %q)", ErrCursorStalled, result.Cursor))
		}

		applied, err := r.ApplyPage(ctx, userID, page, accountMap)
		if err != nil {
			return nil, err
		}

		result.add(applied)
		result.Pages++
		if page.NextCursor != "" {
			result.Cursor = page.NextCursor
		}

		if !page.HasMore {
			return result, nil
		}
	}
}

// ApplyPage applies added, then modified, then removed records of one page.
func (r *Reconciler) ApplyPage(ctx context.Context, userID int64, page *plaid.SyncResponse, accountMap map[string]string) (PageResult, error) {
	var res PageResult

	added, err := r.ApplyAdded(ctx, userID, page.Added, accountMap)
	if err != nil {
		return res, err
	}
	res.add(added)

	modified, err := r.applyModified(ctx, userID, page.Modified, accountMap)
	if err != nil {
		return res, err
	}
	res.add(modified)

	removed, err := r.applyRemoved(ctx, userID, page.Removed)
	if err != nil {
		return res, err
	}
	res.Removed = removed

	return res, nil
}

// ApplyAdded upserts provider records keyed on (user, remote transaction
// ID). Replaying the same records leaves storage unchanged.
func (r *Reconciler) ApplyAdded(ctx context.Context, userID int64, records []plaid.Transaction, accountMap map[string]string) (PageResult, error) {
	var res PageResult
	if len(records) == 0 {
		return res, nil
	}

	batch := make([]transaction.RemoteUpsertParams, 0, len(records))
	position := make(map[string]int, len(records))
	for _, rec := range records {
		localAccountID, ok := accountMap[rec.AccountID]
		if !ok {
			res.Orphaned++
			r.log.Debug().
				Int64("user_id", userID).
				Str("remote_transaction_id", rec.TransactionID).
				Str("remote_account_id", rec.AccountID).
				Msg("dropping added record for unmapped account")
			continue
		}

		date, err := parseDate(rec.Date)
		if err != nil {
			res.Malformed++
			r.log.Warn().Err(err).Str("remote_transaction_id", rec.TransactionID).Msg("dropping added record")
			continue
		}

		params := transaction.RemoteUpsertParams{
			AccountID:           localAccountID,
			RemoteTransactionID: rec.TransactionID,
			Date:                date,
			Name:                displayName(rec),
			MerchantName:        nonEmpty(rec.MerchantName),
			Amount:              rec.Amount,
			Currency:            currencyOf(rec),
			Category:            categoryOf(rec),
			Pending:             rec.Pending,
		}

		// A single upsert statement cannot touch the same key twice; the
		// later record wins.
		if i, dup := position[rec.TransactionID]; dup {
			batch[i] = params
			continue
		}
		position[rec.TransactionID] = len(batch)
		batch = append(batch, params)
	}

	if len(batch) == 0 {
		return res, nil
	}

	written, err := r.transactions.UpsertRemote(ctx, userID, batch)
	if err != nil {
		return res, fmt.Errorf("failed to upsert added transactions: %w", err)
	}
	res.Added = int(written)
	return res, nil
}

func (r *Reconciler) applyModified(ctx context.Context, userID int64, records []plaid.Transaction, accountMap map[string]string) (PageResult, error) {
	var res PageResult
	for _, rec := range records {
		if _, ok := accountMap[rec.AccountID]; !ok {
			res.Orphaned++
			continue
		}

		date, err := parseDate(rec.Date)
		if err != nil {
			res.Malformed++
			r.log.Warn().Err(err).Str("remote_transaction_id", rec.TransactionID).Msg("dropping modified record")
			continue
		}

		matched, err := r.transactions.UpdateRemote(ctx, userID, transaction.RemoteUpdateParams{
			RemoteTransactionID: rec.TransactionID,
			Date:                date,
			Name:                displayName(rec),
			MerchantName:        nonEmpty(rec.MerchantName),
			Amount:              rec.Amount,
			Category:            categoryOf(rec),
			Pending:             rec.Pending,
		})
		if err != nil {
			return res, fmt.Errorf("failed to update transaction %s: %w", rec.TransactionID, err)
		}
		if !matched {
			res.Mismatched++
			r.log.Debug().
				Int64("user_id", userID).
				Str("remote_transaction_id", rec.TransactionID).
				Msg("modified record has no local row")
			continue
		}
		res.Modified++
	}
	return res, nil
}

func (r *Reconciler) applyRemoved(ctx context.Context, userID int64, removed []plaid.RemovedTransaction) (int, error) {
	if len(removed) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(removed))
	for _, rm := range removed {
		if rm.TransactionID != "" {
			ids = append(ids, rm.TransactionID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := r.transactions.DeleteByRemoteIDs(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete removed transactions: %w", err)
	}
	return int(n), nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(transaction.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid transaction date %q: %w", s, err)
	}
	return d, nil
}

func categoryOf(rec plaid.Transaction) transaction.Category {
	var modern *transaction.ProviderCategory
	if rec.PersonalFinanceCategory != nil {
		modern = &transaction.ProviderCategory{
			Primary:  rec.PersonalFinanceCategory.Primary,
			Detailed: rec.PersonalFinanceCategory.Detailed,
		}
	}
	return transaction.NormalizeCategory(modern, rec.Category)
}

func currencyOf(rec plaid.Transaction) string {
	if rec.ISOCurrencyCode != nil && *rec.ISOCurrencyCode != "" {
		return strings.ToUpper(*rec.ISOCurrencyCode)
	}
	return defaultCurrency
}

func displayName(rec plaid.Transaction) string {
	if strings.TrimSpace(rec.Name) != "" {
		return rec.Name
	}
	if rec.MerchantName != nil && *rec.MerchantName != "" {
		return *rec.MerchantName
	}
	return "Unknown"
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
