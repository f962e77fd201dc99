package banksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"finsync/internal/domain/item"
)

var (
	syncTracer             = otel.Tracer("finsync/banksync")
	syncMeter              = otel.Meter("finsync/banksync")
	syncDuration, _        = syncMeter.Float64Histogram("banksync.sync.duration", metric.WithDescription("Item sync duration in seconds"), metric.WithUnit("s"))
	syncTotal, _           = syncMeter.Int64Counter("banksync.sync.total", metric.WithDescription("Item syncs by outcome"))
	transactionsApplied, _ = syncMeter.Int64Counter("banksync.transactions.applied", metric.WithDescription("Transactions written by reconciliation, by operation"))
)

// Outcome tells callers whether every record of a sync was applied.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial" // some records were skipped, see the counts
)

// SyncSummary is the result of one completed sync.
type SyncSummary struct {
	ItemID               string  `json:"itemId"`
	UserID               int64   `json:"-"`
	TransactionsAdded    int     `json:"transactionsAdded"`
	TransactionsModified int     `json:"transactionsModified"`
	TransactionsRemoved  int     `json:"transactionsRemoved"`
	AccountsUpdated      int     `json:"accountsUpdated"`
	Orphaned             int     `json:"orphaned"`
	Mismatched           int     `json:"mismatched"`
	Malformed            int     `json:"malformed"`
	Pages                int     `json:"pages"`
	Outcome              Outcome `json:"outcome"`
}

// Changed reports whether the sync wrote any transaction.
func (s *SyncSummary) Changed() bool {
	return s.TransactionsAdded+s.TransactionsModified+s.TransactionsRemoved > 0
}

// SyncService runs incremental syncs for linked items.
type SyncService struct {
	items      item.Repository
	vault      Vault
	provider   Provider
	mirror     *AccountMirror
	reconciler *Reconciler
	locker     Locker
	notifier   Notifier
	log        zerolog.Logger
	now        func() time.Time
}

func NewSyncService(items item.Repository, vault Vault, provider Provider, mirror *AccountMirror, reconciler *Reconciler, log zerolog.Logger) *SyncService {
	return &SyncService{
		items:      items,
		vault:      vault,
		provider:   provider,
		mirror:     mirror,
		reconciler: reconciler,
		log:        log.With().Str("service", "sync").Logger(),
		now:        time.Now,
	}
}

// SetLocker enables per-item locking. Without one, overlapping syncs of
// the same item redo work but stay correct.
func (s *SyncService) SetLocker(l Locker) {
	s.locker = l
}

// SetNotifier registers who is told about syncs that changed data.
func (s *SyncService) SetNotifier(n Notifier) {
	s.notifier = n
}

// RunSync drains the item's delta feed from its stored cursor, refreshes
// balances and then stores the new cursor. On any error the stored cursor
// is left as it was, so the call can simply be repeated.
func (s *SyncService) RunSync(ctx context.Context, userID int64, itemID string) (summary *SyncSummary, err error) {
	ctx, span := syncTracer.Start(ctx, "banksync.RunSync", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("item.id", itemID),
	))
	start := time.Now()
	defer func() {
		status := "error"
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			status = string(summary.Outcome)
		}
		syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		syncDuration.Record(ctx, time.Since(start).Seconds())
		span.End()
	}()

	it, err := s.items.GetByID(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if it == nil {
		return nil, ErrItemNotFound
	}

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, "item:"+it.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock item: %w", err)
		}
		if !acquired {
			return nil, ErrSyncInProgress
		}
		defer release()
	}

	accessToken, err := s.vault.Decrypt(it.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for item %s: %w", it.ID, err)
	}

	accountMap, err := s.mirror.BuildRemoteToLocalIDMap(ctx, userID, it.ID)
	if err != nil {
		return nil, err
	}

	drained, err := s.reconciler.Drain(ctx, userID, accessToken, it.CursorValue(), accountMap)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Str("item_id", it.ID).Msg("sync aborted, cursor unchanged")
		return nil, err
	}

	accounts, err := s.provider.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, providerError("get accounts", err)
	}
	updated := s.mirror.RefreshBalances(ctx, it, accounts.Accounts)

	if err := s.items.SaveCursor(ctx, userID, it.ID, drained.Cursor, s.now()); err != nil {
		return nil, fmt.Errorf("failed to save cursor: %w", err)
	}

	summary = &SyncSummary{
		ItemID:               it.ID,
		UserID:               userID,
		TransactionsAdded:    drained.Added,
		TransactionsModified: drained.Modified,
		TransactionsRemoved:  drained.Removed,
		AccountsUpdated:      updated,
		Orphaned:             drained.Orphaned,
		Mismatched:           drained.Mismatched,
		Malformed:            drained.Malformed,
		Pages:                drained.Pages,
		Outcome:              OutcomeSuccess,
	}
	if drained.Skipped() > 0 {
		summary.Outcome = OutcomePartial
	}

	transactionsApplied.Add(ctx, int64(summary.TransactionsAdded), metric.WithAttributes(attribute.String("op", "added")))
	transactionsApplied.Add(ctx, int64(summary.TransactionsModified), metric.WithAttributes(attribute.String("op", "modified")))
	transactionsApplied.Add(ctx, int64(summary.TransactionsRemoved), metric.WithAttributes(attribute.String("op", "removed")))

	s.log.Info().
		Int64("user_id", userID).
		Str("item_id", it.ID).
		Int("pages", summary.Pages).
		Int("added", summary.TransactionsAdded).
		Int("modified", summary.TransactionsModified).
		Int("removed", summary.TransactionsRemoved).
		Int("accounts_updated", summary.AccountsUpdated).
		Int("skipped", drained.Skipped()).
		Msg("sync complete")

	if s.notifier != nil && summary.Changed() {
		s.notifier.NotifySyncComplete(ctx, summary)
	}

	return summary, nil
}

// SyncAll syncs every linked item one after another. Failures of single
// items are collected and do not stop the run.
func (s *SyncService) SyncAll(ctx context.Context) ([]*SyncSummary, error) {
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	var (
		summaries []*SyncSummary
		errs      []error
	)
	for _, it := range items {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		summary, err := s.RunSync(ctx, it.UserID, it.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", it.ID, err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Join(errs...)
}

// ListItems returns the user's linked items.
func (s *SyncService) ListItems(ctx context.Context, userID int64) ([]*item.LinkedItem, error) {
	return s.items.ListByUserID(ctx, userID)
}
