package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/infrastructure/plaid"
)

// ItemSyncer runs one incremental sync. Implemented by *banksync.SyncService.
type ItemSyncer interface {
	RunSync(ctx context.Context, userID int64, itemID string) (*banksync.SyncSummary, error)
}

// RelinkNotifier is told when a provider rejects an item's credentials.
type RelinkNotifier interface {
	NotifyRelinkRequired(ctx context.Context, userID int64, itemID string)
}

// ItemSyncJob syncs a single linked item.
type ItemSyncJob struct {
	userID int64
	itemID string
	syncer ItemSyncer
	relink RelinkNotifier
	log    zerolog.Logger
}

// NewItemSyncJob creates a sync job. relink may be nil.
func NewItemSyncJob(userID int64, itemID string, syncer ItemSyncer, relink RelinkNotifier, log zerolog.Logger) *ItemSyncJob {
	return &ItemSyncJob{
		userID: userID,
		itemID: itemID,
		syncer: syncer,
		relink: relink,
		log:    log,
	}
}

// Execute runs the sync. A sync already running for the item is not an error.
func (j *ItemSyncJob) Execute(ctx context.Context) error {
	summary, err := j.syncer.RunSync(ctx, j.userID, j.itemID)
	if err != nil {
		if errors.Is(err, banksync.ErrSyncInProgress) {
			j.log.Info().Str("item_id", j.itemID).Msg("Sync already running, skipping")
			return nil
		}

		var perr *plaid.Error
		if errors.As(err, &perr) && perr.RequiresRelink() && j.relink != nil {
			j.relink.NotifyRelinkRequired(ctx, j.userID, j.itemID)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	j.log.Info().
		Str("item_id", j.itemID).
		Int("added", summary.TransactionsAdded).
		Int("modified", summary.TransactionsModified).
		Int("removed", summary.TransactionsRemoved).
		Str("outcome", string(summary.Outcome)).
		Msg("Item sync finished")
	return nil
}

func (j *ItemSyncJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *ItemSyncJob) Description() string {
	return fmt.Sprintf("Item sync %s", j.itemID)
}

// ItemLister lists every linked item.
type ItemLister interface {
	ListAll(ctx context.Context) ([]*item.LinkedItem, error)
}

// ItemJobs returns a JobProvider that creates one ItemSyncJob per linked item.
func ItemJobs(items ItemLister, syncer ItemSyncer, relink RelinkNotifier, log zerolog.Logger) JobProvider {
	log = log.With().Str("component", "item_sync").Logger()
	return func(ctx context.Context) ([]Job, error) {
		all, err := items.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}

		jobs := make([]Job, 0, len(all))
		for _, it := range all {
			jobs = append(jobs, NewItemSyncJob(it.UserID, it.ID, syncer, relink, log))
		}
		return jobs, nil
	}
}
