package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsync/internal/domain/item"
)

// ItemRepository implements item.Repository for PostgreSQL.
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, user_id, remote_item_id, encrypted_access_token, institution_id, institution_name,
		       sync_cursor, last_synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*item.LinkedItem, error) {
	var it item.LinkedItem
	var institutionID, institutionName, cursor sql.NullString
	var lastSynced sql.NullTime

	err := row.Scan(
		&it.ID, &it.UserID, &it.RemoteItemID, &it.EncryptedAccessToken,
		&institutionID, &institutionName, &cursor, &lastSynced,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	it.InstitutionID = stringPtr(institutionID)
	it.InstitutionName = stringPtr(institutionName)
	it.Cursor = stringPtr(cursor)
	if lastSynced.Valid {
		it.LastSyncedAt = &lastSynced.Time
	}
	return &it, nil
}

func (r *ItemRepository) Create(ctx context.Context, params item.CreateParams) (*item.LinkedItem, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO linked_items (id, user_id, remote_item_id, encrypted_access_token, institution_id, institution_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + itemColumns

	it, err := scanItem(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.RemoteItemID, params.EncryptedAccessToken,
		params.InstitutionID, params.InstitutionName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create linked item: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, userID int64, id string) (*item.LinkedItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `SELECT ` + itemColumns + ` FROM linked_items WHERE id = $1 AND user_id = $2`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linked item: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) ListByUserID(ctx context.Context, userID int64) ([]*item.LinkedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM linked_items WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, query, userID)
}

func (r *ItemRepository) ListAll(ctx context.Context) ([]*item.LinkedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM linked_items ORDER BY user_id, created_at`
	return r.list(ctx, query)
}

func (r *ItemRepository) list(ctx context.Context, query string, args ...any) ([]*item.LinkedItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked items: %w", err)
	}
	defer rows.Close()

	var items []*item.LinkedItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating linked items: %w", err)
	}
	return items, nil
}

// SaveCursor stores the cursor and sync time. An empty cursor is stored as NULL.
func (r *ItemRepository) SaveCursor(ctx context.Context, userID int64, id string, cursor string, syncedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE linked_items
		SET sync_cursor = NULLIF($1, ''), last_synced_at = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4`,
		cursor, syncedAt, id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return item.ErrItemNotFound
	}
	return nil
}

// DeleteWithDependents removes transactions, accounts and the item in that
// order inside one transaction.
func (r *ItemRepository) DeleteWithDependents(ctx context.Context, userID int64, id string) (*item.DeleteResult, error) {
	res := &item.DeleteResult{}

	err := r.db.WithTx(ctx, func(tx *Tx) error {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM transactions
			WHERE user_id = $1
			  AND account_id IN (SELECT id FROM accounts WHERE user_id = $1 AND linked_item_id = $2)`,
			userID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete item transactions: %w", err)
		}
		if res.Transactions, err = result.RowsAffected(); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx,
			`DELETE FROM accounts WHERE user_id = $1 AND linked_item_id = $2`,
			userID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete item accounts: %w", err)
		}
		if res.Accounts, err = result.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM linked_items WHERE user_id = $1 AND id = $2`,
			userID, id,
		); err != nil {
			return fmt.Errorf("failed to delete linked item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
