package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, linked_item_id, remote_account_id, name, official_name, mask, type, subtype,
		       current_balance, available_balance, currency, institution_name, is_manual, created_at, updated_at`

func scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	var itemID, remoteID, officialName, mask, subtype, institution sql.NullString

	err := row.Scan(
		&acc.ID, &acc.UserID, &itemID, &remoteID, &acc.Name, &officialName, &mask,
		&acc.Type, &subtype, &acc.CurrentBalance, &acc.AvailableBalance,
		&acc.Currency, &institution, &acc.IsManual, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.LinkedItemID = stringPtr(itemID)
	acc.RemoteAccountID = stringPtr(remoteID)
	acc.OfficialName = stringPtr(officialName)
	acc.Mask = stringPtr(mask)
	acc.Subtype = stringPtr(subtype)
	acc.InstitutionName = stringPtr(institution)
	return &acc, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO accounts (id, user_id, linked_item_id, remote_account_id, name, official_name, mask, type, subtype,
		                      current_balance, available_balance, currency, institution_name, is_manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.LinkedItemID, params.RemoteAccountID,
		params.Name, params.OfficialName, params.Mask, params.Type, params.Subtype,
		params.CurrentBalance, params.AvailableBalance, params.Currency,
		params.InstitutionName, params.IsManual,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// GetByID retrieves an account by its ID. It returns (nil, nil) when the
// user has no such account.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64, id string) (*account.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ListByUserID retrieves all accounts for a specific user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, query, userID)
}

func (r *AccountRepository) ListByItemID(ctx context.Context, userID int64, itemID string) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND linked_item_id = $2 ORDER BY created_at`
	return r.list(ctx, query, userID, itemID)
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) UpdateBalances(ctx context.Context, userID int64, itemID string, update account.BalanceUpdate) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = $1, available_balance = $2, updated_at = NOW()
		WHERE user_id = $3 AND linked_item_id = $4 AND remote_account_id = $5`,
		update.CurrentBalance, update.AvailableBalance, userID, itemID, update.RemoteAccountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update balances: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Delete removes an account; its transactions go with it through the
// foreign key.
func (r *AccountRepository) Delete(ctx context.Context, userID int64, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return account.ErrAccountNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}
