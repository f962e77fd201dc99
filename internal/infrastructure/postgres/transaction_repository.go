package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"finsync/internal/domain/transaction"
)

// upsertChunkSize keeps bulk upserts under the 65535 bind parameter limit.
const upsertChunkSize = 1000

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, remote_transaction_id, date, name, merchant_name, amount,
		       currency, category, pending, note, is_manual, created_at, updated_at`

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var remoteID, merchant, category, note sql.NullString

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &remoteID, &tx.Date, &tx.Name, &merchant,
		&tx.Amount, &tx.Currency, &category, &tx.Pending, &note, &tx.IsManual,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.RemoteTransactionID = stringPtr(remoteID)
	tx.MerchantName = stringPtr(merchant)
	tx.Note = stringPtr(note)
	if category.Valid {
		c := transaction.Category(category.String)
		tx.Category = &c
	}
	return &tx, nil
}

// UpsertRemote writes provider records with one multi-row statement per
// chunk. Callers must not pass the same remote ID twice in one call.
func (r *TransactionRepository) UpsertRemote(ctx context.Context, userID int64, records []transaction.RemoteUpsertParams) (int64, error) {
	var written int64
	for start := 0; start < len(records); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(records))
		n, err := r.upsertChunk(ctx, userID, records[start:end])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (r *TransactionRepository) upsertChunk(ctx context.Context, userID int64, records []transaction.RemoteUpsertParams) (int64, error) {
	const perRow = 11

	var b strings.Builder
	b.WriteString(`
		INSERT INTO transactions (id, user_id, account_id, remote_transaction_id, date, name, merchant_name,
		                          amount, currency, category, pending, is_manual)
		VALUES `)

	args := make([]any, 0, len(records)*perRow)
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * perRow
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, false)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11)
		args = append(args,
			uuid.NewString(), userID, rec.AccountID, rec.RemoteTransactionID, rec.Date,
			rec.Name, rec.MerchantName, rec.Amount, rec.Currency, string(rec.Category), rec.Pending,
		)
	}

	b.WriteString(`
		ON CONFLICT (user_id, remote_transaction_id) DO UPDATE SET
		    account_id = EXCLUDED.account_id,
		    date = EXCLUDED.date,
		    name = EXCLUDED.name,
		    merchant_name = EXCLUDED.merchant_name,
		    amount = EXCLUDED.amount,
		    currency = EXCLUDED.currency,
		    category = EXCLUDED.category,
		    pending = EXCLUDED.pending,
		    updated_at = NOW()`)

	result, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert transactions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// UpdateRemote overwrites the provider-sourced fields of one synced row.
// The user's note and the row's account are left alone.
func (r *TransactionRepository) UpdateRemote(ctx context.Context, userID int64, params transaction.RemoteUpdateParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = $1, name = $2, merchant_name = $3, amount = $4, category = $5, pending = $6, updated_at = NOW()
		WHERE user_id = $7 AND remote_transaction_id = $8`,
		params.Date, params.Name, params.MerchantName, params.Amount, string(params.Category), params.Pending,
		userID, params.RemoteTransactionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *TransactionRepository) DeleteByRemoteIDs(ctx context.Context, userID int64, remoteIDs []string) (int64, error) {
	if len(remoteIDs) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = $1 AND remote_transaction_id = ANY($2)`,
		userID, pq.Array(remoteIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (id, user_id, account_id, date, name, merchant_name, amount, currency,
		                          category, pending, note, is_manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
		RETURNING ` + transactionColumns

	var category *string
	if params.Category != nil {
		c := string(*params.Category)
		category = &c
	}

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.AccountID, params.Date, params.Name,
		params.MerchantName, params.Amount, params.Currency, category, params.Pending, params.Note,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, userID int64, id string) (*transaction.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// List returns the user's transactions newest first, filtered and paged.
func (r *TransactionRepository) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.AccountID != "" {
		add("account_id = $%d", filter.AccountID)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.StartDate != nil {
		add("date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("date <= $%d", *filter.EndDate)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		args = append(args, pattern)
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR merchant_name ILIKE $%d OR note ILIKE $%d)", n, n, n))
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE %s
		ORDER BY date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		transactionColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepository) Update(ctx context.Context, userID int64, id string, params transaction.UpdateParams) (*transaction.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `
		UPDATE transactions
		SET date = COALESCE($1, date),
		    name = COALESCE($2, name),
		    merchant_name = COALESCE($3, merchant_name),
		    amount = COALESCE($4, amount),
		    category = COALESCE($5, category),
		    pending = COALESCE($6, pending),
		    note = COALESCE($7, note),
		    updated_at = NOW()
		WHERE id = $8 AND user_id = $9
		RETURNING ` + transactionColumns

	var amount decimal.NullDecimal
	if params.Amount != nil {
		amount = decimal.NewNullDecimal(*params.Amount)
	}
	var category *string
	if params.Category != nil {
		c := string(*params.Category)
		category = &c
	}

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		params.Date, params.Name, params.MerchantName, amount, category, params.Pending, params.Note,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) Delete(ctx context.Context, userID int64, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return transaction.ErrTransactionNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

// SpendingByCategory sums outgoing amounts. Provider amounts are positive
// for money leaving the account.
func (r *TransactionRepository) SpendingByCategory(ctx context.Context, userID int64, from, to time.Time) (map[transaction.Category]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(category, $4), SUM(amount)
		FROM transactions
		WHERE user_id = $1 AND date >= $2 AND date < $3 AND amount > 0
		GROUP BY 1`,
		userID, from, to, string(transaction.CategoryOther),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum spending: %w", err)
	}
	defer rows.Close()

	spending := make(map[transaction.Category]decimal.Decimal)
	for rows.Next() {
		var category string
		var total decimal.Decimal
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan spending: %w", err)
		}
		c := transaction.Category(category)
		spending[c] = spending[c].Add(total)
	}
	return spending, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
