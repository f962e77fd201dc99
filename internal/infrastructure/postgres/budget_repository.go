package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsync/internal/domain/budget"
	"finsync/internal/domain/transaction"
)

type BudgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `id, user_id, category, month, limit_amount, created_at, updated_at`

func scanBudget(row rowScanner) (*budget.Budget, error) {
	var b budget.Budget
	var category string
	if err := row.Scan(&b.ID, &b.UserID, &category, &b.Month, &b.Limit, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Category = transaction.Category(category)
	return &b, nil
}

func (r *BudgetRepository) Upsert(ctx context.Context, params budget.UpsertParams) (*budget.Budget, error) {
	query := `
		INSERT INTO budgets (id, user_id, category, month, limit_amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, category, month) DO UPDATE
			SET limit_amount = EXCLUDED.limit_amount,
			    updated_at = NOW()
		RETURNING ` + budgetColumns

	b, err := scanBudget(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.Category, params.Month, params.Limit,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert budget: %w", err)
	}
	return b, nil
}

func (r *BudgetRepository) ListByMonth(ctx context.Context, userID int64, month time.Time) ([]*budget.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 AND month = $2 ORDER BY category`,
		userID, month,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*budget.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

func (r *BudgetRepository) Delete(ctx context.Context, userID int64, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete budget: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}
