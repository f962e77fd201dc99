package budget

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/transaction"
)

// MonthLayout is the wire format for budget months.
const MonthLayout = "2006-01"

var (
	ErrBudgetNotFound  = errors.New("budget not found")
	ErrInvalidMonth    = errors.New("month must be the first day of a month")
	ErrInvalidLimit    = errors.New("limit must be positive")
	ErrInvalidCategory = errors.New("invalid category")
)

// Budget is a monthly spending limit for one category.
type Budget struct {
	ID        string               `json:"id"`
	UserID    int64                `json:"userId"`
	Category  transaction.Category `json:"category"`
	Month     time.Time            `json:"month"`
	Limit     decimal.Decimal      `json:"limit"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Status pairs a budget with what was spent against it.
type Status struct {
	Budget
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	OverLimit bool            `json:"overLimit"`
}

type UpsertParams struct {
	UserID   int64
	Category string
	Month    time.Time
	Limit    decimal.Decimal
}

func (p UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if !transaction.IsValidCategory(p.Category) {
		return ErrInvalidCategory
	}
	if p.Month.IsZero() || p.Month.Day() != 1 || p.Month.Hour() != 0 || p.Month.Minute() != 0 || p.Month.Second() != 0 {
		return ErrInvalidMonth
	}
	if !p.Limit.IsPositive() {
		return ErrInvalidLimit
	}
	return nil
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
