package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/transaction"
)

// SpendingSource reports outgoing amounts per category.
type SpendingSource interface {
	SpendingByCategory(ctx context.Context, userID int64, from, to time.Time) (map[transaction.Category]decimal.Decimal, error)
}

type Service struct {
	repo     Repository
	spending SpendingSource
}

func NewService(repo Repository, spending SpendingSource) *Service {
	return &Service{repo: repo, spending: spending}
}

func (s *Service) Set(ctx context.Context, params UpsertParams) (*Budget, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, params)
}

// StatusForMonth lists the month's budgets with the amount spent in each
// category during that month.
func (s *Service) StatusForMonth(ctx context.Context, userID int64, month time.Time) ([]*Status, error) {
	month = MonthStart(month)

	budgets, err := s.repo.ListByMonth(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return []*Status{}, nil
	}

	spent, err := s.spending.SpendingByCategory(ctx, userID, month, month.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to load spending: %w", err)
	}

	out := make([]*Status, 0, len(budgets))
	for _, b := range budgets {
		used := spent[b.Category]
		out = append(out, &Status{
			Budget:    *b,
			Spent:     used,
			Remaining: b.Limit.Sub(used),
			OverLimit: used.GreaterThan(b.Limit),
		})
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBudgetNotFound
	}
	return nil
}
