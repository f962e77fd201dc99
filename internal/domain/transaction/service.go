package transaction

import (
	"context"
	"errors"
	"fmt"
)

// AccountLookup is the slice of the account domain the service needs.
type AccountLookup interface {
	OwnsAccount(ctx context.Context, userID int64, accountID string) (bool, error)
}

var ErrAccountNotOwned = errors.New("account not found for user")

// Service holds user-facing transaction operations. Provider-sourced
// writes go through the reconciler instead.
type Service struct {
	repo     Repository
	accounts AccountLookup
}

func NewService(repo Repository, accounts AccountLookup) *Service {
	return &Service{repo: repo, accounts: accounts}
}

// CreateManual records a user-entered transaction.
func (s *Service) CreateManual(ctx context.Context, params CreateParams) (*Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	owned, err := s.accounts.OwnsAccount(ctx, params.UserID, params.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if !owned {
		return nil, ErrAccountNotOwned
	}

	return s.repo.Create(ctx, params)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Category != "" && !IsValidCategory(filter.Category) {
		return nil, ErrInvalidCategory
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, userID int64, id string) (*Transaction, error) {
	tx, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// Update applies a user edit. Edits to synced rows are allowed; the next
// modified record from the provider overwrites the remote-sourced fields
// but never the note.
func (s *Service) Update(ctx context.Context, userID int64, id string, params UpdateParams) (*Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.repo.Update(ctx, userID, id, params)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// Delete removes any of the user's transactions. A deleted synced row is
// not recreated by later modified records; they count as mismatches.
func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID, id)
}
