package account

import (
	"context"
	"errors"
	"strings"
)

// Service contains the business logic for account operations
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateManual creates a user-entered account.
func (s *Service) CreateManual(ctx context.Context, params CreateParams) (*Account, error) {
	if params.Currency == "" {
		params.Currency = "USD"
	}
	params.Currency = strings.ToUpper(params.Currency)
	params.IsManual = true
	params.LinkedItemID = nil
	params.RemoteAccountID = nil

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, params)
}

// GetAccount retrieves an account owned by the user.
func (s *Service) GetAccount(ctx context.Context, userID int64, accountID string) (*Account, error) {
	acct, err := s.repo.GetByID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

// ListAccountsByUserID retrieves all accounts for a specific user
func (s *Service) ListAccountsByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}
	return s.repo.ListByUserID(ctx, userID)
}

// GroupByItem buckets accounts by linked item ID; manual accounts land
// under the empty key.
func GroupByItem(accounts []*Account) map[string][]*Account {
	groups := make(map[string][]*Account)
	for _, a := range accounts {
		key := ""
		if a.LinkedItemID != nil {
			key = *a.LinkedItemID
		}
		groups[key] = append(groups[key], a)
	}
	return groups
}

// DeleteManual deletes a manual account with its transactions.
func (s *Service) DeleteManual(ctx context.Context, userID int64, accountID string) error {
	acct, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if !acct.IsManual {
		return ErrLinkedAccount
	}
	return s.repo.Delete(ctx, userID, accountID)
}

// OwnsAccount reports whether the account exists for the user.
func (s *Service) OwnsAccount(ctx context.Context, userID int64, accountID string) (bool, error) {
	acct, err := s.repo.GetByID(ctx, userID, accountID)
	if err != nil {
		return false, err
	}
	return acct != nil, nil
}
