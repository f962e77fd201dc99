package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

const testAccountID = "0b7e2a52-8d7c-4b7e-9a51-3f2f4c1d9e10"

// MockTransactionRepo implements transaction.Repository for testing
type MockTransactionRepo struct {
	CreateFunc  func(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
	GetByIDFunc func(ctx context.Context, userID int64, id string) (*transaction.Transaction, error)
	ListFunc    func(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error)
	UpdateFunc  func(ctx context.Context, userID int64, id string, params transaction.UpdateParams) (*transaction.Transaction, error)
	DeleteFunc  func(ctx context.Context, userID int64, id string) error
}

func (m *MockTransactionRepo) UpsertRemote(context.Context, int64, []transaction.RemoteUpsertParams) (int64, error) {
	return 0, nil
}

func (m *MockTransactionRepo) UpdateRemote(context.Context, int64, transaction.RemoteUpdateParams) (bool, error) {
	return false, nil
}

func (m *MockTransactionRepo) DeleteByRemoteIDs(context.Context, int64, []string) (int64, error) {
	return 0, nil
}

func (m *MockTransactionRepo) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, userID int64, id string) (*transaction.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *MockTransactionRepo) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockTransactionRepo) Update(ctx context.Context, userID int64, id string, params transaction.UpdateParams) (*transaction.Transaction, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, userID, id, params)
	}
	return nil, nil
}

func (m *MockTransactionRepo) Delete(ctx context.Context, userID int64, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

func (m *MockTransactionRepo) SpendingByCategory(context.Context, int64, time.Time, time.Time) (map[transaction.Category]decimal.Decimal, error) {
	return nil, nil
}

func newTransactionHandler(repo *MockTransactionRepo, accounts *MockAccountRepo) *TransactionHandler {
	svc := transaction.NewService(repo, account.NewService(accounts))
	return NewTransactionHandler(svc, zerolog.Nop())
}

func ownedAccount() *MockAccountRepo {
	return &MockAccountRepo{GetByIDFunc: func(_ context.Context, userID int64, id string) (*account.Account, error) {
		if userID == testUserID && id == testAccountID {
			return &account.Account{ID: id, UserID: userID}, nil
		}
		return nil, nil
	}}
}

func TestTransactionHandler_ListFilters(t *testing.T) {
	var got transaction.ListFilter
	repo := &MockTransactionRepo{ListFunc: func(_ context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
		got = filter
		return nil, nil
	}}
	h := newTransactionHandler(repo, ownedAccount())

	target := "/api/transactions?accountId=" + testAccountID +
		"&category=Shopping&startDate=2024-01-01&endDate=2024-01-31&search=%20coffee%20&limit=25&offset=50"
	rec := serve(t, http.MethodGet, "/api/transactions", target, nil, h.HandleListTransactions)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, testUserID, got.UserID)
	assert.Equal(t, testAccountID, got.AccountID)
	assert.Equal(t, "Shopping", got.Category)
	assert.Equal(t, "coffee", got.Search)
	assert.Equal(t, 25, got.Limit)
	assert.Equal(t, 50, got.Offset)
	require.NotNil(t, got.StartDate)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *got.EndDate)
}

func TestTransactionHandler_ListBadParams(t *testing.T) {
	h := newTransactionHandler(&MockTransactionRepo{}, ownedAccount())

	for _, q := range []string{
		"?startDate=01/02/2024",
		"?limit=-1",
		"?offset=abc",
		"?accountId=not-a-uuid",
		"?category=Groceries",
	} {
		rec := serve(t, http.MethodGet, "/api/transactions", "/api/transactions"+q, nil, h.HandleListTransactions)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestTransactionHandler_Create(t *testing.T) {
	var got transaction.CreateParams
	repo := &MockTransactionRepo{CreateFunc: func(_ context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
		got = params
		return &transaction.Transaction{ID: "t1", AccountID: params.AccountID, Name: params.Name, Amount: params.Amount, IsManual: true}, nil
	}}
	h := newTransactionHandler(repo, ownedAccount())

	rec := serve(t, http.MethodPost, "/api/transactions", "/api/transactions", map[string]any{
		"account_id": testAccountID,
		"date":       "2024-03-09",
		"name":       " Farmers market ",
		"amount":     23.4,
		"category":   "Food & Dining",
		"note":       "weekly",
	}, h.HandleCreateTransaction)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Farmers market", got.Name)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("23.4")))
	require.NotNil(t, got.Category)
	assert.Equal(t, transaction.CategoryFoodAndDining, *got.Category)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestTransactionHandler_CreateErrors(t *testing.T) {
	otherAccount := "9f9f9f9f-8d7c-4b7e-9a51-3f2f4c1d9e10"
	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{"missing amount", map[string]any{"account_id": testAccountID, "date": "2024-03-09", "name": "x"}, http.StatusBadRequest},
		{"bad date", map[string]any{"account_id": testAccountID, "date": "03/09/2024", "name": "x", "amount": 1}, http.StatusBadRequest},
		{"bad category", map[string]any{"account_id": testAccountID, "date": "2024-03-09", "name": "x", "amount": 1, "category": "Groceries"}, http.StatusBadRequest},
		{"not my account", map[string]any{"account_id": otherAccount, "date": "2024-03-09", "name": "x", "amount": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTransactionHandler(&MockTransactionRepo{}, ownedAccount())
			rec := serve(t, http.MethodPost, "/api/transactions", "/api/transactions", tt.body, h.HandleCreateTransaction)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestTransactionHandler_Update(t *testing.T) {
	var got transaction.UpdateParams
	repo := &MockTransactionRepo{UpdateFunc: func(_ context.Context, userID int64, id string, params transaction.UpdateParams) (*transaction.Transaction, error) {
		assert.Equal(t, "t1", id)
		got = params
		return &transaction.Transaction{ID: id, Note: params.Note}, nil
	}}
	h := newTransactionHandler(repo, ownedAccount())

	rec := serve(t, http.MethodPatch, "/api/transactions/{id}", "/api/transactions/t1",
		`{"note":"split with Sam","date":"2024-02-01"}`, h.HandleUpdateTransaction)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Note)
	assert.Equal(t, "split with Sam", *got.Note)
	require.NotNil(t, got.Date)
	assert.Nil(t, got.Name)
	assert.Nil(t, got.Amount)
}

func TestTransactionHandler_UpdateNotFound(t *testing.T) {
	h := newTransactionHandler(&MockTransactionRepo{}, ownedAccount())

	rec := serve(t, http.MethodPatch, "/api/transactions/{id}", "/api/transactions/t1", `{"name":"x"}`, h.HandleUpdateTransaction)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionHandler_Delete(t *testing.T) {
	deleted := ""
	repo := &MockTransactionRepo{
		GetByIDFunc: func(_ context.Context, userID int64, id string) (*transaction.Transaction, error) {
			if id == "t1" {
				return &transaction.Transaction{ID: id}, nil
			}
			return nil, nil
		},
		DeleteFunc: func(_ context.Context, userID int64, id string) error {
			deleted = id
			return nil
		},
	}
	h := newTransactionHandler(repo, ownedAccount())

	rec := serve(t, http.MethodDelete, "/api/transactions/{id}", "/api/transactions/t1", nil, h.HandleDeleteTransaction)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", deleted)

	rec = serve(t, http.MethodDelete, "/api/transactions/{id}", "/api/transactions/t2", nil, h.HandleDeleteTransaction)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
