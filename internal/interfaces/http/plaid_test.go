package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/infrastructure/plaid"
)

const testItemID = "6f1c3f4e-2b1a-4c7d-9e8f-0a1b2c3d4e5f"

type MockLinker struct {
	CreateLinkTokenFunc func(ctx context.Context, userID int64) (*plaid.LinkTokenResponse, error)
	LinkNewItemFunc     func(ctx context.Context, userID int64, publicToken string, inst banksync.InstitutionMeta) (*banksync.LinkResult, error)
	UnlinkItemFunc      func(ctx context.Context, userID int64, itemID string) error
}

func (m *MockLinker) CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkTokenResponse, error) {
	return m.CreateLinkTokenFunc(ctx, userID)
}

func (m *MockLinker) LinkNewItem(ctx context.Context, userID int64, publicToken string, inst banksync.InstitutionMeta) (*banksync.LinkResult, error) {
	return m.LinkNewItemFunc(ctx, userID, publicToken, inst)
}

func (m *MockLinker) UnlinkItem(ctx context.Context, userID int64, itemID string) error {
	return m.UnlinkItemFunc(ctx, userID, itemID)
}

type MockSyncer struct {
	RunSyncFunc   func(ctx context.Context, userID int64, itemID string) (*banksync.SyncSummary, error)
	ListItemsFunc func(ctx context.Context, userID int64) ([]*item.LinkedItem, error)
}

func (m *MockSyncer) RunSync(ctx context.Context, userID int64, itemID string) (*banksync.SyncSummary, error) {
	return m.RunSyncFunc(ctx, userID, itemID)
}

func (m *MockSyncer) ListItems(ctx context.Context, userID int64) ([]*item.LinkedItem, error) {
	return m.ListItemsFunc(ctx, userID)
}

func newPlaidHandler(l *MockLinker, s *MockSyncer) *PlaidHandler {
	return NewPlaidHandler(l, s, func() bool { return true }, zerolog.Nop())
}

func TestPlaidHandler_Configured(t *testing.T) {
	for _, configured := range []bool{true, false} {
		h := NewPlaidHandler(&MockLinker{}, &MockSyncer{}, func() bool { return configured }, zerolog.Nop())
		rec := serve(t, http.MethodGet, "/api/plaid/configured", "/api/plaid/configured", nil, h.HandleConfigured)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]bool
		decodeBody(t, rec, &body)
		assert.Equal(t, configured, body["configured"])
	}
}

func TestPlaidHandler_LinkToken(t *testing.T) {
	linker := &MockLinker{CreateLinkTokenFunc: func(_ context.Context, userID int64) (*plaid.LinkTokenResponse, error) {
		assert.Equal(t, testUserID, userID)
		return &plaid.LinkTokenResponse{LinkToken: "link-sandbox-abc", Expiration: "2026-01-01T00:00:00Z"}, nil
	}}
	h := newPlaidHandler(linker, &MockSyncer{})

	rec := serve(t, http.MethodGet, "/link-token", "/link-token", nil, h.HandleLinkToken)

	require.Equal(t, http.StatusOK, rec.Code)
	var body LinkTokenResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "link-sandbox-abc", body.LinkToken)
}

func TestPlaidHandler_LinkTokenNotConfigured(t *testing.T) {
	linker := &MockLinker{CreateLinkTokenFunc: func(context.Context, int64) (*plaid.LinkTokenResponse, error) {
		return nil, fmt.Errorf("%w: link token: %w", banksync.ErrRemoteProvider, plaid.ErrNotConfigured)
	}}
	h := newPlaidHandler(linker, &MockSyncer{})

	rec := serve(t, http.MethodGet, "/link-token", "/link-token", nil, h.HandleLinkToken)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPlaidHandler_ExchangeToken(t *testing.T) {
	var gotInst banksync.InstitutionMeta
	linker := &MockLinker{LinkNewItemFunc: func(_ context.Context, userID int64, publicToken string, inst banksync.InstitutionMeta) (*banksync.LinkResult, error) {
		assert.Equal(t, "public-sandbox-1", publicToken)
		gotInst = inst
		return &banksync.LinkResult{Success: true, ItemID: testItemID, AccountsAdded: 2, TransactionsAdded: 5}, nil
	}}
	h := newPlaidHandler(linker, &MockSyncer{})

	rec := serve(t, http.MethodPost, "/exchange", "/exchange", ExchangeTokenRequest{
		PublicToken:     "public-sandbox-1",
		InstitutionID:   "ins_1",
		InstitutionName: "First Platypus Bank",
	}, h.HandleExchangeToken)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, banksync.InstitutionMeta{ID: "ins_1", Name: "First Platypus Bank"}, gotInst)

	var body banksync.LinkResult
	decodeBody(t, rec, &body)
	assert.Equal(t, 2, body.AccountsAdded)
	assert.Equal(t, 5, body.TransactionsAdded)
}

func TestPlaidHandler_ExchangeTokenValidation(t *testing.T) {
	h := newPlaidHandler(&MockLinker{}, &MockSyncer{})

	rec := serve(t, http.MethodPost, "/exchange", "/exchange", ExchangeTokenRequest{}, h.HandleExchangeToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPost, "/exchange", "/exchange", "{not json", h.HandleExchangeToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaidHandler_Sync(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		err        error
		wantStatus int
	}{
		{name: "ok", body: ItemRequest{PlaidItemID: testItemID}, wantStatus: http.StatusOK},
		{name: "bad id", body: ItemRequest{PlaidItemID: "nope"}, wantStatus: http.StatusBadRequest},
		{name: "unknown item", body: ItemRequest{PlaidItemID: testItemID}, err: banksync.ErrItemNotFound, wantStatus: http.StatusNotFound},
		{name: "in progress", body: ItemRequest{PlaidItemID: testItemID}, err: banksync.ErrSyncInProgress, wantStatus: http.StatusConflict},
		{
			name:       "provider failure",
			body:       ItemRequest{PlaidItemID: testItemID},
			err:        fmt.Errorf("%w: sync: %w", banksync.ErrRemoteProvider, &plaid.Error{StatusCode: 500, ErrorCode: "INTERNAL_SERVER_ERROR"}),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &MockSyncer{RunSyncFunc: func(_ context.Context, userID int64, itemID string) (*banksync.SyncSummary, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &banksync.SyncSummary{ItemID: itemID, UserID: userID, TransactionsAdded: 3, Outcome: banksync.OutcomeSuccess}, nil
			}}
			h := newPlaidHandler(&MockLinker{}, syncer)

			rec := serve(t, http.MethodPost, "/sync", "/sync", tt.body, h.HandleSync)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				var body map[string]any
				decodeBody(t, rec, &body)
				assert.Equal(t, true, body["success"])
				assert.Equal(t, float64(3), body["transactionsAdded"])
				assert.Equal(t, "success", body["outcome"])
				assert.NotContains(t, body, "UserID")
			}
		})
	}
}

func TestPlaidHandler_Disconnect(t *testing.T) {
	var gotItem string
	linker := &MockLinker{UnlinkItemFunc: func(_ context.Context, userID int64, itemID string) error {
		gotItem = itemID
		return nil
	}}
	h := newPlaidHandler(linker, &MockSyncer{})

	rec := serve(t, http.MethodPost, "/disconnect", "/disconnect", ItemRequest{PlaidItemID: testItemID}, h.HandleDisconnect)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testItemID, gotItem)
}

func TestPlaidHandler_ListItemsEmpty(t *testing.T) {
	syncer := &MockSyncer{ListItemsFunc: func(context.Context, int64) ([]*item.LinkedItem, error) {
		return nil, nil
	}}
	h := newPlaidHandler(&MockLinker{}, syncer)

	rec := serve(t, http.MethodGet, "/items", "/items", nil, h.HandleListItems)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
