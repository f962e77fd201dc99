package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"finsync/internal/domain/account"
	"finsync/internal/domain/banksync"
	"finsync/internal/domain/budget"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/plaid"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"vault key missing", fmt.Errorf("decrypt: %w", crypto.ErrNotConfigured), http.StatusServiceUnavailable},
		{"vault key invalid", crypto.ErrInvalidKey, http.StatusServiceUnavailable},
		{"provider not configured", fmt.Errorf("%w: sync: %w", banksync.ErrRemoteProvider, plaid.ErrNotConfigured), http.StatusServiceUnavailable},
		{"integrity", fmt.Errorf("failed to decrypt: %w", crypto.ErrIntegrity), http.StatusConflict},
		{"in progress", banksync.ErrSyncInProgress, http.StatusConflict},
		{"item not found", banksync.ErrItemNotFound, http.StatusNotFound},
		{"account not found", account.ErrAccountNotFound, http.StatusNotFound},
		{"account not owned", transaction.ErrAccountNotOwned, http.StatusNotFound},
		{"transaction not found", transaction.ErrTransactionNotFound, http.StatusNotFound},
		{"budget not found", budget.ErrBudgetNotFound, http.StatusNotFound},
		{"linked account", account.ErrLinkedAccount, http.StatusConflict},
		{"provider", fmt.Errorf("%w: sync: %w", banksync.ErrRemoteProvider, &plaid.Error{StatusCode: 500}), http.StatusBadGateway},
		{"unknown", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestWriteDomainError_ProviderCode(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("%w: sync: %w", banksync.ErrRemoteProvider, &plaid.Error{StatusCode: 400, ErrorCode: "ITEM_LOGIN_REQUIRED"})

	writeDomainError(rec, zerolog.Nop(), err, "sync failed")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body errorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "ITEM_LOGIN_REQUIRED", body.Code)
}

func TestWriteDomainError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, zerolog.Nop(), errors.New("pq: password authentication failed"), "boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRequireUser_MissingContext(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := requireUser(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
