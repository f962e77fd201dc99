package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"finsync/internal/domain/account"
	"finsync/internal/domain/banksync"
	"finsync/internal/domain/budget"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/plaid"
	"finsync/internal/shared/middleware"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	// Code is the provider error code, e.g. ITEM_LOGIN_REQUIRED.
	Code string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, false
	}
	return userID, true
}

// statusFor maps domain errors to HTTP statuses. Anything unknown is a 500.
func statusFor(err error) (int, string) {
	switch {
	case banksync.IsConfigurationError(err):
		return http.StatusServiceUnavailable, "Bank sync is not configured"
	case banksync.IsIntegrityError(err):
		return http.StatusConflict, "Stored bank credentials are unreadable; reconnect the bank"
	case errors.Is(err, banksync.ErrSyncInProgress):
		return http.StatusConflict, "A sync is already running for this item"
	case errors.Is(err, banksync.ErrItemNotFound):
		return http.StatusNotFound, "Item not found"
	case errors.Is(err, account.ErrAccountNotFound), errors.Is(err, transaction.ErrAccountNotOwned):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, transaction.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, budget.ErrBudgetNotFound):
		return http.StatusNotFound, "Budget not found"
	case errors.Is(err, account.ErrLinkedAccount):
		return http.StatusConflict, err.Error()
	case errors.Is(err, banksync.ErrRemoteProvider):
		return http.StatusBadGateway, "Bank provider request failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeDomainError logs server-side failures and answers with the mapped status.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status, text := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg(msg)
	} else {
		log.Debug().Err(err).Int("status", status).Msg(msg)
	}
	resp := errorResponse{Error: text}
	var perr *plaid.Error
	if errors.As(err, &perr) {
		resp.Code = perr.ErrorCode
	}
	writeJSON(w, status, resp)
}
