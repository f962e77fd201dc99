package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"finsync/internal/domain/account"
)

type AccountHandler struct {
	accountService *account.Service
	log            zerolog.Logger
}

func NewAccountHandler(accountService *account.Service, log zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		log:            log.With().Str("handler", "account").Logger(),
	}
}

// CreateAccountRequest is a manual account. Linked accounts come from the bank link flow.
type CreateAccountRequest struct {
	Name             string              `json:"name"`
	Type             string              `json:"type"`
	Subtype          *string             `json:"subtype"`
	CurrentBalance   decimal.NullDecimal `json:"current_balance"`
	AvailableBalance decimal.NullDecimal `json:"available_balance"`
	Currency         string              `json:"currency"`
	InstitutionName  *string             `json:"institution_name"`
	Mask             *string             `json:"mask"`
}

func (req CreateAccountRequest) params(userID int64) account.CreateParams {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	return account.CreateParams{
		UserID:           userID,
		Name:             strings.TrimSpace(req.Name),
		Type:             req.Type,
		Subtype:          req.Subtype,
		CurrentBalance:   req.CurrentBalance,
		AvailableBalance: req.AvailableBalance,
		Currency:         currency,
		InstitutionName:  req.InstitutionName,
		Mask:             req.Mask,
		IsManual:         true,
	}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.accountService.ListAccountsByUserID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*account.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mask != nil && len(*req.Mask) > 4 {
		writeError(w, http.StatusBadRequest, "mask must be at most 4 characters")
		return
	}

	params := req.params(userID)
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := h.accountService.CreateManual(r.Context(), params)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// HandleDeleteAccount removes a manual account. Linked accounts answer 409.
func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.accountService.DeleteManual(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, h.log, err, "Failed to delete account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
