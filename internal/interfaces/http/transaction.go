package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"finsync/internal/domain/transaction"
)

type TransactionHandler struct {
	transactionService *transaction.Service
	log                zerolog.Logger
}

func NewTransactionHandler(transactionService *transaction.Service, log zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		log:                log.With().Str("handler", "transaction").Logger(),
	}
}

type CreateTransactionRequest struct {
	AccountID    string           `json:"account_id"`
	Date         string           `json:"date"`
	Name         string           `json:"name"`
	MerchantName *string          `json:"merchant_name"`
	Amount       *decimal.Decimal `json:"amount"`
	Currency     string           `json:"currency"`
	Category     *string          `json:"category"`
	Pending      bool             `json:"pending"`
	Note         *string          `json:"note"`
}

// UpdateTransactionRequest is a partial edit; absent fields stay unchanged.
type UpdateTransactionRequest struct {
	Date         *string          `json:"date"`
	Name         *string          `json:"name"`
	MerchantName *string          `json:"merchant_name"`
	Amount       *decimal.Decimal `json:"amount"`
	Category     *string          `json:"category"`
	Pending      *bool            `json:"pending"`
	Note         *string          `json:"note"`
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter, err := parseListFilter(r, userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.transactionService.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, transaction.ErrInvalidCategory) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, h.log, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}
	date, err := time.Parse(transaction.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	params := transaction.CreateParams{
		UserID:       userID,
		AccountID:    req.AccountID,
		Date:         date,
		Name:         strings.TrimSpace(req.Name),
		MerchantName: req.MerchantName,
		Amount:       *req.Amount,
		Currency:     currency,
		Category:     categoryPtr(req.Category),
		Pending:      req.Pending,
		Note:         req.Note,
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.transactionService.CreateManual(r.Context(), params)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to create transaction")
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params := transaction.UpdateParams{
		Name:         req.Name,
		MerchantName: req.MerchantName,
		Amount:       req.Amount,
		Category:     categoryPtr(req.Category),
		Pending:      req.Pending,
		Note:         req.Note,
	}
	if req.Date != nil {
		date, err := time.Parse(transaction.DateLayout, *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		params.Date = &date
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.transactionService.Update(r.Context(), userID, chi.URLParam(r, "id"), params)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to update transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.transactionService.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, h.log, err, "Failed to delete transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseListFilter(r *http.Request, userID int64) (transaction.ListFilter, error) {
	q := r.URL.Query()
	filter := transaction.ListFilter{
		UserID:    userID,
		AccountID: q.Get("accountId"),
		Category:  q.Get("category"),
		Search:    strings.TrimSpace(q.Get("search")),
	}
	if filter.AccountID != "" {
		if _, err := uuid.Parse(filter.AccountID); err != nil {
			return filter, &paramError{name: "accountId", msg: "must be a UUID"}
		}
	}

	for name, dst := range map[string]**time.Time{"startDate": &filter.StartDate, "endDate": &filter.EndDate} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := time.Parse(transaction.DateLayout, v)
		if err != nil {
			return filter, &paramError{name: name, msg: "must be YYYY-MM-DD"}
		}
		*dst = &d
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, &paramError{name: name, msg: "must be a non-negative integer"}
		}
		*dst = n
	}
	return filter, nil
}

type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string { return e.name + " " + e.msg }

func categoryPtr(s *string) *transaction.Category {
	if s == nil || *s == "" {
		return nil
	}
	c := transaction.Category(*s)
	return &c
}
