package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"finsync/internal/domain/budget"
)

type BudgetHandler struct {
	budgetService *budget.Service
	log           zerolog.Logger
	now           func() time.Time
}

func NewBudgetHandler(budgetService *budget.Service, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{
		budgetService: budgetService,
		log:           log.With().Str("handler", "budget").Logger(),
		now:           time.Now,
	}
}

type SetBudgetRequest struct {
	Category    string          `json:"category"`
	Month       string          `json:"month"` // YYYY-MM-01
	LimitAmount decimal.Decimal `json:"limit_amount"`
}

// HandleListBudgets returns the budgets of ?month=YYYY-MM (or YYYY-MM-01)
// with spending so far. Defaults to the current month.
func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	month := budget.MonthStart(h.now())
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := parseMonth(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = m
	}

	statuses, err := h.budgetService.StatusForMonth(r.Context(), userID, month)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to list budgets")
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// HandleSetBudget creates the budget or replaces the limit of an existing
// one for the same category and month.
func (h *BudgetHandler) HandleSetBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SetBudgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	month, err := time.Parse("2006-01-02", req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM-01")
		return
	}

	params := budget.UpsertParams{
		UserID:   userID,
		Category: req.Category,
		Month:    month,
		Limit:    req.LimitAmount,
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.budgetService.Set(r.Context(), params)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to save budget")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BudgetHandler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.budgetService.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, h.log, err, "Failed to delete budget")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseMonth(v string) (time.Time, error) {
	if t, err := time.Parse(budget.MonthLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return budget.MonthStart(t), nil
}
