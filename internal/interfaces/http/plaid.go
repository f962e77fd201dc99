package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/infrastructure/plaid"
)

// Linker creates and removes bank connections.
type Linker interface {
	CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkTokenResponse, error)
	LinkNewItem(ctx context.Context, userID int64, publicToken string, inst banksync.InstitutionMeta) (*banksync.LinkResult, error)
	UnlinkItem(ctx context.Context, userID int64, itemID string) error
}

// Syncer runs syncs and lists the user's items.
type Syncer interface {
	RunSync(ctx context.Context, userID int64, itemID string) (*banksync.SyncSummary, error)
	ListItems(ctx context.Context, userID int64) ([]*item.LinkedItem, error)
}

type PlaidHandler struct {
	linker     Linker
	syncer     Syncer
	configured func() bool
	log        zerolog.Logger
}

// NewPlaidHandler wires the bank link endpoints. configured reports whether
// provider credentials and the vault key are both present.
func NewPlaidHandler(linker Linker, syncer Syncer, configured func() bool, log zerolog.Logger) *PlaidHandler {
	return &PlaidHandler{
		linker:     linker,
		syncer:     syncer,
		configured: configured,
		log:        log.With().Str("handler", "plaid").Logger(),
	}
}

type ExchangeTokenRequest struct {
	PublicToken     string `json:"publicToken"`
	InstitutionID   string `json:"institutionId"`
	InstitutionName string `json:"institutionName"`
}

// ItemRequest names a linked item for sync and disconnect.
type ItemRequest struct {
	PlaidItemID string `json:"plaidItemId"`
}

type LinkTokenResponse struct {
	LinkToken  string `json:"linkToken"`
	Expiration string `json:"expiration,omitempty"`
}

type SyncResponse struct {
	Success bool `json:"success"`
	*banksync.SyncSummary
}

func (h *PlaidHandler) HandleConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"configured": h.configured()})
}

func (h *PlaidHandler) HandleLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	resp, err := h.linker.CreateLinkToken(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to create link token")
		return
	}
	writeJSON(w, http.StatusOK, LinkTokenResponse{LinkToken: resp.LinkToken, Expiration: resp.Expiration})
}

func (h *PlaidHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ExchangeTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PublicToken) == "" {
		writeError(w, http.StatusBadRequest, "Public token is required")
		return
	}

	result, err := h.linker.LinkNewItem(r.Context(), userID, req.PublicToken, banksync.InstitutionMeta{
		ID:   req.InstitutionID,
		Name: req.InstitutionName,
	})
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to link item")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PlaidHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, itemID, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.syncer.RunSync(r.Context(), userID, itemID)
	if err != nil {
		writeDomainError(w, h.log, err, "Sync failed")
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Success: true, SyncSummary: summary})
}

func (h *PlaidHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, itemID, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	if err := h.linker.UnlinkItem(r.Context(), userID, itemID); err != nil {
		writeDomainError(w, h.log, err, "Failed to disconnect item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PlaidHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.syncer.ListItems(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to list items")
		return
	}
	if items == nil {
		items = []*item.LinkedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PlaidHandler) itemRequest(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return 0, "", false
	}

	var req ItemRequest
	if !decodeJSON(w, r, &req) {
		return 0, "", false
	}
	if _, err := uuid.Parse(req.PlaidItemID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Plaid item ID")
		return 0, "", false
	}
	return userID, req.PlaidItemID, true
}
