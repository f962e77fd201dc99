package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *postgres.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db          Pinger
	plaid       func() bool
	encryption  func() bool
	environment string
	started     time.Time
}

func NewHealthHandler(db Pinger, plaidConfigured, encryptionConfigured func() bool, environment string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		plaid:       plaidConfigured,
		encryption:  encryptionConfigured,
		environment: environment,
		started:     time.Now(),
	}
}

type HealthResponse struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      float64         `json:"uptime"`
	Environment string          `json:"environment,omitempty"`
	Checks      map[string]bool `json:"checks"`
}

// HandleHealth reports liveness. Only a failed database ping makes the
// service unhealthy; missing provider settings just show up in checks.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.db != nil && h.db.PingContext(ctx) == nil
	resp := HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.started).Seconds(),
		Environment: h.environment,
		Checks: map[string]bool{
			"database":   dbOK,
			"plaid":      h.plaid(),
			"encryption": h.encryption(),
		},
	}

	status := http.StatusOK
	if !dbOK {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
