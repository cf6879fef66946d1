package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/engine"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/feed"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/database"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// MonitorHandler handles monitoring API endpoints
// SSOT: monitoring API handlers live in this struct and only here
type MonitorHandler struct {
	db         *database.DB
	signals    contracts.SignalStore
	reconciler *engine.Reconciler
	feed       *feed.Service
	logger     *logger.Logger
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(
	db *database.DB,
	signals contracts.SignalStore,
	reconciler *engine.Reconciler,
	feedSvc *feed.Service,
	log *logger.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		db:         db,
		signals:    signals,
		reconciler: reconciler,
		feed:       feedSvc,
		logger:     log,
	}
}

// Health returns database health alongside process liveness
// GET /health
func (h *MonitorHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus, err := h.db.HealthCheck(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Database health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "degraded",
			"database": dbStatus,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"database": dbStatus,
	})
}

// StatusResponse is the engine status snapshot.
type StatusResponse struct {
	Engine       engine.Stats `json:"engine"`
	CachedQuotes int          `json:"cached_quotes"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Status returns reconciliation loop statistics
// GET /api/status
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{
		Engine:       h.reconciler.GetStats(),
		CachedQuotes: h.feed.CacheLen(),
		Timestamp:    time.Now(),
	})
}

// ActiveSignals returns the signals currently under monitoring
// GET /api/signals/active
func (h *MonitorHandler) ActiveSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	signals, err := h.signals.ListActiveSignals(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list active signals")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve active signals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}

// Repair triggers a repair pass immediately
// POST /api/repair
func (h *MonitorHandler) Repair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.logger.Info("Repair pass triggered via API")
	if err := h.reconciler.RepairPass(ctx); err != nil {
		h.logger.WithError(err).Error("Repair pass failed")
		respondError(w, http.StatusInternalServerError, "Repair pass failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"stats":  h.reconciler.GetStats(),
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
