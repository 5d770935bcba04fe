package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
	"github.com/Ilyaberbx/decentra-test-task/internal/modules/cards"
	"github.com/Ilyaberbx/decentra-test-task/internal/modules/valuesync"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Handlers holds the HTTP handlers and their dependencies
type Handlers struct {
	log         zerolog.Logger
	cardService *cards.Service
	syncService *valuesync.Service
	startupTime time.Time
}

// NewHandlers creates the handler set
func NewHandlers(log zerolog.Logger, cardService *cards.Service, syncService *valuesync.Service) *Handlers {
	return &Handlers{
		log:         log.With().Str("component", "handlers").Logger(),
		cardService: cardService,
		syncService: syncService,
		startupTime: time.Now(),
	}
}

// HandleHealth reports service liveness plus basic system stats.
// GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuAvg, memUsed := h.systemStats()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"syncing":        h.syncService.IsSyncing(),
		"cpu_percent":    cpuAvg,
		"memory_percent": memUsed,
	})
}

// HandleListCards returns stored cards with optional value filters.
// GET /api/cards?limit=&offset=&min_value=&max_value=
func (h *Handlers) HandleListCards(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "offset must be zero or positive")
		return
	}

	minValue, err := queryFloat(r, "min_value")
	if err != nil {
		respondError(w, http.StatusBadRequest, "min_value must be a number")
		return
	}
	maxValue, err := queryFloat(r, "max_value")
	if err != nil {
		respondError(w, http.StatusBadRequest, "max_value must be a number")
		return
	}
	if minValue != nil && maxValue != nil && *minValue > *maxValue {
		respondError(w, http.StatusBadRequest, "min_value cannot exceed max_value")
		return
	}

	list, err := h.cardService.GetAllWithFilters(minValue, maxValue, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list cards")
		respondError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}

	total, err := h.cardService.GetCountWithFilters(minValue, maxValue)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count cards")
		respondError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}

	if list == nil {
		list = []domain.Card{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cards": list,
		"pagination": map[string]interface{}{
			"limit":    limit,
			"offset":   offset,
			"total":    total,
			"has_more": offset+len(list) < total,
		},
	})
}

// HandleCardStats returns the total card count and per-tier breakdown.
// GET /api/cards/stats
func (h *Handlers) HandleCardStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.cardService.GetCount()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count cards")
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	tiers, err := h.cardService.GetCountByValueTier()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count cards by tier")
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": total,
		"tiers": tiers,
	})
}

// HandleTriggerSync starts a full sync in the background. Returns 409 when
// one is already running.
// POST /api/sync
func (h *Handlers) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncService.IsSyncing() {
		respondError(w, http.StatusConflict, "synchronization already in progress")
		return
	}

	go func() {
		if err := h.syncService.SyncAll(); err != nil {
			h.log.Error().Err(err).Msg("Background sync failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "sync started",
	})
}

// HandleSyncStatus reports whether a full sync is running.
// GET /api/sync/status
func (h *Handlers) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"syncing": h.syncService.IsSyncing(),
	})
}

// systemStats returns average CPU and memory usage percentages. The short CPU
// sampling interval keeps the health endpoint responsive.
func (h *Handlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
