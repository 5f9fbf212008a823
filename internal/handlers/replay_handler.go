package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruralpay/payments-engine/internal/audit"
	"github.com/ruralpay/payments-engine/internal/ingest"
	"github.com/ruralpay/payments-engine/internal/report"
	"github.com/ruralpay/payments-engine/internal/services"
)

const cacheHeader = "X-Replay-Cache"

// ReplayHandler replays uploaded CSV files. Every request gets its own
// AccountBook; nothing is shared between requests except the report cache.
type ReplayHandler struct {
	cache    *services.ReportCache
	policy   services.LockedPolicy
	maxBytes int64
	logger   *zap.Logger
}

func NewReplayHandler(cache *services.ReportCache, policy services.LockedPolicy, maxBytes int64, logger *zap.Logger) *ReplayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayHandler{
		cache:    cache,
		policy:   policy,
		maxBytes: maxBytes,
		logger:   logger.Named("replay_handler"),
	}
}

// Replay handles POST /api/v1/replay with a CSV body and answers with the
// final account report.
func (h *ReplayHandler) Replay(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			services.SendErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge, nil)
			return
		}
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		services.SendErrorResponse(w, "Request body must contain a CSV file", http.StatusBadRequest, nil)
		return
	}

	contentKey := services.ContentKey(body)
	if h.cache.Enabled() {
		cached, found, err := h.cache.Get(r.Context(), contentKey)
		if err != nil {
			h.logger.Warn("report cache lookup failed", zap.Error(err))
		} else if found {
			w.Header().Set(cacheHeader, "HIT")
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	src, err := ingest.NewCSVSource(bytes.NewReader(body))
	if err != nil {
		services.SendErrorResponse(w, "Invalid CSV header: "+err.Error(), http.StatusBadRequest, nil)
		return
	}

	book := services.NewAccountBook(nil, h.policy)
	replayer := services.NewReplayer(book, audit.NewAuditLogger(h.logger), h.logger)
	summary, err := replayer.Run(r.Context(), src)
	if err != nil {
		h.logger.Error("replay failed", zap.String("run_id", replayer.RunID()), zap.Error(err))
		services.SendErrorResponse(w, "Replay failed", http.StatusInternalServerError, nil)
		return
	}

	accounts, err := json.Marshal(report.Rows(book.Snapshot()))
	if err != nil {
		services.SendErrorResponse(w, "Failed to render report", http.StatusInternalServerError, nil)
		return
	}
	result := &services.CachedReport{
		RunID:    summary.RunID,
		Summary:  summary,
		Accounts: accounts,
	}

	if h.cache.Enabled() {
		if err := h.cache.Put(r.Context(), contentKey, result); err != nil {
			h.logger.Warn("report cache store failed", zap.String("run_id", summary.RunID), zap.Error(err))
		}
		w.Header().Set(cacheHeader, "MISS")
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetReport handles GET /api/v1/replay/{runId}.
func (h *ReplayHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	if _, err := uuid.Parse(runID); err != nil {
		services.SendErrorResponse(w, "Invalid run id", http.StatusBadRequest, nil)
		return
	}
	if !h.cache.Enabled() {
		services.SendErrorResponse(w, "Report cache unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	cached, found, err := h.cache.Get(r.Context(), services.RunKey(runID))
	if err != nil {
		h.logger.Error("report cache lookup failed", zap.String("run_id", runID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to load report", http.StatusInternalServerError, nil)
		return
	}
	if !found {
		services.SendErrorResponse(w, "Report not found", http.StatusNotFound, nil)
		return
	}
	respondJSON(w, http.StatusOK, cached)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
