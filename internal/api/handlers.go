package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
	"github.com/nusdprotocol/liquidation-service/internal/positions"
)

const defaultAttemptsLimit = 50

// PositionSource is the registry surface the handlers read and trigger.
type PositionSource interface {
	Get(id uint64) (*models.Position, bool)
	All() []*models.Position
	EligibleForLiquidation() []*models.Position
	Stats() positions.RegistryStats
	DiscoverAll(ctx context.Context) error
	RefreshAll(ctx context.Context, quote *models.PriceQuote)
}

// AttemptSource reads recorded liquidation attempts.
type AttemptSource interface {
	GetRecentAttempts(limit int) ([]*models.LiquidationAttempt, error)
}

// QuoteFetcher fetches a signed oracle quote on demand.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context) (*models.PriceQuote, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	positions PositionSource
	attempts  AttemptSource
	feed      QuoteFetcher
	stop      func()
	stopOnce  sync.Once
	log       *logrus.Entry
}

// NewHandler creates a new Handler. attempts may be nil when no database is
// configured; stop is invoked by the shutdown endpoint.
func NewHandler(positions PositionSource, attempts AttemptSource, feed QuoteFetcher, stop func()) *Handler {
	return &Handler{
		positions: positions,
		attempts:  attempts,
		feed:      feed,
		stop:      stop,
		log:       logrus.WithField("component", "api"),
	}
}

// GetAllPositions handles GET /positions
func (h *Handler) GetAllPositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.positions.All())
}

// GetPosition handles GET /positions/{id}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid position id", http.StatusBadRequest)
		return
	}

	position, ok := h.positions.Get(id)
	if !ok {
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, position)
}

// GetEligiblePositions handles GET /positions/eligible
func (h *Handler) GetEligiblePositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.positions.EligibleForLiquidation())
}

// GetStats handles GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.positions.Stats())
}

// TriggerDiscover handles POST /discover
func (h *Handler) TriggerDiscover(w http.ResponseWriter, r *http.Request) {
	if err := h.positions.DiscoverAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, h.positions.Stats())
}

// TriggerRefresh handles POST /refresh. It fetches a fresh quote and
// re-evaluates every active position against it.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	quote, err := h.feed.FetchQuote(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !quote.IsFresh(0) {
		http.Error(w, "oracle quote is stale", http.StatusBadGateway)
		return
	}

	h.positions.RefreshAll(r.Context(), quote)
	respondJSON(w, http.StatusOK, h.positions.Stats())
}

// GetRecentAttempts handles GET /attempts
func (h *Handler) GetRecentAttempts(w http.ResponseWriter, r *http.Request) {
	if h.attempts == nil {
		http.Error(w, "attempt history not configured", http.StatusNotImplemented)
		return
	}

	limit := defaultAttemptsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	attempts, err := h.attempts.GetRecentAttempts(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}

// Shutdown handles POST /stop. The stop hook runs at most once so a
// repeated request cannot trip a second close of the shutdown channel.
func (h *Handler) Shutdown(w http.ResponseWriter, r *http.Request) {
	h.log.Info("shutdown requested via api")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})

	if h.stop != nil {
		go h.stopOnce.Do(h.stop)
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
