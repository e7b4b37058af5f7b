package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/quizmind/pkg/http/errors"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

const maxLimit = 100

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc          *Service
	store        Store
	defaultLimit int
	logger       zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, store Store, defaultLimit int, logger zerolog.Logger) *HTTPHandler {
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = 10
	}
	return &HTTPHandler{
		svc:          svc,
		store:        store,
		defaultLimit: defaultLimit,
		logger:       logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the current leaderboard for a given window.
// Route: GET /v1/leaderboards/{window}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	window := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/leaderboards/"), "/")
	if window == "" {
		window = WindowAllTime
	}
	if !IsValidWindow(window) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownWindow, "unknown leaderboard window")
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}

	top, source := h.lookup(r.Context(), window, limit)
	if top == nil {
		top = []ws.LeaderboardEntry{}
	}

	writeJSON(w, map[string]interface{}{
		"window":      window,
		"top":         top,
		"source":      source,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// lookup tries Redis, then the Postgres aggregate for all_time, then the newest snapshot.
func (h *HTTPHandler) lookup(ctx context.Context, window string, limit int) ([]ws.LeaderboardEntry, string) {
	if h.svc != nil {
		entries, err := h.svc.Top(ctx, window, limit)
		if err != nil {
			h.logger.Warn().Err(err).Str("window", window).Msg("redis leaderboard fetch failed")
		} else if len(entries) > 0 {
			return ToWSEntries(entries), "redis"
		}
	}

	if h.store == nil {
		return nil, "none"
	}

	if window == WindowAllTime {
		rows, err := h.store.Top(ctx, limit)
		if err != nil {
			h.logger.Warn().Err(err).Msg("aggregate leaderboard fetch failed")
		} else if len(rows) > 0 {
			return ToWSEntries(fromAggregate(rows)), "database"
		}
	}

	return h.snapshotFallback(ctx, window, limit), "snapshot"
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, window string, limit int) []ws.LeaderboardEntry {
	snap, err := h.store.LatestSnapshot(ctx, window)
	if err != nil {
		h.logger.Warn().Err(err).Str("window", window).Msg("snapshot fetch failed")
		return nil
	}
	if snap == nil {
		return nil
	}

	var entries []ws.LeaderboardEntry
	if err := json.Unmarshal(snap.Entries, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		return nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
