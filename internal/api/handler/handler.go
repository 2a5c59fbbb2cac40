// Package handler provides HTTP handlers for the read-only operational API:
// health checks, tracked events, announcement history, and a leaderboard
// preview. Everything writes go through the poller, never through HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/regpulse/internal/api/respond"
	"github.com/attendly/regpulse/internal/cache"
	"github.com/attendly/regpulse/internal/config"
	"github.com/attendly/regpulse/internal/leaderboard"
	"github.com/attendly/regpulse/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool  *pgxpool.Pool
	store *store.Store
	cache *cache.Cache
	cfg   *config.Config
}

// New creates a Handler with shared dependencies.
func New(pool *pgxpool.Pool, st *store.Store, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{pool: pool, store: st, cache: c, cfg: cfg}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Regpulse API",
		"version": "1.0.0",
		"status":  "running",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetTrackedEvents lists all tracked events with their milestone state.
func (h *Handler) GetTrackedEvents(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "tracked_events"
	ttl := cache.TTLEvents

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	events, err := h.store.List(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list tracked events")
		return
	}

	type eventJSON struct {
		EventID               string     `json:"event_id"`
		DisplayName           string     `json:"display_name"`
		LastKnownCount        int        `json:"last_known_count"`
		LastMilestoneNotified int        `json:"last_milestone_notified"`
		LastNotifiedAt        *time.Time `json:"last_notified_at,omitempty"`
		LastUpdatedAt         time.Time  `json:"last_updated_at"`
	}
	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, eventJSON{
			EventID:               ev.EventID,
			DisplayName:           ev.DisplayName,
			LastKnownCount:        ev.LastKnownCount,
			LastMilestoneNotified: ev.LastMilestoneNotified,
			LastNotifiedAt:        ev.LastNotifiedAt,
			LastUpdatedAt:         ev.LastUpdatedAt,
		})
	}

	raw, err := json.Marshal(map[string]interface{}{"events": out, "count": len(out)})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode events")
		return
	}

	etag := h.cache.Set(cacheKey, raw, ttl)
	respond.WriteJSON(w, raw, etag, ttl, false)
}

// GetLeaderboard previews the registration leaderboard.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", h.cfg.LeaderboardSize)
	cacheKey := "leaderboard:" + strconv.Itoa(limit)
	ttl := cache.TTLLeaderboard

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	entries, err := leaderboard.Top(r.Context(), h.pool, limit)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to query leaderboard")
		return
	}

	raw, err := json.Marshal(map[string]interface{}{"leaderboard": entries})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode leaderboard")
		return
	}

	etag := h.cache.Set(cacheKey, raw, ttl)
	respond.WriteJSON(w, raw, etag, ttl, false)
}

// GetRecentNotifications lists recent milestone announcements.
func (h *Handler) GetRecentNotifications(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	notifications, err := h.store.RecentNotifications(r.Context(), limit)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []store.SentNotification{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
