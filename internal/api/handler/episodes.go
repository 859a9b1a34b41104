package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/api/respond"
	"github.com/miyahealth/pattern-engine/internal/cache"
	"github.com/miyahealth/pattern-engine/internal/engine"
	"github.com/miyahealth/pattern-engine/internal/pattern"
)

// episodeView is the JSON shape for one alert episode.
type episodeView struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	MetricType        string     `json:"metric_type"`
	PatternType       string     `json:"pattern_type"`
	EpisodeStatus     string     `json:"episode_status"`
	CurrentLevel      int        `json:"current_level"`
	Severity          string     `json:"severity"`
	ActiveSince       string     `json:"active_since"`
	LastEvaluatedDate string     `json:"last_evaluated_date"`
	LastNotifiedLevel *int       `json:"last_notified_level"`
	LastNotifiedAt    *time.Time `json:"last_notified_at"`
	SnoozedUntil      *time.Time `json:"snoozed_until"`
	ComputedAt        time.Time  `json:"computed_at"`
}

func toEpisodeView(e *pattern.Episode) episodeView {
	return episodeView{
		ID:                e.ID,
		UserID:            e.UserID,
		MetricType:        e.MetricType,
		PatternType:       e.PatternType,
		EpisodeStatus:     e.Status,
		CurrentLevel:      e.CurrentLevel,
		Severity:          e.Severity(),
		ActiveSince:       e.ActiveSince.Format(time.DateOnly),
		LastEvaluatedDate: e.LastEvaluatedDate.Format(time.DateOnly),
		LastNotifiedLevel: e.LastNotifiedLevel,
		LastNotifiedAt:    e.LastNotifiedAt,
		SnoozedUntil:      e.SnoozedUntil,
		ComputedAt:        e.ComputedAt,
	}
}

// ListEpisodes returns a user's alert episodes.
// @Summary List alert episodes
// @Description Returns a user's alert episodes, newest first. Optional status filter (active|resolved).
// @Tags episodes
// @Produce json
// @Param user_id query string true "User ID"
// @Param status query string false "Episode status filter"
// @Success 200 {array} episodeView
// @Failure 400 {object} respond.ErrorResponse
// @Router /episodes [get]
func (h *Handler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_USER_ID", "user_id must be a UUID")
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && status != pattern.StatusActive && status != pattern.StatusResolved {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_STATUS", "status must be active or resolved")
		return
	}

	limit := parseLimit(r, 100, 500)

	cacheKey := "episodes:" + userID.String() + ":" + status + ":" + strconv.Itoa(limit)
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLEpisodes, true)
		return
	}

	episodes, err := engine.ListEpisodes(r.Context(), h.pool, userID, status, limit)
	if err != nil {
		h.logger.Error("list episodes failed", "user_id", userID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "LIST_FAILED", "Could not list episodes")
		return
	}

	views := make([]episodeView, 0, len(episodes))
	for i := range episodes {
		views = append(views, toEpisodeView(&episodes[i]))
	}
	data, err := json.Marshal(views)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Could not encode episodes")
		return
	}

	etag := h.cache.Set(cacheKey, data, cache.TTLEpisodes)
	respond.WriteJSON(w, data, etag, cache.TTLEpisodes, false)
}

// GetEpisode returns a single episode by ID.
// @Summary Get alert episode
// @Tags episodes
// @Produce json
// @Param id path string true "Episode ID"
// @Success 200 {object} episodeView
// @Failure 404 {object} respond.ErrorResponse
// @Router /episodes/{id} [get]
func (h *Handler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "episode id must be a UUID")
		return
	}

	ep, err := engine.GetEpisode(r.Context(), h.pool, id)
	if err != nil {
		h.logger.Error("get episode failed", "id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "GET_FAILED", "Could not load episode")
		return
	}
	if ep == nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Episode not found")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, toEpisodeView(ep))
}

// SnoozeEpisode suppresses notifications for an episode for N days.
// @Summary Snooze an episode
// @Description Holds back future notifications without altering the episode's level.
// @Tags episodes
// @Accept json
// @Produce json
// @Param id path string true "Episode ID"
// @Param body body object{days=int} true "Snooze duration in days"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /episodes/{id}/snooze [post]
func (h *Handler) SnoozeEpisode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "episode id must be a UUID")
		return
	}

	var body struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be JSON with a days field")
		return
	}
	if body.Days < 1 || body.Days > 90 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be between 1 and 90")
		return
	}

	until, err := engine.Snooze(r.Context(), h.pool, id, body.Days)
	if err != nil {
		h.logger.Warn("snooze failed", "id", id, "error", err)
		respond.WriteError(w, http.StatusNotFound, "SNOOZE_FAILED", "Episode not found")
		return
	}

	ep, _ := engine.GetEpisode(r.Context(), h.pool, id)
	if ep != nil {
		h.cache.InvalidatePrefix("episodes:" + ep.UserID.String() + ":")
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"episode_id":    id,
		"snoozed_until": until.Format(time.RFC3339),
	})
}

// parseLimit reads an optional limit query param with bounds.
func parseLimit(r *http.Request, def, max int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}
