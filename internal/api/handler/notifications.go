package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/api/respond"
	"github.com/miyahealth/pattern-engine/internal/notify"
)

var taskStatuses = map[string]bool{
	"pending": true, "sending": true, "sent": true,
	"skipped": true, "failed": true, "expired": true,
}

// ListNotifications returns a user's notification tasks.
// @Summary List notification tasks
// @Description Returns a user's notification tasks, newest first. Filterable by status.
// @Tags notifications
// @Produce json
// @Param user_id query string true "User ID (UUID)"
// @Param status query string false "Task status filter" Enums(pending, sending, sent, skipped, failed, expired)
// @Param limit query int false "Max results (default 50, max 200)"
// @Success 200 {array} notify.Task
// @Failure 400 {object} respond.ErrorResponse
// @Router /notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_USER_ID", "user_id must be a valid UUID")
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !taskStatuses[status] {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown task status", status)
		return
	}
	limit := parseLimit(r, 50, 200)

	tasks, err := notify.ListTasks(r.Context(), h.pool, userID, status, limit)
	if err != nil {
		h.logger.Error("list notifications failed", "user_id", userID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Could not list notifications")
		return
	}
	if tasks == nil {
		tasks = []notify.Task{}
	}
	respond.WriteJSONObject(w, http.StatusOK, tasks)
}

// DrainNotifications runs one delivery batch synchronously and reports the
// per-outcome counts. The background worker runs the same loop on a timer;
// this endpoint exists for operators and tests.
// @Summary Drain pending notifications
// @Tags notifications
// @Accept json
// @Produce json
// @Param body body object{batch_size=int,max_age_hours=int} false "Drain options"
// @Success 200 {object} notify.DrainResult
// @Failure 400 {object} respond.ErrorResponse
// @Router /notifications/drain [post]
func (h *Handler) DrainNotifications(w http.ResponseWriter, r *http.Request) {
	batchSize := h.cfg.DispatchBatchSize
	maxAge := h.cfg.TaskMaxAge

	if r.Body != nil && r.ContentLength != 0 {
		var body struct {
			BatchSize   int `json:"batch_size"`
			MaxAgeHours int `json:"max_age_hours"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be JSON")
			return
		}
		if body.BatchSize < 0 || body.BatchSize > 1000 {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_BATCH_SIZE", "batch_size must be 0-1000")
			return
		}
		if body.BatchSize > 0 {
			batchSize = body.BatchSize
		}
		if body.MaxAgeHours > 0 {
			maxAge = time.Duration(body.MaxAgeHours) * time.Hour
		}
	}

	res, err := notify.Drain(r.Context(), h.pool, h.sender, h.cfg, batchSize, maxAge, h.logger)
	if err != nil {
		h.logger.Error("drain failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DRAIN_FAILED", "Notification drain failed")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, res)
}
