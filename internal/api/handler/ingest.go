package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/api/respond"
	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/engine"
)

// observationRequest is one already-parsed daily reading from the wearable
// ingestion adapter. A null value means "no data that day".
type observationRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	MetricType string    `json:"metric_type"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Value      *float64  `json:"value"`
}

// exerciseRequest is one per-day exercise flag.
type exerciseRequest struct {
	UserID               uuid.UUID `json:"user_id"`
	Date                 string    `json:"date"`
	HadQualifyingActivity bool     `json:"had_qualifying_activity"`
}

// IngestObservations accepts a batch of daily readings and triggers
// re-evaluation of each affected (user, metric, date).
// @Summary Ingest metric observations
// @Description Stores already-parsed daily readings and re-evaluates the affected patterns. Idempotent per (user, metric, date).
// @Tags ingest
// @Accept json
// @Produce json
// @Param body body []observationRequest true "Observations"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /observations [post]
func (h *Handler) IngestObservations(w http.ResponseWriter, r *http.Request) {
	var batch []observationRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be a JSON array of observations")
		return
	}
	if len(batch) == 0 || len(batch) > 1000 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BATCH", "Batch must contain 1-1000 observations")
		return
	}

	stored, evaluated := 0, 0
	for _, o := range batch {
		if !config.IsValidMetricType(o.MetricType) {
			respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_METRIC", "Unknown metric type", o.MetricType)
			return
		}
		day, err := time.Parse(time.DateOnly, o.Date)
		if err != nil {
			respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_DATE", "Date must be YYYY-MM-DD", o.Date)
			return
		}

		if err := engine.UpsertObservation(r.Context(), h.pool, o.UserID, o.MetricType, day, o.Value); err != nil {
			h.logger.Error("observation upsert failed", "user_id", o.UserID, "error", err)
			respond.WriteError(w, http.StatusInternalServerError, "STORE_FAILED", "Could not store observation")
			return
		}
		stored++

		if err := engine.EvaluateUserMetric(r.Context(), h.pool, h.cfg, o.UserID, o.MetricType, day, h.logger); err != nil {
			// Evaluation failure does not lose the observation; the
			// catch-up sweep will retry it.
			h.logger.Warn("triggered evaluation failed",
				"user_id", o.UserID, "metric", o.MetricType, "error", err)
			continue
		}
		evaluated++
		h.cache.InvalidatePrefix("episodes:" + o.UserID.String() + ":")
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"stored":    stored,
		"evaluated": evaluated,
	})
}

// IngestExercise accepts a batch of per-day exercise records.
// @Summary Ingest exercise records
// @Tags ingest
// @Accept json
// @Produce json
// @Param body body []exerciseRequest true "Exercise records"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /exercise [post]
func (h *Handler) IngestExercise(w http.ResponseWriter, r *http.Request) {
	var batch []exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be a JSON array of exercise records")
		return
	}
	if len(batch) == 0 || len(batch) > 1000 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BATCH", "Batch must contain 1-1000 records")
		return
	}

	for _, e := range batch {
		day, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_DATE", "Date must be YYYY-MM-DD", e.Date)
			return
		}
		if err := engine.UpsertExerciseRecord(r.Context(), h.pool, e.UserID, day, e.HadQualifyingActivity); err != nil {
			h.logger.Error("exercise upsert failed", "user_id", e.UserID, "error", err)
			respond.WriteError(w, http.StatusInternalServerError, "STORE_FAILED", "Could not store exercise record")
			return
		}
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"stored": len(batch),
	})
}

// Evaluate manually triggers evaluation for one user and date. Operator and
// test surface for backfills.
// @Summary Trigger evaluation
// @Description Re-evaluates all metrics (or one) for a user and date. Safe to re-invoke.
// @Tags ingest
// @Accept json
// @Produce json
// @Param body body object{user_id=string,metric_type=string,date=string} true "Evaluation request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /evaluate [post]
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID     uuid.UUID `json:"user_id"`
		MetricType string    `json:"metric_type"` // empty = all metrics
		Date       string    `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be JSON")
		return
	}
	day, err := time.Parse(time.DateOnly, body.Date)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "Date must be YYYY-MM-DD")
		return
	}

	if body.MetricType != "" {
		if !config.IsValidMetricType(body.MetricType) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_METRIC", "Unknown metric type")
			return
		}
		err = engine.EvaluateUserMetric(r.Context(), h.pool, h.cfg, body.UserID, body.MetricType, day, h.logger)
	} else {
		err = engine.EvaluateUser(r.Context(), h.pool, h.cfg, body.UserID, day, h.logger)
	}
	if err != nil {
		h.logger.Error("manual evaluation failed", "user_id", body.UserID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "EVALUATE_FAILED", "Evaluation failed")
		return
	}
	h.cache.InvalidatePrefix("episodes:" + body.UserID.String() + ":")

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"user_id": body.UserID,
		"date":    body.Date,
		"status":  "evaluated",
	})
}
