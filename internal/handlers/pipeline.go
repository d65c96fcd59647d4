package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
	"github.com/BerylCAtieno/youtube-medallion/internal/services"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
)

const (
	MaxBodySize = 1 << 20 // 1MB

	dateParam = "ingest_date"
)

type PipelineHandler struct {
	service services.PipelineService
	logger  *utils.Logger
}

func NewPipelineHandler(service services.PipelineService, logger *utils.Logger) *PipelineHandler {
	return &PipelineHandler{
		service: service,
		logger:  logger,
	}
}

// IngestVideos pulls the configured channel's latest uploads into bronze.
func (h *PipelineHandler) IngestVideos(w http.ResponseWriter, r *http.Request) {
	date, err := h.ingestDate(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.IngestVideos(r.Context(), date)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// IngestComments expects {"video_ids": [...], "max_comments_per_video": n}.
func (h *PipelineHandler) IngestComments(w http.ResponseWriter, r *http.Request) {
	date, err := h.ingestDate(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req models.IngestCommentsRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		h.respondError(w, utils.NewBadRequestError("Request body too large"))
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.respondError(w, utils.NewBadRequestError("Invalid JSON body"))
			return
		}
	}

	resp, err := h.service.IngestComments(r.Context(), date, req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// RunStage runs /stages/{stage}/{entity}; aggregate takes no entity.
func (h *PipelineHandler) RunStage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stage := services.Stage(vars["stage"])
	entity := partition.Entity(vars["entity"])

	date, err := h.ingestDate(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.RunStage(r.Context(), stage, entity, date)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *PipelineHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	date, err := h.ingestDate(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	results, err := h.service.RunAll(r.Context(), date)
	if err != nil {
		h.logger.Error("Pipeline run stopped", "completed_stages", len(results), "error", err)
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"ingest_date": date.String(),
		"stages":      results,
	})
}

func (h *PipelineHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	date, err := partition.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		h.respondError(w, utils.NewBadRequestError("Date must be formatted as YYYY-MM-DD"))
		return
	}

	kpis, err := h.service.GetKPIs(r.Context(), date)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, kpis)
}

func (h *PipelineHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.RunFilter{
		IngestDate: q.Get(dateParam),
		Stage:      q.Get("stage"),
		Entity:     q.Get("entity"),
		Status:     models.RunStatus(q.Get("status")),
	}
	if filter.IngestDate != "" {
		if _, err := partition.ParseDate(filter.IngestDate); err != nil {
			h.respondError(w, utils.NewBadRequestError("ingest_date must be formatted as YYYY-MM-DD"))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.respondError(w, utils.NewBadRequestError("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	runs, err := h.service.ListRuns(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, runs)
}

func (h *PipelineHandler) ListPartitions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	layer := partition.Layer(vars["layer"])
	entity := partition.Entity(vars["entity"])

	switch layer {
	case partition.Bronze, partition.Silver, partition.Gold:
	default:
		h.respondError(w, utils.NewBadRequestError("layer must be bronze, silver or gold"))
		return
	}

	dates, err := h.service.Partitions(r.Context(), layer, entity)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dates)
}

// ingestDate reads ?ingest_date=, defaulting to today's partition.
func (h *PipelineHandler) ingestDate(r *http.Request) (partition.Date, error) {
	raw := r.URL.Query().Get(dateParam)
	if raw == "" {
		return h.service.Today(), nil
	}
	date, err := partition.ParseDate(raw)
	if err != nil {
		return partition.Date{}, utils.NewBadRequestError("ingest_date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

func (h *PipelineHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *PipelineHandler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]string{"error": "Internal server error"}

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		body["error"] = appErr.Message
		if appErr.Err != nil {
			body["detail"] = appErr.Err.Error()
		}
	}

	h.logger.Error("Request error", "status", status, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
