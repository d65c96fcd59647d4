package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BerylCAtieno/youtube-medallion/internal/handlers"
	"github.com/BerylCAtieno/youtube-medallion/internal/middleware"
	"github.com/BerylCAtieno/youtube-medallion/internal/services"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
)

func NewRouter(pipeline services.PipelineService, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	h := handlers.NewPipelineHandler(pipeline, logger)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Ingest triggers
	api.HandleFunc("/ingest/videos", h.IngestVideos).Methods(http.MethodPost)
	api.HandleFunc("/ingest/comments", h.IngestComments).Methods(http.MethodPost)

	// Stage triggers
	api.HandleFunc("/stages/{stage}", h.RunStage).Methods(http.MethodPost)
	api.HandleFunc("/stages/{stage}/{entity}", h.RunStage).Methods(http.MethodPost)
	api.HandleFunc("/pipeline/run", h.RunAll).Methods(http.MethodPost)

	// Reads
	api.HandleFunc("/kpis/{date}", h.GetKPIs).Methods(http.MethodGet)
	api.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/partitions/{layer}/{entity}", h.ListPartitions).Methods(http.MethodGet)

	return r
}
