package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bonniface/TeachTap/internal/config"
	"github.com/Bonniface/TeachTap/internal/feed"
	"github.com/Bonniface/TeachTap/internal/live"
	"github.com/Bonniface/TeachTap/internal/metrics"
	"github.com/Bonniface/TeachTap/internal/offline"
	"github.com/Bonniface/TeachTap/internal/store"
)

// HTTPServer provides HTTP API endpoints for the offline cache, sync
// queue, live session control and monitoring
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	cache      *offline.CacheManager
	queue      *offline.QueueManager
	controller *live.Controller
	feedClient *feed.Client
	metrics    *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	cache *offline.CacheManager, queue *offline.QueueManager,
	controller *live.Controller, feedClient *feed.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		cache:      cache,
		queue:      queue,
		controller: controller,
		feedClient: feedClient,
		metrics:    m,
		startTime:  time.Now(),
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      h.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// routes configures the HTTP API router
func (h *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/stats", h.withMetrics("/stats", h.handleStats))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Get("/", h.withMetrics("/api/v1/videos", h.handleListVideos))
			r.Post("/", h.withMetrics("/api/v1/videos", h.handleSaveVideo))
			r.Get("/count", h.withMetrics("/api/v1/videos/count", h.handleVideoCount))
			r.Delete("/{id}", h.withMetrics("/api/v1/videos/{id}", h.handleRemoveVideo))
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/actions", h.withMetrics("/api/v1/sync/actions", h.handleQueueAction))
			r.Post("/process", h.withMetrics("/api/v1/sync/process", h.handleProcessQueue))
			r.Get("/pending", h.withMetrics("/api/v1/sync/pending", h.handlePendingActions))
		})

		r.Route("/live", func(r chi.Router) {
			r.Post("/connect", h.withMetrics("/api/v1/live/connect", h.handleLiveConnect))
			r.Post("/disconnect", h.withMetrics("/api/v1/live/disconnect", h.handleLiveDisconnect))
			r.Get("/state", h.withMetrics("/api/v1/live/state", h.handleLiveState))
		})

		r.Get("/search", h.withMetrics("/api/v1/search", h.handleSearch))
	})

	return r
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to HTTP status codes
func (h *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, offline.ErrCapacityExceeded):
		status = http.StatusConflict
	case errors.Is(err, offline.ErrFetchFailed):
		status = http.StatusBadGateway
	case errors.Is(err, store.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, live.ErrMicrophoneUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, live.ErrAlreadyConnected):
		status = http.StatusConflict
	case errors.Is(err, feed.ErrInvalidItem), errors.Is(err, feed.ErrInvalidActionType):
		status = http.StatusBadRequest
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	downloaded, err := h.cache.GetDownloadedCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessionState := h.controller.State()

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "teachtap",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"offline_cache": map[string]any{
				"status":            "running",
				"downloaded_videos": downloaded,
			},
			"sync_queue": map[string]any{
				"status":          "running",
				"pending_actions": pending,
			},
			"live_session": map[string]any{
				"connected": sessionState.Connected,
				"speaking":  sessionState.Speaking,
			},
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	downloaded, err := h.cache.GetDownloadedCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"offline": map[string]any{
			"downloaded_videos": downloaded,
			"download_limit":    h.config.Offline.DownloadLimit,
		},
		"sync": map[string]any{
			"pending_actions": pending,
		},
		"feed": h.feedClient.GetStats(),
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// handleSaveVideo implements POST /api/v1/videos
func (h *HTTPServer) handleSaveVideo(w http.ResponseWriter, r *http.Request) {
	var item feed.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	start := time.Now()
	rec, err := h.cache.SaveVideo(r.Context(), item)
	if err != nil {
		h.metrics.RecordVideoSaveError()
		h.writeError(w, err)
		return
	}

	h.metrics.RecordVideoSaved(time.Since(start).Seconds(), len(rec.Blob))
	h.updateCacheGauge(r.Context())

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": item.ID, "status": "saved"})
}

// handleListVideos implements GET /api/v1/videos
func (h *HTTPServer) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.cache.GetAllDownloadedVideos(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Local handles are transient; the API response carries metadata only.
	defer func() {
		for _, v := range videos {
			v.Release()
		}
	}()

	items := make([]feed.Item, 0, len(videos))
	for _, v := range videos {
		items = append(items, v.Item)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(items),
		"videos": items,
	})
}

// handleVideoCount implements GET /api/v1/videos/count
func (h *HTTPServer) handleVideoCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.cache.GetDownloadedCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"count": count,
		"limit": h.config.Offline.DownloadLimit,
	})
}

// handleRemoveVideo implements DELETE /api/v1/videos/{id}
func (h *HTTPServer) handleRemoveVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video id required"})
		return
	}

	if err := h.cache.RemoveVideo(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.RecordVideoRemoved()
	h.updateCacheGauge(r.Context())

	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "removed"})
}

type queueActionRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleQueueAction implements POST /api/v1/sync/actions
func (h *HTTPServer) handleQueueAction(w http.ResponseWriter, r *http.Request) {
	var req queueActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	action, err := h.queue.QueueAction(r.Context(), req.Type, req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.RecordActionQueued()
	h.updateQueueGauge(r.Context())

	h.writeJSON(w, http.StatusCreated, action)
}

// handleProcessQueue implements POST /api/v1/sync/process. Queued
// actions are replayed against the content platform API.
func (h *HTTPServer) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	processed := 0

	err := h.queue.ProcessQueue(r.Context(), func(action *feed.SyncAction) error {
		if err := h.replayAction(r.Context(), action); err != nil {
			h.metrics.RecordActionFailed()
			return err
		}

		h.metrics.RecordActionProcessed()
		processed++
		return nil
	})

	h.updateQueueGauge(r.Context())

	if err != nil {
		h.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":     err.Error(),
			"processed": processed,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

// replayAction applies one deferred action against the platform API
func (h *HTTPServer) replayAction(ctx context.Context, action *feed.SyncAction) error {
	switch action.Type {
	case feed.ActionQuizComplete:
		var answer feed.QuizAnswer
		if err := json.Unmarshal(action.Payload, &answer); err != nil {
			return fmt.Errorf("decode quiz payload: %w", err)
		}
		_, err := h.feedClient.SubmitQuizAnswer(ctx, answer)
		return err

	case feed.ActionXPGain:
		// XP gains are recomputed server-side from quiz submissions;
		// replay is a local acknowledgment.
		h.logger.Info("Replayed XP gain action", slog.String("action_id", action.ID))
		return nil

	default:
		return fmt.Errorf("%w: %s", feed.ErrInvalidActionType, action.Type)
	}
}

// handlePendingActions implements GET /api/v1/sync/pending
func (h *HTTPServer) handlePendingActions(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// handleLiveConnect implements POST /api/v1/live/connect
func (h *HTTPServer) handleLiveConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Connect(r.Context()); err != nil {
		h.metrics.RecordSessionError()
		h.writeError(w, err)
		return
	}

	h.metrics.RecordSessionConnected()

	h.writeJSON(w, http.StatusOK, h.controller.State())
}

// handleLiveDisconnect implements POST /api/v1/live/disconnect
func (h *HTTPServer) handleLiveDisconnect(w http.ResponseWriter, r *http.Request) {
	h.controller.Disconnect()

	h.writeJSON(w, http.StatusOK, h.controller.State())
}

// handleLiveState implements GET /api/v1/live/state
func (h *HTTPServer) handleLiveState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controller.State())
}

// handleSearch implements GET /api/v1/search
func (h *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	result, err := h.feedClient.SearchVideos(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *HTTPServer) updateCacheGauge(ctx context.Context) {
	if count, err := h.cache.GetDownloadedCount(ctx); err == nil {
		h.metrics.SetDownloadedVideos(count)
	}
}

func (h *HTTPServer) updateQueueGauge(ctx context.Context) {
	if pending, err := h.queue.PendingCount(ctx); err == nil {
		h.metrics.SetQueueDepth(pending)
	}
}
