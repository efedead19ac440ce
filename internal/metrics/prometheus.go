package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the TeachTap service
type Metrics struct {
	// Offline cache metrics
	VideosSaved      prometheus.Counter
	VideosRemoved    prometheus.Counter
	VideoSaveErrors  prometheus.Counter
	DownloadedVideos prometheus.Gauge
	FetchDuration    prometheus.Histogram
	BlobSize         prometheus.Histogram

	// Sync queue metrics
	ActionsQueued    prometheus.Counter
	ActionsProcessed prometheus.Counter
	ActionsFailed    prometheus.Counter
	QueueDepth       prometheus.Gauge

	// Live session metrics
	SessionsConnected    prometheus.Counter
	SessionsDisconnected prometheus.Counter
	SessionErrors        prometheus.Counter
	SessionDuration      prometheus.Histogram
	FramesSent           prometheus.Counter
	ChunksScheduled      prometheus.Counter
	Interruptions        prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Offline cache metrics
		VideosSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_videos_saved_total",
			Help: "Total number of videos saved to the offline cache",
		}),
		VideosRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_videos_removed_total",
			Help: "Total number of videos removed from the offline cache",
		}),
		VideoSaveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_video_save_errors_total",
			Help: "Total number of failed video save attempts",
		}),
		DownloadedVideos: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "teachtap_downloaded_videos",
			Help: "Current number of videos in the offline cache",
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "teachtap_media_fetch_duration_seconds",
			Help:    "Duration of media blob fetches",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		BlobSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "teachtap_media_blob_size_bytes",
			Help:    "Size of fetched media blobs in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
		}),

		// Sync queue metrics
		ActionsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_sync_actions_queued_total",
			Help: "Total number of sync actions queued",
		}),
		ActionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_sync_actions_processed_total",
			Help: "Total number of sync actions replayed successfully",
		}),
		ActionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_sync_actions_failed_total",
			Help: "Total number of sync action replay failures",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "teachtap_sync_queue_depth",
			Help: "Current number of pending sync actions",
		}),

		// Live session metrics
		SessionsConnected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_live_sessions_connected_total",
			Help: "Total number of live sessions connected",
		}),
		SessionsDisconnected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_live_sessions_disconnected_total",
			Help: "Total number of live sessions disconnected",
		}),
		SessionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_live_session_errors_total",
			Help: "Total number of live session failures",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "teachtap_live_session_duration_seconds",
			Help:    "Duration of live sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_capture_frames_sent_total",
			Help: "Total number of capture frames transmitted",
		}),
		ChunksScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_playback_chunks_scheduled_total",
			Help: "Total number of playback chunks scheduled",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "teachtap_playback_interruptions_total",
			Help: "Total number of playback interruptions",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "teachtap_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teachtap_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "teachtap_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordVideoSaved records a successful save and the fetched blob
func (m *Metrics) RecordVideoSaved(fetchSeconds float64, blobBytes int) {
	m.VideosSaved.Inc()
	m.FetchDuration.Observe(fetchSeconds)
	m.BlobSize.Observe(float64(blobBytes))
}

// RecordVideoRemoved increments the videos removed counter
func (m *Metrics) RecordVideoRemoved() {
	m.VideosRemoved.Inc()
}

// RecordVideoSaveError increments the save errors counter
func (m *Metrics) RecordVideoSaveError() {
	m.VideoSaveErrors.Inc()
}

// SetDownloadedVideos sets the current cache occupancy
func (m *Metrics) SetDownloadedVideos(count int) {
	m.DownloadedVideos.Set(float64(count))
}

// RecordActionQueued increments the queued actions counter
func (m *Metrics) RecordActionQueued() {
	m.ActionsQueued.Inc()
}

// RecordActionProcessed increments the processed actions counter
func (m *Metrics) RecordActionProcessed() {
	m.ActionsProcessed.Inc()
}

// RecordActionFailed increments the failed actions counter
func (m *Metrics) RecordActionFailed() {
	m.ActionsFailed.Inc()
}

// SetQueueDepth sets the current pending action count
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordSessionConnected increments the sessions connected counter
func (m *Metrics) RecordSessionConnected() {
	m.SessionsConnected.Inc()
}

// RecordSessionDisconnected increments the disconnect counter and records duration
func (m *Metrics) RecordSessionDisconnected(durationSeconds float64) {
	m.SessionsDisconnected.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionError increments the session errors counter
func (m *Metrics) RecordSessionError() {
	m.SessionErrors.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
