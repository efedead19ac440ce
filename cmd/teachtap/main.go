package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Bonniface/TeachTap/internal/audio"
	"github.com/Bonniface/TeachTap/internal/config"
	"github.com/Bonniface/TeachTap/internal/feed"
	"github.com/Bonniface/TeachTap/internal/live"
	"github.com/Bonniface/TeachTap/internal/metrics"
	"github.com/Bonniface/TeachTap/internal/offline"
	"github.com/Bonniface/TeachTap/internal/server"
	"github.com/Bonniface/TeachTap/internal/store"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "teachtap"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// A .env file is optional; real environments set variables directly
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Int("download_limit", cfg.Offline.DownloadLimit),
		slog.String("live_endpoint", cfg.Live.Endpoint),
		slog.String("live_model", cfg.Live.Model),
		slog.String("feed_endpoint", cfg.Feed.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Open the persistent store
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("Failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Error closing store", slog.String("error", err.Error()))
		}
	}()
	logger.Info("Persistent store opened", slog.String("path", cfg.Storage.Path))

	// Initialize offline managers
	cache := offline.NewCacheManager(st, logger, offline.CacheConfig{
		Limit:        cfg.Offline.DownloadLimit,
		FetchTimeout: time.Duration(cfg.Offline.FetchTimeout) * time.Second,
		LocalDir:     cfg.Offline.LocalDir,
	})
	queue := offline.NewQueueManager(st, logger)
	logger.Info("Offline managers initialized", slog.Int("download_limit", cfg.Offline.DownloadLimit))

	// Initialize content platform client
	feedClient := feed.NewClient(feed.ClientConfig{
		Endpoint:      cfg.Feed.Endpoint,
		APIKey:        secrets.FeedAPIKey,
		Timeout:       time.Duration(cfg.Feed.Timeout) * time.Second,
		MaxRetries:    cfg.Feed.MaxRetries,
		MaxConcurrent: cfg.Feed.MaxConcurrent,
	})

	// Initialize live session controller
	dialer := &live.WebsocketDialer{
		URL:     cfg.Live.Endpoint,
		APIKey:  secrets.LiveAPIKey,
		Timeout: time.Duration(cfg.Live.ConnectTimeout) * time.Second,
		Logger:  logger,
	}
	controller := live.NewController(
		dialer,
		live.SourceOpenerFunc(openCaptureDevice(cfg.Live.CaptureDevice)),
		newSchedulerFactory(cfg.Live.PlaybackDevice, logger),
		live.SessionConfig{
			Model:             cfg.Live.Model,
			Voice:             cfg.Live.Voice,
			SystemInstruction: cfg.Live.SystemInstruction,
		},
		logger,
	)
	logger.Info("Live session controller initialized", slog.String("model", cfg.Live.Model))

	// Initialize HTTP API server
	httpServer := server.NewHTTPServer(cfg.HTTP, logger, cfg, cache, queue, controller, feedClient, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Tear down any active live session (releases the capture device)
	controller.Disconnect()
	controller.Wait()

	logger.Info("Service stopped")
}

// openCaptureDevice returns a source opener reading PCM from the
// configured device path or pipe.
func openCaptureDevice(path string) func(ctx context.Context) (audio.Source, error) {
	return func(ctx context.Context) (audio.Source, error) {
		if path == "" {
			return nil, fmt.Errorf("no capture device configured")
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open capture device %s: %w", path, err)
		}

		return audio.NewReaderSource(f), nil
	}
}

// newSchedulerFactory builds a per-session playback scheduler writing
// scheduled PCM to the configured device path, or discarding it when no
// device is configured.
func newSchedulerFactory(path string, logger *slog.Logger) live.SchedulerFactory {
	return func() *audio.Scheduler {
		clock := audio.NewMonotonicClock()

		var sink audio.Sink
		if path == "" {
			sink = audio.NewWriterSink(discardWriter{}, clock, audio.PlaybackSampleRate)
		} else {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
			if err != nil {
				logger.Warn("Playback device unavailable, discarding audio",
					slog.String("device", path),
					slog.String("error", err.Error()),
				)
				sink = audio.NewWriterSink(discardWriter{}, clock, audio.PlaybackSampleRate)
			} else {
				sink = audio.NewWriterSink(f, clock, audio.PlaybackSampleRate)
			}
		}

		return audio.NewScheduler(clock, sink, audio.PlaybackSampleRate)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
