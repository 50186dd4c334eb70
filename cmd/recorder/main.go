package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skypro1111/mic-capture-service/internal/capture"
	"github.com/skypro1111/mic-capture-service/internal/config"
	"github.com/skypro1111/mic-capture-service/internal/metrics"
	"github.com/skypro1111/mic-capture-service/internal/server"
	"github.com/skypro1111/mic-capture-service/internal/session"
)

const (
	serviceName    = "mic-capture-service"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults if empty)")
	device := flag.String("device", "", "Input device ID (default device if empty)")
	mode := flag.String("mode", "", "Recording mode: pcm or compressed (overrides config)")
	duration := flag.Duration("duration", 0, "Stop automatically after this duration (0 = record until signal)")
	outputDir := flag.String("output", "", "Output directory (overrides config)")
	flag.Parse()

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	if *device != "" {
		cfg.Capture.Device = *device
	}
	if *mode != "" {
		cfg.Recording.Mode = *mode
	}
	if *outputDir != "" {
		cfg.Recording.OutputDir = *outputDir
	}

	recordingMode, err := session.ParseMode(cfg.Recording.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid recording mode: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("mode", recordingMode.String()),
		slog.String("device_id", cfg.Capture.Device),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("channels", cfg.Capture.Channels),
		slog.Int("block_size", cfg.Capture.BlockSize),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Initialize the recorder
	acquirer := capture.NewAcquirer(logger)
	recorder := session.NewRecorder(logger, appMetrics, acquirer)

	// Initialize HTTP API server (if enabled)
	if cfg.HTTP.Enabled {
		httpServer := server.NewHTTPServer(cfg.HTTP, logger, cfg, recorder, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Stop(ctx); err != nil {
				logger.Warn("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	// Start recording
	opts := session.Options{
		DeviceID:       cfg.Capture.Device,
		SampleRate:     cfg.Capture.SampleRate,
		Channels:       cfg.Capture.Channels,
		BlockSize:      cfg.Capture.BlockSize,
		Mode:           recordingMode,
		Encoder:        cfg.Encoder,
		FilenamePrefix: cfg.Recording.FilenamePrefix,
		TickInterval:   cfg.Recording.GetTickInterval(),
	}

	if err := recorder.Start(context.Background(), opts); err != nil {
		logger.Error("Failed to start recording", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// SIGINT/SIGTERM stop the recording; SIGUSR1 toggles pause
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	logger.Info("Recording... (SIGINT stops, SIGUSR1 toggles pause)")

waitLoop:
	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGUSR1 {
				togglePause(recorder, logger)
				continue
			}
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			break waitLoop
		case <-deadline:
			logger.Info("Recording duration reached", slog.Duration("duration", *duration))
			break waitLoop
		}
	}

	artifact, err := recorder.Stop()
	if err != nil {
		if errors.Is(err, session.ErrEmptyRecording) {
			logger.Error("No audio captured, nothing to write")
		} else {
			logger.Error("Failed to finalize recording", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}

	if err := writeArtifact(cfg.Recording.OutputDir, artifact); err != nil {
		logger.Error("Failed to write output file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Recording written",
		slog.String("file", filepath.Join(cfg.Recording.OutputDir, artifact.Filename)),
		slog.String("mime", artifact.MIME),
		slog.Int("bytes", artifact.Size()),
	)
}

// togglePause pauses a recording session or resumes a paused one.
func togglePause(recorder *session.Recorder, logger *slog.Logger) {
	var err error
	switch recorder.Status() {
	case session.StatusRecording:
		err = recorder.Pause()
	case session.StatusPaused:
		err = recorder.Resume()
	default:
		return
	}

	if err != nil {
		logger.Warn("Pause toggle rejected", slog.String("error", err.Error()))
	}
}

// writeArtifact stores the finalized recording under the output directory.
func writeArtifact(dir string, artifact *session.Artifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// initLogger creates the logger from the logging configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
