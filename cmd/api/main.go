package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/aedes/internal/api"
	"github.com/your-org/aedes/internal/api/ws"
	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/config"
	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/observability"
	"github.com/your-org/aedes/internal/queue"
	"github.com/your-org/aedes/internal/storage"
	"github.com/your-org/aedes/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting aedes API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Detection service client
	det := detector.New(detector.Config{
		BaseURL:             cfg.Detector.BaseURL,
		Timeout:             cfg.Detector.Timeout,
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
		IncludeGPS:          cfg.Detector.IncludeGPS,
		ModelsCacheTTL:      cfg.Detector.ModelsCacheTTL,
	})

	// Batch manager: progress and status changes go straight to the hub,
	// finished analyses go through NATS so persistence is shared with the
	// ingestor path.
	manager := batch.NewManager(batch.Config{
		Detector:  det,
		Ceiling:   cfg.Batch.Ceiling,
		Publisher: producer,
		Images:    minioStore,
		Notify: func(it batch.Item) {
			hub.BroadcastEvent(dto.WSEventForItem(it))
		},
	})
	defer manager.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persist finished analyses published to NATS. Inserts are idempotent,
	// so redeliveries are harmless.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create analysis consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeAnalyses(ctx, "api-analyses", func(ctx context.Context, msg jetstream.Msg) error {
		var analysis models.Analysis
		if err := json.Unmarshal(msg.Data(), &analysis); err != nil {
			return err
		}
		return db.SaveAnalysis(ctx, &analysis)
	})
	if err != nil {
		slog.Warn("start analysis consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Batch:    cfg.Batch,
		Manager:  manager,
		Detector: det,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
