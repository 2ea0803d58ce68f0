// The ingestor backfills the analysis store from a directory of field
// photos: every image runs through the same batch pipeline the dashboard
// uses, and the resulting analyses are persisted and published so live
// dashboards pick them up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/config"
	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/observability"
	"github.com/your-org/aedes/internal/queue"
	"github.com/your-org/aedes/internal/storage"
)

// analysisSink persists finished analyses directly and publishes them to
// NATS for any running API instance.
type analysisSink struct {
	db       *storage.PostgresStore
	producer *queue.Producer
}

func (s *analysisSink) PublishAnalysis(ctx context.Context, analysis models.Analysis) error {
	if err := s.db.SaveAnalysis(ctx, &analysis); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	if err := s.producer.PublishAnalysis(ctx, analysis); err != nil {
		slog.Warn("publish analysis to nats", "analysis_id", analysis.ID, "error", err)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	dir := flag.String("dir", "", "directory of images to analyze")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: ingestor -dir <image directory> [-config <path>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting aedes ingestor", "dir", *dir)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	det := detector.New(detector.Config{
		BaseURL:             cfg.Detector.BaseURL,
		Timeout:             cfg.Detector.Timeout,
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
		IncludeGPS:          cfg.Detector.IncludeGPS,
	})

	manager := batch.NewManager(batch.Config{
		Detector:  det,
		Ceiling:   cfg.Batch.Ceiling,
		Publisher: &analysisSink{db: db, producer: producer},
		Images:    minioStore,
	})
	defer manager.Close()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("ingestor metrics listening", "addr", ":8081")
		if err := http.ListenAndServe(":8081", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	paths, err := collectImages(*dir)
	if err != nil {
		slog.Error("scan image directory", "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		slog.Info("no images found, nothing to do")
		return
	}
	slog.Info("found images", "count", len(paths))

	ctx := context.Background()

	// Feed images through the pipeline one batch at a time so memory stays
	// bounded for large directories.
	chunkSize := cfg.Batch.MaxBatchSize
	for start := 0; start < len(paths); start += chunkSize {
		end := min(start+chunkSize, len(paths))

		files := make([]detector.File, 0, end-start)
		for _, p := range paths[start:end] {
			data, err := os.ReadFile(p)
			if err != nil {
				slog.Warn("read image", "path", p, "error", err)
				continue
			}
			files = append(files, detector.File{
				Name:        filepath.Base(p),
				ContentType: mime.TypeByExtension(filepath.Ext(p)),
				Data:        data,
			})
		}

		manager.Enqueue(files, detector.Options{})
		if err := manager.Wait(ctx); err != nil {
			slog.Error("wait for batch", "error", err)
			os.Exit(1)
		}

		summary := manager.Summary()
		slog.Info("batch drained",
			"enqueued", end-start,
			"completed", summary.Completed,
			"failed", summary.Failed,
		)
	}

	summary := manager.Summary()
	slog.Info("ingest finished",
		"images", len(paths),
		"completed", summary.Completed,
		"failed", summary.Failed,
	)
}

// collectImages returns image file paths under dir, sorted by filepath.WalkDir
// order so runs are deterministic.
func collectImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg", ".png", ".webp":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}
