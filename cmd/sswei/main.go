package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/snow-drought-index/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/snow-drought-index/internal/adapter/kafka"
	"github.com/couchcryptid/snow-drought-index/internal/adapter/mapbox"
	"github.com/couchcryptid/snow-drought-index/internal/adapter/netcdf"
	"github.com/couchcryptid/snow-drought-index/internal/adapter/output"
	"github.com/couchcryptid/snow-drought-index/internal/adapter/postgres"
	"github.com/couchcryptid/snow-drought-index/internal/cache"
	"github.com/couchcryptid/snow-drought-index/internal/config"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/observability"
	"github.com/couchcryptid/snow-drought-index/internal/pipeline"
	"github.com/couchcryptid/snow-drought-index/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sswei failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var thresholds *domain.ThresholdTable
	if cfg.ThresholdsFile != "" {
		if thresholds, err = domain.LoadThresholds(cfg.ThresholdsFile); err != nil {
			return err
		}
		logger.Info("drought thresholds loaded", "file", cfg.ThresholdsFile, "boundaries", thresholds.Boundaries())
	}

	dataset, err := netcdf.LoadDataset(cfg.SWEFile, cfg.SWEVariable)
	if err != nil {
		return err
	}
	logger.Info("swe dataset loaded", "file", cfg.SWEFile, "variable", cfg.SWEVariable, "stations", dataset.Len(), "days", len(dataset.Times))

	dataset, err = prepareDataset(dataset, cfg, logger)
	if err != nil {
		return err
	}

	extractor := pipeline.NewDatasetExtractor(dataset)
	if cfg.PrecipFile != "" {
		raw, err := netcdf.LoadDataset(cfg.PrecipFile, cfg.PrecipVariable)
		if err != nil {
			return err
		}
		logger.Info("precipitation dataset loaded", "file", cfg.PrecipFile, "variable", cfg.PrecipVariable, "stations", raw.Len(), "days", len(raw.Times))
		precip, err := preparePrecipitation(raw, dataset, cfg, logger)
		if err != nil {
			return err
		}
		extractor.WithPrecipitation(precip)
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	params := cfg.ProcessParams(thresholds)
	var transformer pipeline.Transformer = pipeline.NewTransformer(params, geocoder, logger)
	if cfg.CacheDir != "" || cfg.CacheSize > 0 {
		var disk *cache.Disk[domain.StationResult]
		if cfg.CacheDir != "" {
			if disk, err = cache.NewDisk[domain.StationResult](cfg.CacheDir); err != nil {
				return err
			}
		}
		transformer = pipeline.NewCachedTransformer(transformer, params, cfg.CacheSize, disk, metrics, logger)
		logger.Info("result cache enabled", "dir", cfg.CacheDir, "size", cfg.CacheSize)
	}

	sink, results, closers, err := openSink(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	p := pipeline.New(extractor, transformer, sink, logger, metrics, cfg.BatchSize, cfg.Workers)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, results, thresholds, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx)
	stats := p.Stats()
	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
	} else {
		logger.Info("pipeline finished", "extracted", stats.Extracted, "processed", stats.Processed, "skipped", stats.Skipped)
	}

	if cfg.Serve && runErr == nil {
		logger.Info("serving results until shutdown", "addr", cfg.HTTPAddr)
		<-ctx.Done()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// openSink builds the configured sink. Results are also kept in memory for
// the API, except with the postgres sink which serves reads itself.
func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.BatchLoader, httpadapter.ResultStore, []io.Closer, error) {
	mem := store.NewMemory()
	switch cfg.Sink {
	case config.SinkCSV:
		w, err := output.CreateCSV(cfg.OutputPath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("writing csv results", "path", cfg.OutputPath)
		return pipeline.MultiLoader{w, mem}, mem, []io.Closer{w}, nil
	case config.SinkKafka:
		w := kafkaadapter.NewWriter(cfg, logger)
		logger.Info("writing kafka results", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
		return pipeline.MultiLoader{w, mem}, mem, []io.Closer{w}, nil
	case config.SinkPostgres:
		repo, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, []io.Closer{repo}, err
		}
		return repo, repo, []io.Closer{repo}, nil
	default:
		return pipeline.MultiLoader{output.NewJSONWriter(os.Stdout), mem}, mem, nil, nil
	}
}
