package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/observability"
)

const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxLoadAttempts = 5
)

// ErrLoadFailed is returned by Run when a chunk could not be written after
// all retry attempts.
var ErrLoadFailed = errors.New("load batch failed")

// StationJob is one station series waiting to be processed.
type StationJob struct {
	Index  int
	Series domain.Series

	// Precip is the station's daily precipitation, nil when none was loaded.
	Precip *domain.Series
}

// BatchExtractor reads up to batchSize station jobs from the source. It
// returns io.EOF once the source is exhausted.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]StationJob, error)
}

// Transformer computes the result for a single station.
type Transformer interface {
	Transform(ctx context.Context, job StationJob) (domain.StationResult, error)
}

// BatchLoader writes multiple station results to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.StationResult) error
}

// Stats summarises a pipeline run.
type Stats struct {
	Extracted int
	Processed int
	Skipped   int
}

// Pipeline orchestrates the extract-transform-load loop over a station dataset.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	workers     int

	extracted atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
}

// New creates a Pipeline with the given stages and observability. workers
// bounds the number of stations transformed concurrently.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		workers:     workers,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one
// chunk of results or has finished the run.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any results yet")
	}
	return nil
}

// Stats returns the counters of the current run.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Extracted: int(p.extracted.Load()),
		Processed: int(p.processed.Load()),
		Skipped:   int(p.skipped.Load()),
	}
}

// Run processes chunks until the extractor is exhausted or the context is
// cancelled. It returns an error only when a chunk cannot be extracted or
// loaded after retrying.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "workers", p.workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		done, err := p.processBatch(ctx)
		if err != nil {
			return err
		}
		if done {
			// A completed run is ready even when every station was skipped.
			p.ready.Store(true)
			st := p.Stats()
			p.logger.Info("pipeline finished",
				"extracted", st.Extracted,
				"processed", st.Processed,
				"skipped", st.Skipped,
			)
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. It reports done when
// the extractor has no more stations.
func (p *Pipeline) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()

	jobs, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	eof := errors.Is(err, io.EOF)
	if err != nil && !eof {
		if ctx.Err() != nil {
			return true, nil
		}
		return false, fmt.Errorf("extract batch: %w", err)
	}
	if len(jobs) == 0 {
		return eof || ctx.Err() != nil, nil
	}

	p.extracted.Add(int64(len(jobs)))
	p.metrics.StationsExtracted.Add(float64(len(jobs)))
	p.metrics.BatchSize.Observe(float64(len(jobs)))

	results, err := p.transformAll(ctx, jobs)
	if err != nil {
		return true, nil
	}

	if len(results) > 0 {
		if err := p.loadWithRetry(ctx, results); err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return false, err
		}
		p.recordLoaded(results)
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return eof, nil
}

// transformAll transforms the chunk on a bounded worker pool. Failed
// stations are logged, counted and dropped. Results keep the job order.
func (p *Pipeline) transformAll(ctx context.Context, jobs []StationJob) ([]domain.StationResult, error) {
	out := make([]domain.StationResult, len(jobs))
	ok := make([]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, job := range jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := p.transformer.Transform(gctx, job)
			if err != nil {
				p.skip(job, err)
				return nil
			}
			out[i] = res
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]domain.StationResult, 0, len(jobs))
	for i := range out {
		if ok[i] {
			results = append(results, out[i])
		}
	}
	return results, nil
}

func (p *Pipeline) skip(job StationJob, err error) {
	reason := "error"
	switch {
	case errors.Is(err, domain.ErrInsufficientData):
		reason = "availability"
	case errors.Is(err, domain.ErrInsufficientSeasons):
		reason = "seasons"
	}
	p.logger.Warn("station skipped",
		"station_id", job.Series.Station.ID,
		"reason", reason,
		"error", err,
	)
	p.skipped.Add(1)
	p.metrics.StationsSkipped.WithLabelValues(reason).Inc()
}

// loadWithRetry writes results, backing off exponentially between failed
// attempts.
func (p *Pipeline) loadWithRetry(ctx context.Context, results []domain.StationResult) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		if err = p.loader.LoadBatch(ctx, results); err == nil {
			return nil
		}
		p.logger.Error("load batch failed",
			"error", err,
			"batch_size", len(results),
			"attempt", attempt,
		)
		if attempt == maxLoadAttempts {
			break
		}
		p.metrics.LoadRetries.Inc()
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrLoadFailed, maxLoadAttempts, err)
}

func (p *Pipeline) recordLoaded(results []domain.StationResult) {
	p.processed.Add(int64(len(results)))
	p.metrics.StationsProcessed.Add(float64(len(results)))
	for _, r := range results {
		for _, s := range r.Seasons {
			p.metrics.SeasonsClassified.WithLabelValues(s.Category).Inc()
		}
	}
}
