package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"math"

	"github.com/couchcryptid/snow-drought-index/internal/cache"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/observability"
)

// CachedTransformer wraps a Transformer with an in-memory LRU in front of
// an optional gob disk cache. Entries are keyed by a digest of the station,
// its series and the processing parameters, so changing any of them misses.
type CachedTransformer struct {
	inner       Transformer
	fingerprint string
	mem         *cache.LRU[string, domain.StationResult]
	disk        *cache.Disk[domain.StationResult]
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewCachedTransformer creates a cache decorator. disk may be nil to keep
// results in memory only.
func NewCachedTransformer(inner Transformer, params domain.ProcessParams, maxEntries int, disk *cache.Disk[domain.StationResult], metrics *observability.Metrics, logger *slog.Logger) *CachedTransformer {
	return &CachedTransformer{
		inner:       inner,
		fingerprint: ParamsFingerprint(params),
		mem:         cache.NewLRU[string, domain.StationResult](maxEntries),
		disk:        disk,
		metrics:     metrics,
		logger:      logger,
	}
}

func (c *CachedTransformer) Transform(ctx context.Context, job StationJob) (domain.StationResult, error) {
	key := c.key(job)

	if res, ok := c.mem.Get(key); ok {
		c.metrics.ResultCache.WithLabelValues("memory", "hit").Inc()
		return res, nil
	}
	c.metrics.ResultCache.WithLabelValues("memory", "miss").Inc()

	if c.disk != nil {
		res, ok, err := c.disk.Get(key)
		if err != nil {
			c.logger.Warn("result cache read failed", "station_id", job.Series.Station.ID, "error", err)
		}
		if ok {
			c.metrics.ResultCache.WithLabelValues("disk", "hit").Inc()
			c.mem.Put(key, res)
			return res, nil
		}
		c.metrics.ResultCache.WithLabelValues("disk", "miss").Inc()
	}

	res, err := c.inner.Transform(ctx, job)
	if err != nil {
		return res, err
	}
	c.mem.Put(key, res)
	if c.disk != nil {
		if err := c.disk.Put(key, res); err != nil {
			c.logger.Warn("result cache write failed", "station_id", job.Series.Station.ID, "error", err)
		}
	}
	return res, nil
}

func (c *CachedTransformer) key(job StationJob) string {
	s := job.Series
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%g|%g|%g\n",
		c.fingerprint, s.Station.ID, s.Station.Name, s.Station.Lat, s.Station.Lon, s.Station.Elevation)
	hashSeries(h, s)
	if job.Precip != nil {
		fmt.Fprint(h, "|precip\n")
		hashSeries(h, *job.Precip)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashSeries(h hash.Hash, s domain.Series) {
	var buf [8]byte
	for i, t := range s.Times {
		binary.LittleEndian.PutUint64(buf[:], uint64(t.Unix()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.Values[i]))
		h.Write(buf[:])
	}
}

// ParamsFingerprint renders the processing parameters into a stable string.
func ParamsFingerprint(p domain.ProcessParams) string {
	table := p.Thresholds
	if table == nil {
		table = domain.DefaultThresholds()
	}
	// fmt prints map keys in sorted order.
	return fmt.Sprintf("season=%+v coverage=%g seasons=%d availability=%g gap=%d thresholds=%v",
		p.Season, p.MinCoverage, p.MinSeasons, p.MinAvailability, p.MaxGapDays, table.Boundaries())
}
