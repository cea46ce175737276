package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// Sink names accepted by SINK.
const (
	SinkStdout   = "stdout"
	SinkCSV      = "csv"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Input.
	SWEFile      string
	SWEVariable  string
	BasinFile    string
	BasinID      string
	BasinIDField string
	BufferKm     float64
	BasinMean    bool

	// Optional precipitation totals per season.
	PrecipFile     string
	PrecipVariable string

	// Station selection and corrections.
	StationIDs      []string
	CoordinatesFile string

	// Index computation.
	Season            domain.SeasonWindow
	MinAvailability   float64
	MinSeasonCoverage float64
	MinSeasons        int
	MaxGapDays        int
	ThresholdsFile    string

	// Execution.
	Workers   int
	BatchSize int
	CacheDir  string
	CacheSize int

	// Output.
	Sink           string
	OutputPath     string
	KafkaBrokers   []string
	KafkaSinkTopic string
	DatabaseURL    string

	HTTPAddr        string
	Serve           bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err := time.ParseDuration(mapboxTimeoutStr)
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	season, err := domain.ParseSeasonWindow(
		sharedcfg.EnvOrDefault("SEASON_START", "11-01"),
		sharedcfg.EnvOrDefault("SEASON_END", "04-30"),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid SEASON_START/SEASON_END: %w", err)
	}

	bufferKm, err := parseFloat("BUFFER_KM", "0", 0, 20000)
	if err != nil {
		return nil, err
	}
	minAvailability, err := parseFloat("MIN_AVAILABILITY", "80", 0, 100)
	if err != nil {
		return nil, err
	}
	minCoverage, err := parseFloat("MIN_SEASON_COVERAGE", "0.9", 0, 1)
	if err != nil {
		return nil, err
	}
	if minCoverage == 0 {
		return nil, errors.New("invalid MIN_SEASON_COVERAGE: must be in (0, 1]")
	}
	minSeasons, err := parseInt("MIN_SEASONS", 5, 1)
	if err != nil {
		return nil, err
	}
	maxGap, err := parseInt("MAX_GAP_DAYS", 15, 0)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("WORKERS", runtime.NumCPU(), 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("CACHE_SIZE", 1000, 0)
	if err != nil {
		return nil, err
	}

	serve, err := parseBool("SERVE", true)
	if err != nil {
		return nil, err
	}
	basinMean, err := parseBool("BASIN_MEAN", false)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		SWEFile:      sharedcfg.EnvOrDefault("SWE_FILE", "data/swe.nc"),
		SWEVariable:  sharedcfg.EnvOrDefault("SWE_VARIABLE", "snw"),
		BasinFile:    os.Getenv("BASIN_FILE"),
		BasinID:      os.Getenv("BASIN_ID"),
		BasinIDField: sharedcfg.EnvOrDefault("BASIN_ID_FIELD", "Station_ID"),
		BufferKm:     bufferKm,
		BasinMean:    basinMean,

		PrecipFile:     os.Getenv("PRECIP_FILE"),
		PrecipVariable: sharedcfg.EnvOrDefault("PRECIP_VARIABLE", "pr"),

		StationIDs:      parseList(os.Getenv("STATION_IDS")),
		CoordinatesFile: os.Getenv("COORDINATES_FILE"),

		Season:            season,
		MinAvailability:   minAvailability,
		MinSeasonCoverage: minCoverage,
		MinSeasons:        minSeasons,
		MaxGapDays:        maxGap,
		ThresholdsFile:    os.Getenv("THRESHOLDS_FILE"),

		Workers:   workers,
		BatchSize: batchSize,
		CacheDir:  os.Getenv("CACHE_DIR"),
		CacheSize: cacheSize,

		Sink:           sharedcfg.EnvOrDefault("SINK", SinkStdout),
		OutputPath:     sharedcfg.EnvOrDefault("OUTPUT_PATH", "sswei.csv"),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "sswei-results"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		Serve:           serve,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SWEFile == "" {
		return errors.New("SWE_FILE is required")
	}
	if c.BasinFile != "" && c.BasinID == "" {
		return errors.New("BASIN_ID is required when BASIN_FILE is set")
	}
	if c.BasinMean && c.BasinID == "" {
		return errors.New("BASIN_ID is required when BASIN_MEAN is set")
	}
	switch c.Sink {
	case SinkStdout, SinkCSV:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka sink")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required for the kafka sink")
		}
	case SinkPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres sink")
		}
	default:
		return fmt.Errorf("invalid SINK %q: must be stdout, csv, kafka or postgres", c.Sink)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// ProcessParams assembles the per-station workflow parameters. thresholds
// may be nil to use the default table.
func (c *Config) ProcessParams(thresholds *domain.ThresholdTable) domain.ProcessParams {
	return domain.ProcessParams{
		IndexParams: domain.IndexParams{
			Season:      c.Season,
			MinCoverage: c.MinSeasonCoverage,
			MinSeasons:  c.MinSeasons,
			Thresholds:  thresholds,
		},
		MinAvailability: c.MinAvailability,
		MaxGapDays:      c.MaxGapDays,
	}
}

func parseFloat(key, fallback string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, fallback), 64)
	if err != nil || math.IsNaN(v) || v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s: must be a number in [%g, %g]", key, lo, hi)
	}
	return v, nil
}

func parseInt(key string, fallback, lo int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, lo)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be a boolean", key)
	}
	return v, nil
}

// parseList splits a comma-separated value, dropping empty items.
func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
