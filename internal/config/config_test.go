package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

const (
	defaultBroker   = "localhost:9092"
	testMapboxToken = "pk.test-token"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/swe.nc", cfg.SWEFile)
	assert.Equal(t, "snw", cfg.SWEVariable)
	assert.Empty(t, cfg.BasinFile)
	assert.Equal(t, "Station_ID", cfg.BasinIDField)
	assert.Zero(t, cfg.BufferKm)
	assert.False(t, cfg.BasinMean)
	assert.Empty(t, cfg.PrecipFile)
	assert.Equal(t, "pr", cfg.PrecipVariable)
	assert.Empty(t, cfg.StationIDs)
	assert.Empty(t, cfg.CoordinatesFile)
	assert.Equal(t, domain.DefaultSeason, cfg.Season)
	assert.InDelta(t, 80.0, cfg.MinAvailability, 0)
	assert.InDelta(t, 0.9, cfg.MinSeasonCoverage, 0)
	assert.Equal(t, 5, cfg.MinSeasons)
	assert.Equal(t, 15, cfg.MaxGapDays)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Empty(t, cfg.CacheDir)
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.Equal(t, SinkStdout, cfg.Sink)
	assert.Equal(t, "sswei.csv", cfg.OutputPath)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "sswei-results", cfg.KafkaSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.Serve)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SWE_FILE", "/data/CanSWE.nc")
	t.Setenv("SWE_VARIABLE", "swe")
	t.Setenv("BASIN_FILE", "/data/basins.shp")
	t.Setenv("BASIN_ID", "05BB001")
	t.Setenv("BASIN_ID_FIELD", "id")
	t.Setenv("BUFFER_KM", "2.5")
	t.Setenv("BASIN_MEAN", "true")
	t.Setenv("PRECIP_FILE", "/data/precip.nc")
	t.Setenv("PRECIP_VARIABLE", "precip")
	t.Setenv("STATION_IDS", "05BB803, 05BJ805,,")
	t.Setenv("COORDINATES_FILE", "coords.csv")
	t.Setenv("SEASON_START", "12-01")
	t.Setenv("SEASON_END", "05-31")
	t.Setenv("MIN_AVAILABILITY", "70")
	t.Setenv("MIN_SEASON_COVERAGE", "0.75")
	t.Setenv("MIN_SEASONS", "10")
	t.Setenv("MAX_GAP_DAYS", "0")
	t.Setenv("WORKERS", "3")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("CACHE_DIR", "/tmp/sswei-cache")
	t.Setenv("CACHE_SIZE", "0")
	t.Setenv("THRESHOLDS_FILE", "thresholds.yaml")
	t.Setenv("SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SERVE", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/CanSWE.nc", cfg.SWEFile)
	assert.Equal(t, "swe", cfg.SWEVariable)
	assert.Equal(t, "/data/basins.shp", cfg.BasinFile)
	assert.Equal(t, "05BB001", cfg.BasinID)
	assert.Equal(t, "id", cfg.BasinIDField)
	assert.InDelta(t, 2.5, cfg.BufferKm, 0)
	assert.True(t, cfg.BasinMean)
	assert.Equal(t, "/data/precip.nc", cfg.PrecipFile)
	assert.Equal(t, "precip", cfg.PrecipVariable)
	assert.Equal(t, []string{"05BB803", "05BJ805"}, cfg.StationIDs)
	assert.Equal(t, "coords.csv", cfg.CoordinatesFile)
	assert.Equal(t, domain.SeasonWindow{StartMonth: time.December, StartDay: 1, EndMonth: time.May, EndDay: 31}, cfg.Season)
	assert.InDelta(t, 70.0, cfg.MinAvailability, 0)
	assert.InDelta(t, 0.75, cfg.MinSeasonCoverage, 0)
	assert.Equal(t, 10, cfg.MinSeasons)
	assert.Equal(t, 0, cfg.MaxGapDays)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "/tmp/sswei-cache", cfg.CacheDir)
	assert.Equal(t, 0, cfg.CacheSize)
	assert.Equal(t, "thresholds.yaml", cfg.ThresholdsFile)
	assert.Equal(t, SinkKafka, cfg.Sink)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.False(t, cfg.Serve)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 500, cfg.MapboxCacheSize)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_SIZE", "0"},
		{"BATCH_SIZE", "9999"},
		{"MAPBOX_TIMEOUT", "bad"},
		{"BUFFER_KM", "-1"},
		{"BUFFER_KM", "NaN"},
		{"MIN_AVAILABILITY", "101"},
		{"MIN_SEASON_COVERAGE", "0"},
		{"MIN_SEASON_COVERAGE", "1.5"},
		{"MIN_SEASONS", "0"},
		{"MAX_GAP_DAYS", "-3"},
		{"WORKERS", "many"},
		{"SERVE", "perhaps"},
		{"BASIN_MEAN", "sometimes"},
		{"SINK", "s3"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_InvalidSeason(t *testing.T) {
	t.Setenv("SEASON_START", "13-01")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEASON_START")
}

func TestLoad_BasinFileRequiresID(t *testing.T) {
	t.Setenv("BASIN_FILE", "basins.geojson")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASIN_ID")
}

func TestLoad_BasinMeanRequiresID(t *testing.T) {
	t.Setenv("BASIN_MEAN", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASIN_ID")
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("SINK", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/sswei")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SinkPostgres, cfg.Sink)
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}

func TestConfig_ProcessParams(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.ProcessParams(nil)
	assert.Equal(t, domain.DefaultSeason, p.Season)
	assert.InDelta(t, 0.9, p.MinCoverage, 0)
	assert.Equal(t, 5, p.MinSeasons)
	assert.InDelta(t, 80.0, p.MinAvailability, 0)
	assert.Equal(t, 15, p.MaxGapDays)
	assert.Nil(t, p.Thresholds)
}
