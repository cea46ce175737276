// Package postgres persists station results to PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

//go:embed schema.sql
var schema string

// Repository stores stations and their season indices. It implements
// pipeline.BatchLoader and the API's result store.
type Repository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Repository, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("postgres connection established")
	return New(db, logger), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const upsertStation = `
INSERT INTO stations (station_id, name, lat, lon, elevation, basin, place_name, geo_source, availability, gaps_filled, processed_at)
VALUES (:station_id, :name, :lat, :lon, :elevation, :basin, :place_name, :geo_source, :availability, :gaps_filled, :processed_at)
ON CONFLICT (station_id) DO UPDATE SET
    name = EXCLUDED.name,
    lat = EXCLUDED.lat,
    lon = EXCLUDED.lon,
    elevation = EXCLUDED.elevation,
    basin = EXCLUDED.basin,
    place_name = EXCLUDED.place_name,
    geo_source = EXCLUDED.geo_source,
    availability = EXCLUDED.availability,
    gaps_filled = EXCLUDED.gaps_filled,
    processed_at = EXCLUDED.processed_at`

const upsertSeason = `
INSERT INTO sswei_seasons (station_id, season_year, integrated_swe, valid_days, probability, sswei, category, drought, precipitation)
VALUES (:station_id, :season_year, :integrated_swe, :valid_days, :probability, :sswei, :category, :drought, :precipitation)
ON CONFLICT (station_id, season_year) DO UPDATE SET
    integrated_swe = EXCLUDED.integrated_swe,
    valid_days = EXCLUDED.valid_days,
    probability = EXCLUDED.probability,
    sswei = EXCLUDED.sswei,
    category = EXCLUDED.category,
    drought = EXCLUDED.drought,
    precipitation = EXCLUDED.precipitation`

// LoadBatch upserts every station and season of the batch in one
// transaction. Seasons no longer produced for a station are removed.
func (r *Repository) LoadBatch(ctx context.Context, results []domain.StationResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, res := range results {
		if _, err := tx.NamedExecContext(ctx, upsertStation, toStationRow(res)); err != nil {
			return fmt.Errorf("upsert station %s: %w", res.Station.ID, err)
		}
		years := make([]int64, len(res.Seasons))
		for i, s := range res.Seasons {
			years[i] = int64(s.SeasonYear)
			if _, err := tx.NamedExecContext(ctx, upsertSeason, toSeasonRow(res.Station.ID, s)); err != nil {
				return fmt.Errorf("upsert season %s/%d: %w", res.Station.ID, s.SeasonYear, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sswei_seasons WHERE station_id = $1 AND NOT (season_year = ANY($2))`,
			res.Station.ID, pq.Array(years)); err != nil {
			return fmt.Errorf("prune seasons %s: %w", res.Station.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("stored station results", "count", len(results))
	return nil
}

// Results returns every stored station result ordered by station id.
func (r *Repository) Results(ctx context.Context) ([]domain.StationResult, error) {
	var stations []stationRow
	if err := r.db.SelectContext(ctx, &stations, `SELECT * FROM stations ORDER BY station_id`); err != nil {
		return nil, fmt.Errorf("select stations: %w", err)
	}
	var seasons []seasonRow
	if err := r.db.SelectContext(ctx, &seasons, `SELECT * FROM sswei_seasons ORDER BY station_id, season_year`); err != nil {
		return nil, fmt.Errorf("select seasons: %w", err)
	}

	byStation := make(map[string][]domain.SeasonIndex, len(stations))
	for _, s := range seasons {
		byStation[s.StationID] = append(byStation[s.StationID], s.toDomain())
	}
	out := make([]domain.StationResult, len(stations))
	for i, st := range stations {
		out[i] = st.toDomain(byStation[st.StationID])
	}
	return out, nil
}

// Result returns one station result.
func (r *Repository) Result(ctx context.Context, id string) (domain.StationResult, error) {
	var st stationRow
	err := r.db.GetContext(ctx, &st, `SELECT * FROM stations WHERE station_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StationResult{}, fmt.Errorf("%w: %s", domain.ErrStationNotFound, id)
	}
	if err != nil {
		return domain.StationResult{}, fmt.Errorf("select station: %w", err)
	}
	var seasons []seasonRow
	if err := r.db.SelectContext(ctx, &seasons,
		`SELECT * FROM sswei_seasons WHERE station_id = $1 ORDER BY season_year`, id); err != nil {
		return domain.StationResult{}, fmt.Errorf("select seasons: %w", err)
	}
	idx := make([]domain.SeasonIndex, len(seasons))
	for i, s := range seasons {
		idx[i] = s.toDomain()
	}
	return st.toDomain(idx), nil
}

type stationRow struct {
	StationID    string          `db:"station_id"`
	Name         string          `db:"name"`
	Lat          float64         `db:"lat"`
	Lon          float64         `db:"lon"`
	Elevation    sql.NullFloat64 `db:"elevation"`
	Basin        string          `db:"basin"`
	PlaceName    string          `db:"place_name"`
	GeoSource    string          `db:"geo_source"`
	Availability float64         `db:"availability"`
	GapsFilled   int             `db:"gaps_filled"`
	ProcessedAt  time.Time       `db:"processed_at"`
}

func toStationRow(r domain.StationResult) stationRow {
	s := r.Station
	return stationRow{
		StationID:    s.ID,
		Name:         s.Name,
		Lat:          s.Lat,
		Lon:          s.Lon,
		Elevation:    sql.NullFloat64{Float64: s.Elevation, Valid: !math.IsNaN(s.Elevation)},
		Basin:        s.Basin,
		PlaceName:    s.PlaceName,
		GeoSource:    s.GeoSource,
		Availability: r.Availability,
		GapsFilled:   r.GapsFilled,
		ProcessedAt:  r.ProcessedAt,
	}
}

func (s stationRow) toDomain(seasons []domain.SeasonIndex) domain.StationResult {
	elev := math.NaN()
	if s.Elevation.Valid {
		elev = s.Elevation.Float64
	}
	return domain.StationResult{
		Station: domain.Station{
			ID:        s.StationID,
			Name:      s.Name,
			Lat:       s.Lat,
			Lon:       s.Lon,
			Elevation: elev,
			Basin:     s.Basin,
			PlaceName: s.PlaceName,
			GeoSource: s.GeoSource,
		},
		Availability: s.Availability,
		GapsFilled:   s.GapsFilled,
		Seasons:      seasons,
		ProcessedAt:  s.ProcessedAt.UTC(),
	}
}

type seasonRow struct {
	StationID     string  `db:"station_id"`
	SeasonYear    int     `db:"season_year"`
	IntegratedSWE float64 `db:"integrated_swe"`
	ValidDays     int     `db:"valid_days"`
	Probability   float64 `db:"probability"`
	SSWEI         float64 `db:"sswei"`
	Category      string  `db:"category"`
	Drought       bool    `db:"drought"`

	Precipitation sql.NullFloat64 `db:"precipitation"`
}

func toSeasonRow(stationID string, s domain.SeasonIndex) seasonRow {
	row := seasonRow{
		StationID:     stationID,
		SeasonYear:    s.SeasonYear,
		IntegratedSWE: s.IntegratedSWE,
		ValidDays:     s.ValidDays,
		Probability:   s.Probability,
		SSWEI:         s.SSWEI,
		Category:      s.Category,
		Drought:       s.Drought,
	}
	if s.Precipitation != nil {
		row.Precipitation = sql.NullFloat64{Float64: *s.Precipitation, Valid: true}
	}
	return row
}

func (s seasonRow) toDomain() domain.SeasonIndex {
	out := domain.SeasonIndex{
		SeasonYear:    s.SeasonYear,
		IntegratedSWE: s.IntegratedSWE,
		ValidDays:     s.ValidDays,
		Probability:   s.Probability,
		SSWEI:         s.SSWEI,
		Category:      s.Category,
		Drought:       s.Drought,
	}
	if s.Precipitation.Valid {
		v := s.Precipitation.Float64
		out.Precipitation = &v
	}
	return out
}
