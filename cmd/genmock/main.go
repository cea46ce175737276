// Command genmock writes deterministic synthetic fixtures: a station SWE
// NetCDF file, a matching precipitation file, basin polygons, DEM tiles and the expected per-station
// results computed with the real domain package.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -stations 20 -start 1990 -end 2019
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/snow-drought-index/internal/adapter/netcdf"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/mock"
)

// processedAt is the fixed ProcessedAt of every expected result.
var processedAt = time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := mock.DefaultOptions()
	outDir := flag.String("out-dir", "data/mock", "directory for the generated fixtures")
	stations := flag.Int("stations", defaults.Stations, "number of stations")
	start := flag.Int("start", defaults.StartYear, "first calendar year")
	end := flag.Int("end", defaults.EndYear, "last calendar year")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	flag.Parse()

	if *stations < 1 || *end < *start {
		flag.Usage()
		return fmt.Errorf("need -stations >= 1 and -end >= -start")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	opts := defaults
	opts.Stations, opts.StartYear, opts.EndYear, opts.Seed = *stations, *start, *end, *seed
	d := mock.Dataset(opts)

	swePath := filepath.Join(*outDir, "swe.nc")
	if err := netcdf.WriteDataset(swePath, d); err != nil {
		return fmt.Errorf("writing swe fixture: %w", err)
	}
	log.Printf("wrote SWE fixture: %s (%d stations, %d days)", swePath, d.Len(), len(d.Times))

	precipPath := filepath.Join(*outDir, "precip.nc")
	if err := netcdf.WriteDataset(precipPath, mock.Precipitation(d, opts.Seed)); err != nil {
		return fmt.Errorf("writing precipitation fixture: %w", err)
	}
	log.Printf("wrote precipitation fixture: %s", precipPath)

	basinPath := filepath.Join(*outDir, "basins.geojson")
	if err := writeJSON(basinPath, mock.Basins()); err != nil {
		return fmt.Errorf("writing basin fixture: %w", err)
	}
	log.Printf("wrote basin fixture: %s", basinPath)

	for i, tile := range mock.DEMTiles() {
		path := filepath.Join(*outDir, fmt.Sprintf("dem_%d.nc", i+1))
		if err := netcdf.WriteGrid(path, "elevation", tile); err != nil {
			return fmt.Errorf("writing DEM tile: %w", err)
		}
		log.Printf("wrote DEM tile: %s (%dx%d)", path, tile.NX, tile.NY)
	}

	results, skipped := expectedResults(d)
	expPath := filepath.Join(*outDir, "expected_results.json")
	if err := writeJSON(expPath, results); err != nil {
		return fmt.Errorf("writing expected results: %w", err)
	}
	log.Printf("wrote expected results: %s", expPath)

	printStats(results, skipped)
	return nil
}

// expectedResults runs the per-station workflow with default parameters
// and a fixed clock. It returns the results and the skip reason per
// skipped station id.
func expectedResults(d *domain.Dataset) ([]domain.StationResult, map[string]string) {
	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	params := domain.ProcessParams{
		IndexParams: domain.IndexParams{
			Season:      domain.DefaultSeason,
			MinCoverage: 0.9,
			MinSeasons:  5,
		},
		MinAvailability: 80,
		MaxGapDays:      15,
	}

	var results []domain.StationResult
	skipped := map[string]string{}
	for i := range d.Stations {
		r, err := domain.ProcessSeries(d.StationSeries(i), params)
		switch {
		case errors.Is(err, domain.ErrInsufficientData):
			skipped[d.Stations[i].ID] = "availability"
		case errors.Is(err, domain.ErrInsufficientSeasons):
			skipped[d.Stations[i].ID] = "seasons"
		case err != nil:
			skipped[d.Stations[i].ID] = err.Error()
		default:
			results = append(results, r)
		}
	}
	return results, skipped
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func printStats(results []domain.StationResult, skipped map[string]string) {
	seasons := 0
	categories := map[string]int{}
	for _, r := range results {
		seasons += len(r.Seasons)
		for _, s := range r.Seasons {
			categories[s.Category]++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Processed stations: %d\n", len(results))
	fmt.Printf("Seasons: %d\n", seasons)

	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, c)
	}
	sort.Strings(names)
	fmt.Print("By category:")
	for _, c := range names {
		fmt.Printf(" %q=%d", c, categories[c])
	}
	fmt.Println()

	ids := make([]string, 0, len(skipped))
	for id := range skipped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Printf("Skipped (%d):", len(ids))
	for _, id := range ids {
		fmt.Printf(" %s=%s", id, skipped[id])
	}
	fmt.Println()
}
