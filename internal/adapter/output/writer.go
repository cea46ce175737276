// Package output reads and writes tabular station files: result sinks
// and coordinate corrections.
package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// JSONWriter writes one JSON object per station result per line.
// It implements pipeline.BatchLoader.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter creates a JSON lines writer, typically over os.Stdout.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

func (w *JSONWriter) LoadBatch(_ context.Context, results []domain.StationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range results {
		if err := w.enc.Encode(results[i]); err != nil {
			return fmt.Errorf("write json result %s: %w", results[i].Station.ID, err)
		}
	}
	return nil
}

// CSVHeader is the column layout written by CSVWriter.
var CSVHeader = []string{
	"station_id", "name", "lat", "lon", "elevation", "basin", "place_name",
	"availability", "season_year", "integrated_swe", "valid_days",
	"probability", "sswei", "category", "drought", "precipitation", "processed_at",
}

// CSVWriter writes one row per station season.
type CSVWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	header bool
}

// NewCSVWriter creates a CSV writer over w. The header row is written
// with the first batch.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// CreateCSV creates (or truncates) path and returns a CSVWriter over it.
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv output: %w", err)
	}
	c := NewCSVWriter(f)
	c.closer = f
	return c, nil
}

func (c *CSVWriter) LoadBatch(_ context.Context, results []domain.StationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.header {
		if err := c.w.Write(CSVHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		c.header = true
	}
	for _, r := range results {
		for _, row := range Rows(r) {
			if err := c.w.Write(row); err != nil {
				return fmt.Errorf("write csv row %s: %w", r.Station.ID, err)
			}
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes buffered rows and closes the underlying file, if any.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Rows flattens a result into CSV records, one per season.
func Rows(r domain.StationResult) [][]string {
	s := r.Station
	out := make([][]string, 0, len(r.Seasons))
	for _, idx := range r.Seasons {
		out = append(out, []string{
			s.ID,
			s.Name,
			formatFloat(s.Lat, 6),
			formatFloat(s.Lon, 6),
			formatFloat(s.Elevation, 1),
			s.Basin,
			s.PlaceName,
			formatFloat(r.Availability, 2),
			strconv.Itoa(idx.SeasonYear),
			formatFloat(idx.IntegratedSWE, 3),
			strconv.Itoa(idx.ValidDays),
			formatFloat(idx.Probability, 6),
			formatFloat(idx.SSWEI, 4),
			idx.Category,
			strconv.FormatBool(idx.Drought),
			formatOptional(idx.Precipitation, 3),
			r.ProcessedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// formatOptional renders a nil value as an empty field.
func formatOptional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, prec)
}

// formatFloat renders NaN as an empty field.
func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
