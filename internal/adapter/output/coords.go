package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// ErrInvalidCoordinates is returned for malformed coordinate rows.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ReadCoordinatesFile reads station coordinate corrections from a CSV file.
func ReadCoordinatesFile(path string) (map[string]domain.LatLon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coordinates: %w", err)
	}
	defer f.Close()
	return ReadCoordinates(f)
}

// ReadCoordinates parses "station_id,lat,lon" rows. Column order follows
// the header row; extra columns are ignored.
func ReadCoordinates(r io.Reader) (map[string]domain.LatLon, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidCoordinates, err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, ok1 := col["station_id"]
	latCol, ok2 := col["lat"]
	lonCol, ok3 := col["lon"]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: header must contain station_id, lat and lon", ErrInvalidCoordinates)
	}
	width := max(idCol, latCol, lonCol) + 1

	out := make(map[string]domain.LatLon)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCoordinates, line, err)
		}
		if len(rec) < width {
			return nil, fmt.Errorf("%w: line %d: expected at least %d fields", ErrInvalidCoordinates, line, width)
		}
		lat, err1 := strconv.ParseFloat(rec[latCol], 64)
		lon, err2 := strconv.ParseFloat(rec[lonCol], 64)
		if err1 != nil || err2 != nil || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
			return nil, fmt.Errorf("%w: line %d: lat/lon out of range", ErrInvalidCoordinates, line)
		}
		out[strings.TrimSpace(rec[idCol])] = domain.LatLon{Lat: lat, Lon: lon}
	}
}
