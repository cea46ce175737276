package domain

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

var (
	// ErrStationNotFound is returned when a station id is not in a dataset.
	ErrStationNotFound = errors.New("station not found")

	// ErrInsufficientData is returned when a series has no usable values.
	ErrInsufficientData = errors.New("insufficient data")
)

// Station describes a SWE measurement site.
type Station struct {
	ID        string  `json:"station_id"`
	Name      string  `json:"name,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
	Basin     string  `json:"basin,omitempty"`

	// Geocoding enrichment.
	PlaceName string `json:"place_name,omitempty"`
	GeoSource string `json:"geo_source,omitempty"` // "reverse", "original", "failed"
}

type stationAlias Station

type stationJSON struct {
	stationAlias
	Elevation *float64 `json:"elevation"`
}

// MarshalJSON encodes an unknown (NaN) elevation as null.
func (s Station) MarshalJSON() ([]byte, error) {
	out := stationJSON{stationAlias: stationAlias(s)}
	if !math.IsNaN(s.Elevation) {
		e := s.Elevation
		out.Elevation = &e
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null or absent elevation as NaN.
func (s *Station) UnmarshalJSON(data []byte) error {
	var in stationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Station(in.stationAlias)
	s.Elevation = math.NaN()
	if in.Elevation != nil {
		s.Elevation = *in.Elevation
	}
	return nil
}

// LatLon is a replacement coordinate pair for a station.
type LatLon struct {
	Lat float64
	Lon float64
}

// Series is the daily SWE record of one station. Values[i] is the SWE in
// millimetres on Times[i]; NaN marks a missing day.
type Series struct {
	Station Station
	Times   []time.Time
	Values  []float64
}

// Dataset holds SWE for many stations on a shared time axis.
// Values[s][t] is station s on Times[t].
type Dataset struct {
	Variable string
	Units    string
	Stations []Station
	Times    []time.Time
	Values   [][]float64
}

// Len returns the number of stations.
func (d *Dataset) Len() int { return len(d.Stations) }

// StationSeries returns the series of station i. The slices are shared with
// the dataset.
func (d *Dataset) StationSeries(i int) Series {
	return Series{Station: d.Stations[i], Times: d.Times, Values: d.Values[i]}
}

// Index returns the position of the station with the given id.
func (d *Dataset) Index(id string) (int, error) {
	for i, s := range d.Stations {
		if s.ID == id {
			return i, nil
		}
	}
	return -1, ErrStationNotFound
}

// SeasonIndex is the SSWEI of one station for one snow season.
type SeasonIndex struct {
	SeasonYear    int     `json:"season_year"`
	IntegratedSWE float64 `json:"integrated_swe"`
	ValidDays     int     `json:"valid_days"`
	Probability   float64 `json:"probability"`
	SSWEI         float64 `json:"sswei"`
	Category      string  `json:"category"`
	Drought       bool    `json:"drought"`

	// Precipitation is the season's total in millimetres, set only when a
	// precipitation dataset was supplied.
	Precipitation *float64 `json:"precipitation,omitempty"`
}

// StationResult is the fully processed output for one station.
type StationResult struct {
	Station      Station       `json:"station"`
	Availability float64       `json:"availability"`
	GapsFilled   int           `json:"gaps_filled"`
	Seasons      []SeasonIndex `json:"seasons"`
	ProcessedAt  time.Time     `json:"processed_at"`
}
