// Package netcdf reads and writes station SWE datasets and DEM grids in the
// NetCDF classic format.
//
// Station files follow the CanSWE layout: a station dimension carrying
// station_id, lat, lon and elevation, a time dimension with CF-style units
// ("days since 1979-01-01"), and a SWE variable over [station, time] or
// [time, station].
package netcdf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

const (
	timeVar         = "time"
	stationIDVar    = "station_id"
	stationNameVar  = "station_name"
	stationIDsAttr  = "station_ids"
	stationNameAttr = "station_names"
	nameSeparator   = "|"
	defaultFill     = -9999.0
	epochUnits      = "days since 1970-01-01 00:00:00"
)

// ErrMissingVariable is returned when a required variable is absent.
var ErrMissingVariable = errors.New("variable not in file")

// LoadDataset reads station SWE from a NetCDF file. Fill values and
// negative depths become NaN.
func LoadDataset(path, variable string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	defer f.Close()

	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("load dataset: open netcdf %s: %w", path, err)
	}
	h := ff.Header

	times, err := readTimes(ff)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	lats, err := readFloats(ff, "lat")
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	lons, err := readFloats(ff, "lon")
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	nStations := len(lats)
	if len(lons) != nStations {
		return nil, fmt.Errorf("load dataset: lat has %d values, lon has %d", nStations, len(lons))
	}

	elev := make([]float64, nStations)
	if hasVariable(h, "elevation") {
		if elev, err = readFloats(ff, "elevation"); err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
	} else {
		for i := range elev {
			elev[i] = math.NaN()
		}
	}

	ids, err := readStationIDs(ff, nStations)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	names := readStationNames(ff, nStations)

	raw, err := readFloats(ff, variable)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	fill := fillValue(h, variable)

	stationDim := h.Dimensions("lat")[0]
	dims := h.Dimensions(variable)
	if len(dims) != 2 {
		return nil, fmt.Errorf("load dataset: %s has %d dimensions, want 2", variable, len(dims))
	}
	stationMajor := dims[0] == stationDim
	nTimes := len(times)
	if len(raw) != nStations*nTimes {
		return nil, fmt.Errorf("load dataset: %s has %d values, want %d", variable, len(raw), nStations*nTimes)
	}

	d := &domain.Dataset{
		Variable: variable,
		Units:    attrString(h.GetAttribute(variable, "units")),
		Stations: make([]domain.Station, nStations),
		Times:    times,
		Values:   make([][]float64, nStations),
	}
	for s := 0; s < nStations; s++ {
		d.Stations[s] = domain.Station{ID: ids[s], Name: names[s], Lat: lats[s], Lon: lons[s], Elevation: elev[s]}
		row := make([]float64, nTimes)
		for t := 0; t < nTimes; t++ {
			var v float64
			if stationMajor {
				v = raw[s*nTimes+t]
			} else {
				v = raw[t*nStations+s]
			}
			if v == fill || v < 0 || math.IsInf(v, 0) {
				v = math.NaN()
			}
			row[t] = v
		}
		d.Values[s] = row
	}
	return d, nil
}

// WriteDataset writes a dataset as [station, time] with days-since-epoch
// time units. Station ids and names are stored as global attributes.
func WriteDataset(path string, d *domain.Dataset) error {
	variable := d.Variable
	if variable == "" {
		variable = "snw"
	}
	nS, nT := d.Len(), len(d.Times)
	// A zero length marks the record dimension in the classic format.
	if nS == 0 || nT == 0 {
		return fmt.Errorf("write dataset: %w", domain.ErrInsufficientData)
	}

	h := cdf.NewHeader([]string{"station", "time"}, []int{nS, nT})
	h.AddVariable(timeVar, []string{"time"}, []float64{})
	h.AddAttribute(timeVar, "units", epochUnits)
	for _, v := range []string{"lat", "lon", "elevation"} {
		h.AddVariable(v, []string{"station"}, []float64{})
	}
	h.AddVariable(variable, []string{"station", "time"}, []float64{})
	h.AddAttribute(variable, "_FillValue", []float64{defaultFill})
	units := d.Units
	if units == "" {
		units = "mm"
	}
	h.AddAttribute(variable, "units", units)

	ids := make([]string, nS)
	names := make([]string, nS)
	for i, s := range d.Stations {
		ids[i] = s.ID
		names[i] = s.Name
	}
	h.AddAttribute("", stationIDsAttr, strings.Join(ids, nameSeparator))
	h.AddAttribute("", stationNameAttr, strings.Join(names, nameSeparator))
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	defer f.Close()

	ff, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write dataset: create netcdf: %w", err)
	}

	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	days := make([]float64, nT)
	for i, t := range d.Times {
		days[i] = t.Sub(epoch).Hours() / 24
	}
	lats, lons, elevs := make([]float64, nS), make([]float64, nS), make([]float64, nS)
	for i, s := range d.Stations {
		lats[i], lons[i], elevs[i] = s.Lat, s.Lon, s.Elevation
	}
	values := make([]float64, 0, nS*nT)
	for _, row := range d.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				v = defaultFill
			}
			values = append(values, v)
		}
	}

	for _, w := range []struct {
		name string
		data []float64
	}{
		{timeVar, days},
		{"lat", lats},
		{"lon", lons},
		{"elevation", elevs},
		{variable, values},
	} {
		if err := writeVariable(ff, w.name, w.data); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
	}
	return nil
}

// writeVariable writes every value of a fixed-size variable. The writer
// reports io.EOF once it reaches the end of the variable, which is success
// when data covers the whole variable.
func writeVariable(ff *cdf.File, name string, data []float64) error {
	want := 1
	for _, l := range ff.Header.Lengths(name) {
		want *= l
	}
	if len(data) != want {
		return fmt.Errorf("variable %s: have %d values, want %d", name, len(data), want)
	}
	_, err := ff.Writer(name, nil, nil).Write(data)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	return nil
}

func hasVariable(h *cdf.Header, name string) bool {
	for _, v := range h.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// readFloats reads a whole numeric variable as float64.
func readFloats(ff *cdf.File, name string) ([]float64, error) {
	if !hasVariable(ff.Header, name) {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %s: %w", name, err)
	}
	out, ok := toFloats(buf)
	if !ok {
		return nil, fmt.Errorf("read variable %s: unsupported type %T", name, buf)
	}
	return out, nil
}

func toFloats(buf any) ([]float64, bool) {
	switch b := buf.(type) {
	case []float64:
		return b, true
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, true
	case []int32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, true
	case []int16:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, true
	case []int8:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, true
	default:
		return nil, false
	}
}

// readStationIDs reads a char or numeric station_id variable, falling back
// to the station_ids global attribute and finally to positional ids.
func readStationIDs(ff *cdf.File, n int) ([]string, error) {
	if hasVariable(ff.Header, stationIDVar) {
		return readStrings(ff, stationIDVar, n)
	}
	if s := attrString(ff.Header.GetAttribute("", stationIDsAttr)); s != "" {
		ids := strings.Split(s, nameSeparator)
		if len(ids) != n {
			return nil, fmt.Errorf("%s attribute has %d ids, want %d", stationIDsAttr, len(ids), n)
		}
		return ids, nil
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	return ids, nil
}

func readStationNames(ff *cdf.File, n int) []string {
	if hasVariable(ff.Header, stationNameVar) {
		if names, err := readStrings(ff, stationNameVar, n); err == nil {
			return names
		}
	}
	if s := attrString(ff.Header.GetAttribute("", stationNameAttr)); s != "" {
		if names := strings.Split(s, nameSeparator); len(names) == n {
			return names
		}
	}
	return make([]string, n)
}

// readStrings reads a [station, strlen] char variable or a numeric
// [station] variable as n strings.
func readStrings(ff *cdf.File, name string, n int) ([]string, error) {
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %s: %w", name, err)
	}

	var chars []byte
	switch b := buf.(type) {
	case []byte:
		chars = b
	case []int8:
		chars = make([]byte, len(b))
		for i, c := range b {
			chars[i] = byte(c)
		}
	case string:
		chars = []byte(b)
	default:
		nums, ok := toFloats(buf)
		if !ok || len(nums) != n {
			return nil, fmt.Errorf("read variable %s: unsupported type %T", name, buf)
		}
		out := make([]string, n)
		for i, v := range nums {
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		return out, nil
	}

	if n == 0 || len(chars)%n != 0 {
		return nil, fmt.Errorf("read variable %s: %d chars for %d stations", name, len(chars), n)
	}
	width := len(chars) / n
	out := make([]string, n)
	for i := range out {
		out[i] = strings.TrimSpace(strings.TrimRight(string(chars[i*width:(i+1)*width]), "\x00"))
	}
	return out, nil
}

func readTimes(ff *cdf.File) ([]time.Time, error) {
	raw, err := readFloats(ff, timeVar)
	if err != nil {
		return nil, err
	}
	units := attrString(ff.Header.GetAttribute(timeVar, "units"))
	step, origin, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(raw))
	for i, v := range raw {
		out[i] = origin.Add(time.Duration(math.Round(v * float64(step))))
	}
	return out, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseTimeUnits parses CF time units such as "days since 1979-01-01" into
// the step duration and the UTC origin.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("invalid time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h":
		step = time.Hour
	case "minutes", "minute":
		step = time.Minute
	case "seconds", "second", "s":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time step in %q", units)
	}

	ref := strings.TrimSpace(parts[1])
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("invalid time origin in %q", units)
}

func fillValue(h *cdf.Header, variable string) float64 {
	for _, a := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloat(h.GetAttribute(variable, a)); ok {
			return v
		}
	}
	return defaultFill
}

func attrString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return strings.TrimRight(string(s), "\x00")
	default:
		return ""
	}
}

func attrFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	}
	if vals, ok := toFloats(v); ok && len(vals) > 0 {
		return vals[0], true
	}
	return 0, false
}
