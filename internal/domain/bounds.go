package domain

import (
	"encoding/json"
	"math"
)

// boundsJSON is the wire form of an interval. Infinite ends are null.
type boundsJSON struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
}

func toBoundsJSON(lower, upper float64) boundsJSON {
	return boundsJSON{Lower: finiteOrNil(lower), Upper: finiteOrNil(upper)}
}

// interval returns the bounds with a null lower end read as -Inf and a
// null upper end as +Inf.
func (b boundsJSON) interval() (lower, upper float64) {
	lower, upper = math.Inf(-1), math.Inf(1)
	if b.Lower != nil {
		lower = *b.Lower
	}
	if b.Upper != nil {
		upper = *b.Upper
	}
	return lower, upper
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

type elevationBandJSON struct {
	boundsJSON
	Label string `json:"label"`
}

// MarshalJSON encodes the open-ended first and last bands with null bounds.
func (b ElevationBand) MarshalJSON() ([]byte, error) {
	return json.Marshal(elevationBandJSON{boundsJSON: toBoundsJSON(b.Lower, b.Upper), Label: b.Label})
}

func (b *ElevationBand) UnmarshalJSON(data []byte) error {
	var in elevationBandJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.Lower, b.Upper = in.interval()
	b.Label = in.Label
	return nil
}

type categoryJSON struct {
	Name string `json:"name"`
	boundsJSON
}

// MarshalJSON encodes the unbounded ends of the outer categories as null.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(categoryJSON{Name: c.Name, boundsJSON: toBoundsJSON(c.Lower, c.Upper)})
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var in categoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Name = in.Name
	c.Lower, c.Upper = in.interval()
	return nil
}
