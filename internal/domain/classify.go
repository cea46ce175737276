package domain

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Category names produced by the default threshold table.
const (
	CategoryExceptional = "Exceptional Drought"
	CategoryExtreme     = "Extreme Drought"
	CategorySevere      = "Severe Drought"
	CategoryModerate    = "Moderate Drought"
	CategoryNormal      = "Near Normal"
	CategoryWet         = "Abnormally Wet"
)

var (
	// ErrNotFinite is returned when a NaN index value is classified.
	ErrNotFinite = errors.New("index value is not a number")

	// ErrInvalidThresholds is returned for unknown override keys or
	// boundaries that are not strictly increasing.
	ErrInvalidThresholds = errors.New("invalid drought thresholds")
)

// Category is one severity bucket. Values v with Lower < v <= Upper belong
// to it; the first category has Lower = -Inf and the last Upper = +Inf.
type Category struct {
	Name  string  `json:"name" yaml:"name"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Contains reports whether v lies in the category's half-open interval.
func (c Category) Contains(v float64) bool {
	if math.IsInf(c.Lower, -1) && math.IsInf(v, -1) {
		return true
	}
	return v > c.Lower && v <= c.Upper
}

// thresholdKeys lists the override keys in boundary order, paired with the
// category each boundary closes.
var thresholdKeys = []struct {
	key      string
	category string
	value    float64
}{
	{"exceptional", CategoryExceptional, -2.0},
	{"extreme", CategoryExtreme, -1.5},
	{"severe", CategorySevere, -1.0},
	{"moderate", CategoryModerate, -0.5},
	{"normal", CategoryNormal, 0.5},
}

// ThresholdTable is an ordered set of categories partitioning the real line.
type ThresholdTable struct {
	categories []Category
	boundaries map[string]float64
}

// DefaultThresholds returns the standard SSWEI classification table.
func DefaultThresholds() *ThresholdTable {
	t, err := NewThresholdTable(nil)
	if err != nil {
		panic(err) // defaults are constant
	}
	return t
}

// NewThresholdTable builds a table from the defaults with the given
// boundary overrides applied. Keys are exceptional, extreme, severe,
// moderate and normal.
func NewThresholdTable(overrides map[string]float64) (*ThresholdTable, error) {
	bounds := make(map[string]float64, len(thresholdKeys))
	for _, k := range thresholdKeys {
		bounds[k.key] = k.value
	}
	for key, v := range overrides {
		if _, ok := bounds[key]; !ok {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidThresholds, key)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s boundary must be finite", ErrInvalidThresholds, key)
		}
		bounds[key] = v
	}

	cats := make([]Category, 0, len(thresholdKeys)+1)
	lower := math.Inf(-1)
	for _, k := range thresholdKeys {
		upper := bounds[k.key]
		if upper <= lower {
			return nil, fmt.Errorf("%w: %s boundary %g must exceed %g", ErrInvalidThresholds, k.key, upper, lower)
		}
		cats = append(cats, Category{Name: k.category, Lower: lower, Upper: upper})
		lower = upper
	}
	cats = append(cats, Category{Name: CategoryWet, Lower: lower, Upper: math.Inf(1)})

	return &ThresholdTable{categories: cats, boundaries: bounds}, nil
}

// LoadThresholds reads boundary overrides from a YAML mapping such as
//
//	exceptional: -2.0
//	moderate: -0.8
//
// and builds a table from them.
func LoadThresholds(path string) (*ThresholdTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	var overrides map[string]float64
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	return NewThresholdTable(overrides)
}

// Categories returns a copy of the ordered categories.
func (t *ThresholdTable) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Boundaries returns the override keys mapped to their boundary values.
func (t *ThresholdTable) Boundaries() map[string]float64 {
	out := make(map[string]float64, len(t.boundaries))
	for k, v := range t.boundaries {
		out[k] = v
	}
	return out
}

// Classify returns the category whose interval contains v.
func (t *ThresholdTable) Classify(v float64) (Category, error) {
	if math.IsNaN(v) {
		return Category{}, ErrNotFinite
	}
	i := sort.Search(len(t.categories), func(i int) bool {
		return v <= t.categories[i].Upper
	})
	if i == len(t.categories) {
		i--
	}
	return t.categories[i], nil
}

// IsDrought reports whether the named category is a drought category, that
// is, any category up to and including Moderate Drought.
func (t *ThresholdTable) IsDrought(name string) bool {
	for _, c := range t.categories {
		if c.Name == name {
			return c.Upper <= t.boundaries["moderate"]
		}
	}
	return false
}

// Rank returns the position of the named category, 0 being the most
// severe, or -1 when unknown.
func (t *ThresholdTable) Rank(name string) int {
	for i, c := range t.categories {
		if c.Name == name {
			return i
		}
	}
	return -1
}
