package cache

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_BasicGetPut(t *testing.T) {
	c := NewLRU[string, int](3)

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a"

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have been evicted")

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRU_AccessPromotesEntry(t *testing.T) {
	c := NewLRU[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU[string, string](2)

	c.Put("a", "A1")
	c.Put("a", "A2")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_ZeroSizeStoresNothing(t *testing.T) {
	c := NewLRU[string, int](0)
	c.Put("a", 1)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

type record struct {
	Name   string
	Values []float64
	At     time.Time
}

func TestDisk_RoundTrip(t *testing.T) {
	d, err := NewDisk[record](filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, err)

	_, ok, err := d.Get("abc")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, d.Put("abc", record{Name: "x", Values: []float64{1, math.NaN()}, At: at}))

	got, ok, err := d.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", got.Name)
	assert.Equal(t, 1.0, got.Values[0])
	assert.True(t, math.IsNaN(got.Values[1]))
	assert.True(t, at.Equal(got.At))
}

func TestDisk_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk[record](dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.gob"), []byte("not gob"), 0o600))

	_, ok, err := d.Get("bad")
	require.Error(t, err)
	assert.False(t, ok)
}
