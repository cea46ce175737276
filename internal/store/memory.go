// Package store keeps processed station results in memory for the HTTP API.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// Memory holds the latest result per station. It implements
// pipeline.BatchLoader so it can sit next to the configured sink.
type Memory struct {
	mu      sync.RWMutex
	results map[string]domain.StationResult
}

func NewMemory() *Memory {
	return &Memory{results: make(map[string]domain.StationResult)}
}

// LoadBatch stores the batch, replacing earlier results for the same
// station ids.
func (m *Memory) LoadBatch(_ context.Context, results []domain.StationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		m.results[r.Station.ID] = r
	}
	return nil
}

// Results returns every stored result ordered by station id.
func (m *Memory) Results(_ context.Context) ([]domain.StationResult, error) {
	m.mu.RLock()
	out := make([]domain.StationResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Station.ID < out[j].Station.ID })
	return out, nil
}

// Result returns the result for one station.
func (m *Memory) Result(_ context.Context, id string) (domain.StationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return domain.StationResult{}, fmt.Errorf("%w: %s", domain.ErrStationNotFound, id)
	}
	return r, nil
}

// Len returns the number of stored stations.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}
