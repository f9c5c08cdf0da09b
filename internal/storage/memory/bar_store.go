// Package memory provides in-memory store implementations, used by tests and
// single-shot runs that do not need persistence.
package memory

import (
	"context"
	"sort"
	"sync"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/storage"
)

type barKey struct {
	symbol    string
	timeframe string
}

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[barKey]map[int64]domain.Bar // keyed by (symbol, timeframe) then timestamp_ms
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[barKey]map[int64]domain.Bar),
	}
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate
// (symbol, timeframe, timestamp_ms).
func (s *BarStore) InsertBulk(_ context.Context, symbol, timeframe string, bars []domain.Bar) error {
	if symbol == "" || timeframe == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := barKey{symbol, timeframe}
	series := s.data[key]
	if series == nil {
		series = make(map[int64]domain.Bar, len(bars))
		s.data[key] = series
	}

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		if _, exists := series[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[b.TimestampMs] = struct{}{}
	}

	for _, b := range bars {
		series[b.TimestampMs] = b
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol/timeframe, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol, timeframe string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for _, b := range s.data[barKey{symbol, timeframe}] {
		result = append(result, b)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, symbol, timeframe string, start, end int64) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for ts, b := range s.data[barKey{symbol, timeframe}] {
		if ts >= start && ts <= end {
			result = append(result, b)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
