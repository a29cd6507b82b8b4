package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the volatile audit backend. It keeps every entry in
// process memory keyed by attempt id and mirrors the durable backend's
// query semantics exactly.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string]*TransmissionLog // attempt id -> entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[string]*TransmissionLog),
	}
}

// SaveLog appends an entry. A second save with the same attempt id
// returns ErrDuplicateLog.
func (s *MemoryStore) SaveLog(ctx context.Context, log *TransmissionLog) error {
	if log.AttemptID == "" {
		return fmt.Errorf("transmission log has no attempt id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.logs[log.AttemptID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLog, log.AttemptID)
	}

	stored := *log
	s.logs[log.AttemptID] = &stored
	return nil
}

// GetLog retrieves the entry for an attempt id.
func (s *MemoryStore) GetLog(ctx context.Context, attemptID string) (*TransmissionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[attemptID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLogNotFound, attemptID)
	}
	copied := *log
	return &copied, nil
}

// ListLogs returns matching entries newest first, bounded by the filter
// limit.
func (s *MemoryStore) ListLogs(ctx context.Context, filter *LogFilter) ([]*TransmissionLog, error) {
	if filter == nil {
		filter = &LogFilter{}
	}

	s.mu.RLock()
	matched := make([]*TransmissionLog, 0)
	for _, log := range s.logs {
		if filter.matches(log) {
			copied := *log
			matched = append(matched, &copied)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Statistics aggregates the window [from, to].
func (s *MemoryStore) Statistics(ctx context.Context, from, to time.Time) (*Statistics, error) {
	logs, err := s.ListLogs(ctx, &LogFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return aggregate(from, to, logs), nil
}

// PurgeOlderThan removes entries created before cutoff.
func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, log := range s.logs {
		if log.CreatedAt.Before(cutoff) {
			delete(s.logs, key)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close drops all entries.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = make(map[string]*TransmissionLog)
	return nil
}
