package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunRecord is one persisted case result within a suite run.
type RunRecord struct {
	ID          string        `json:"id"`
	RunID       string        `json:"run_id"`
	Suite       string        `json:"suite"`
	Case        string        `json:"case"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	ExecutionID string        `json:"execution_id,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store persists suite run history.
type Store interface {
	// SaveSuite records every case result of one suite run.
	SaveSuite(ctx context.Context, result *SuiteResult) error

	// List returns the most recent records, newest first, capped at limit.
	List(ctx context.Context, limit int) ([]*RunRecord, error)

	// Purge deletes records older than the given age and reports how many.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}

// recordsFromSuite flattens a suite result into run records sharing a run ID.
func recordsFromSuite(result *SuiteResult) []*RunRecord {
	runID := uuid.NewString()
	now := time.Now().UTC()

	records := make([]*RunRecord, 0, len(result.Cases))
	for _, cr := range result.Cases {
		records = append(records, &RunRecord{
			ID:          uuid.NewString(),
			RunID:       runID,
			Suite:       result.Suite,
			Case:        cr.Name,
			Success:     cr.Success,
			Error:       cr.Error,
			ExecutionID: cr.ExecutionID,
			Duration:    cr.Duration,
			CreatedAt:   now,
		})
	}
	return records
}

// MemoryStore keeps run history in memory. Useful for tests and one-shot
// CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*RunRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSuite(ctx context.Context, result *SuiteResult) error {
	records := recordsFromSuite(result)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*RunRecord, len(s.records))
	copy(records, s.records)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var purged int64
	for _, record := range s.records {
		if record.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return purged, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
