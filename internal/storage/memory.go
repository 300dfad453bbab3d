package storage

import (
	"context"
	"sort"
	"sync"

	"chiasma/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	records     map[string][]model.IndividualRecord
	founders    map[string]model.FounderSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.records = make(map[string][]model.IndividualRecord)
	s.founders = make(map[string]model.FounderSnapshot)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	return runs, nil
}

func (s *MemoryStore) SaveRecords(_ context.Context, runID string, records []model.IndividualRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.IndividualRecord, len(records))
	copy(copied, records)
	s.records[runID] = copied
	return nil
}

func (s *MemoryStore) GetRecords(_ context.Context, runID string) ([]model.IndividualRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.records[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.IndividualRecord, len(records))
	copy(copied, records)
	return copied, true, nil
}

func (s *MemoryStore) SaveFounders(_ context.Context, snapshot model.FounderSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.founders[snapshot.ID] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetFounders(_ context.Context, id string) (model.FounderSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.founders[id]
	if !ok {
		return model.FounderSnapshot{}, false, nil
	}
	return cloneSnapshot(snapshot), true, nil
}

// cloneSnapshot deep-copies haplotype slices so a caller mutating a loaded
// founder population never reaches the stored copy.
func cloneSnapshot(snapshot model.FounderSnapshot) model.FounderSnapshot {
	out := snapshot
	out.Pool = make([]model.Haplotype, len(snapshot.Pool))
	for i, h := range snapshot.Pool {
		out.Pool[i] = h.Clone()
	}
	out.Members = make([]model.Individual, len(snapshot.Members))
	for i, member := range snapshot.Members {
		copied := member
		copied.Haplotypes = [2]model.Haplotype{member.Haplotypes[0].Clone(), member.Haplotypes[1].Clone()}
		out.Members[i] = copied
	}
	return out
}
