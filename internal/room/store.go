package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrStaleWrite is returned by Store.Update when the record's version
// does not follow the stored one; the caller raced a concurrent writer
// and must reload before retrying.
var ErrStaleWrite = errors.New("stale write: record version conflict")

// ErrRoomExists is returned by Store.Create for a duplicate room ID.
var ErrRoomExists = errors.New("room already exists")

// Record is the persisted form of a room. State is the opaque game
// snapshot; the remaining fields exist so rooms can be listed without
// decoding it.
type Record struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Status  Status          `json:"status"`
	Host    string          `json:"host"`
	Players int             `json:"players"`
	Version uint64          `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Store is the persistence contract the engine consumes. Update is
// conditional: it applies only when the record's version is exactly
// one ahead of the stored version, preventing stale overwrites.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Find(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	ListByStatus(ctx context.Context, status Status) ([]*Record, error)
}

// MemoryStore is the in-process Store used by the server. External
// deployments can substitute a database-backed implementation with the
// same conditional-update semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Create stores a new record.
func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return ErrRoomExists
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Find returns a copy of the record for the given room ID.
func (s *MemoryStore) Find(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRecord(rec), nil
}

// Update applies the record if and only if its version succeeds the
// stored one.
func (s *MemoryStore) Update(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return ErrRoomNotFound
	}
	if rec.Version != current.Version+1 {
		return ErrStaleWrite
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// ListByStatus returns copies of all records in the given status.
func (s *MemoryStore) ListByStatus(ctx context.Context, status Status) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func cloneRecord(rec *Record) *Record {
	clone := *rec
	clone.State = append(json.RawMessage(nil), rec.State...)
	return &clone
}
