// Package store implements the authoritative in-memory record store.
//
// Records are partitioned by logical name. Each partition serializes
// writes against reads with its own RWMutex, and every record crossing
// the store boundary is deep-copied, so a Scan observes a consistent
// snapshot and never a record mid-mutation. Insertion order is preserved
// per partition and is the default result order of the query engine.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// Store is the in-memory record collection, keyed by logical name and id.
// Ids are unique within a logical name but not across logical names.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition
}

// partition holds the records of one logical name in insertion order.
type partition struct {
	mu      sync.RWMutex
	records []*types.Entity
	index   map[types.Identifier]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		partitions: make(map[string]*partition),
	}
}

func (s *Store) partitionFor(entity string, create bool) *partition {
	s.mu.RLock()
	p, ok := s.partitions[entity]
	s.mu.RUnlock()
	if ok || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[entity]; ok {
		return p
	}
	p = &partition{index: make(map[types.Identifier]int)}
	s.partitions[entity] = p
	return p
}

// Put stores a deep copy of the record. A record with an id already
// present replaces the existing one in place, keeping its insertion
// position; a new id appends.
func (s *Store) Put(e *types.Entity) error {
	if e == nil {
		return errors.New("nil record")
	}
	if e.LogicalName == "" {
		return errors.New("record requires a logical name")
	}
	if e.ID == uuid.Nil {
		return errors.New("record requires an id")
	}

	p := s.partitionFor(e.LogicalName, true)
	clone := e.Clone()

	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.index[e.ID]; ok {
		p.records[idx] = clone
		return nil
	}
	p.index[e.ID] = len(p.records)
	p.records = append(p.records, clone)
	return nil
}

// Get returns a deep copy of one record.
func (s *Store) Get(entity string, id types.Identifier) (*types.Entity, bool) {
	p := s.partitionFor(entity, false)
	if p == nil {
		return nil, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.records[idx].Clone(), true
}

// Scan returns a fresh snapshot of the partition taken at call time, in
// insertion order. The snapshot is a deep copy: later writes to the
// store, and caller mutations of the returned records, are invisible to
// each other.
func (s *Store) Scan(entity string) []*types.Entity {
	p := s.partitionFor(entity, false)
	if p == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*types.Entity, len(p.records))
	for i, rec := range p.records {
		out[i] = rec.Clone()
	}
	return out
}

// Remove deletes a record, reporting whether it existed. Later records
// keep their relative order.
func (s *Store) Remove(entity string, id types.Identifier) bool {
	p := s.partitionFor(entity, false)
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.index[id]
	if !ok {
		return false
	}
	p.records = append(p.records[:idx], p.records[idx+1:]...)
	delete(p.index, id)
	for i := idx; i < len(p.records); i++ {
		p.index[p.records[i].ID] = i
	}
	return true
}

// Count returns the number of records of one logical name.
func (s *Store) Count(entity string) int {
	p := s.partitionFor(entity, false)
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

// Reset drops all records (useful for testing).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions = make(map[string]*partition)
}
