package project

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateID is returned when inserting a project whose id is already
// present in the store.
var ErrDuplicateID = errors.New("duplicate project id")

// Store holds fully-resolved projects keyed by id, preserving insertion
// order. Lookups are lock-free; insertion is append-only and never replaces
// an existing project. It is safe for concurrent use.
type Store struct {
	nodes sync.Map // id -> *Project

	mu    sync.RWMutex
	order []string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Insert adds a project. Returns ErrDuplicateID if a project with the same
// id already exists; the existing project is never overwritten.
func (s *Store) Insert(p *Project) error {
	if _, loaded := s.nodes.LoadOrStore(p.ID, p); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	s.mu.Lock()
	s.order = append(s.order, p.ID)
	s.mu.Unlock()
	return nil
}

// Get returns the project with the given id. The boolean reports whether it
// exists. Get never blocks on writers.
func (s *Store) Get(id string) (*Project, bool) {
	v, ok := s.nodes.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Project), true
}

// All returns every project in insertion order.
func (s *Store) All() []*Project {
	ids := s.IDs()
	out := make([]*Project, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// IDs returns every project id in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of projects in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
