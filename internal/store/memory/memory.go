// Package memory is the in-process Store backend.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// Store keeps constructs in maps guarded by a mutex. Listing order is
// creation order.
type Store struct {
	id   string
	opts store.Options

	mu    sync.RWMutex
	items map[string]*construct.Construct
	order []string
}

var _ store.Store = (*Store)(nil)

// New creates an empty store identified by id.
func New(id string, opts ...store.Option) *Store {
	return &Store{
		id:    id,
		opts:  store.ResolveOptions(opts...),
		items: make(map[string]*construct.Construct),
	}
}

// ID returns the store identifier.
func (s *Store) ID() string { return s.id }

// Create inserts a new construct.
func (s *Store) Create(_ context.Context, t construct.Type, data construct.Data, opts store.CreateOptions) (*construct.Construct, error) {
	c, err := store.NewConstruct(s.id, s.opts.IDs.NewID(), t, data, opts, s.opts.Clock)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.ID()] = c
	s.order = append(s.order, c.ID())
	return c.Clone(), nil
}

// Read returns a copy of the construct, or nil when absent.
func (s *Store) Read(_ context.Context, id string) (*construct.Construct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[id].Clone(), nil
}

// Update replaces the payload under the write lock, so the version check and
// the write are atomic.
func (s *Store) Update(_ context.Context, id string, data construct.Data, opts store.UpdateOptions) (*construct.Construct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if data == nil || data.Kind() != current.Type {
		return nil, store.NewPayloadMismatch(current.Type, data)
	}
	if err := store.CheckVersion(current.Signature.Version, opts); err != nil {
		return nil, err
	}
	next := store.ApplyUpdate(current, data, opts, s.opts.Clock)
	s.items[id] = next
	return next.Clone(), nil
}

// Delete removes the construct.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return true, nil
}

// List returns constructs of type t in creation order.
func (s *Store) List(_ context.Context, t construct.Type) ([]*construct.Construct, error) {
	return s.collect(store.Query{Type: t}), nil
}

// Search returns constructs matching q in creation order.
func (s *Store) Search(_ context.Context, q store.Query) ([]*construct.Construct, error) {
	return s.collect(q), nil
}

func (s *Store) collect(q store.Query) []*construct.Construct {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*construct.Construct{}
	for _, id := range s.order {
		c := s.items[id]
		if q.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Len returns the number of stored constructs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
