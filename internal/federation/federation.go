// Package federation holds the set of stores that together form one logical
// graph.
//
// A Context is owned by the caller and handed to the query engine, the
// client and the functor builder. Stores are kept in attach order, which is
// the order every federated scan visits them. Each Attach or Detach bumps a
// generation counter so derived caches can tell the set has changed.
package federation

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// Context is the ordered set of attached stores. Safe for concurrent use.
type Context struct {
	mu         sync.RWMutex
	stores     []store.Store
	generation uint64
}

// New creates a context with stores attached in argument order.
func New(stores ...store.Store) (*Context, error) {
	c := &Context{}
	for _, s := range stores {
		if err := c.Attach(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Attach appends s. Store ids must be unique within a context.
func (c *Context) Attach(s store.Store) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexLocked(s.ID()) >= 0 {
		return fmt.Errorf("store %q is already attached", s.ID())
	}
	c.stores = append(c.stores, s)
	c.generation++
	return nil
}

// Detach removes the store with the given id and reports whether it was
// attached.
func (c *Context) Detach(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.stores = slices.Delete(c.stores, i, i+1)
	c.generation++
	return true
}

// Store returns the attached store with the given id, or a NotAttached
// error.
func (c *Context) Store(id string) (store.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(id)
	if i < 0 {
		return nil, construct.NewNotAttachedError(id)
	}
	return c.stores[i], nil
}

// Stores returns a snapshot of the attached stores in attach order.
func (c *Context) Stores() []store.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.stores)
}

// IDs returns the attached store ids in attach order.
func (c *Context) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.stores))
	for i, s := range c.stores {
		ids[i] = s.ID()
	}
	return ids
}

// Generation changes whenever the attached set changes.
func (c *Context) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Context) indexLocked(id string) int {
	return slices.IndexFunc(c.stores, func(s store.Store) bool { return s.ID() == id })
}
