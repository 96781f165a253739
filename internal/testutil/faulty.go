package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// ErrInjected is returned by FaultyStore when a fault fires.
var ErrInjected = errors.New("injected store fault")

// FaultyStore wraps a store and fails selected calls.
//
// Faults are configured through the exported fields before use:
//   - CreatesBeforeFailure: number of Create calls that succeed before every
//     further Create fails; negative disables the fault
//   - FailCreateOf: when non-empty, only creates of that type count and fail
//   - FailUpdateOf: when non-empty, every Update of that type fails
//   - FailDeletes: every Delete fails
//   - FailLists: every List and Search fails
type FaultyStore struct {
	store.Store

	mu                   sync.Mutex
	CreatesBeforeFailure int
	FailCreateOf         construct.Type
	FailUpdateOf         construct.Type
	FailDeletes          bool
	FailLists            bool

	creates int
}

// NewFaultyStore wraps inner with no faults enabled.
func NewFaultyStore(inner store.Store) *FaultyStore {
	return &FaultyStore{Store: inner, CreatesBeforeFailure: -1}
}

// FailCreatesAfter lets n creates of type t (any type when empty) succeed
// and fails the rest.
func (f *FaultyStore) FailCreatesAfter(n int, t construct.Type) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatesBeforeFailure = n
	f.FailCreateOf = t
	f.creates = 0
}

func (f *FaultyStore) Create(ctx context.Context, t construct.Type, data construct.Data, opts store.CreateOptions) (*construct.Construct, error) {
	f.mu.Lock()
	fail := false
	if f.CreatesBeforeFailure >= 0 && (f.FailCreateOf == "" || f.FailCreateOf == t) {
		if f.creates >= f.CreatesBeforeFailure {
			fail = true
		}
		f.creates++
	}
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Create(ctx, t, data, opts)
}

func (f *FaultyStore) Update(ctx context.Context, id string, data construct.Data, opts store.UpdateOptions) (*construct.Construct, error) {
	f.mu.Lock()
	fail := f.FailUpdateOf != "" && data != nil && data.Kind() == f.FailUpdateOf
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Update(ctx, id, data, opts)
}

func (f *FaultyStore) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	fail := f.FailDeletes
	f.mu.Unlock()
	if fail {
		return false, ErrInjected
	}
	return f.Store.Delete(ctx, id)
}

func (f *FaultyStore) List(ctx context.Context, t construct.Type) ([]*construct.Construct, error) {
	f.mu.Lock()
	fail := f.FailLists
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.List(ctx, t)
}

func (f *FaultyStore) Search(ctx context.Context, q store.Query) ([]*construct.Construct, error) {
	f.mu.Lock()
	fail := f.FailLists
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Search(ctx, q)
}
