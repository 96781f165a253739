// Package storetest is the conformance suite every store backend runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/props"
	"github.com/roach88/catgraph/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateStampsSignature", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("CreateRejectsMismatchedPayload", func(t *testing.T) { testCreateMismatch(t, newStore(t)) })
	t.Run("ReadAbsentReturnsNil", func(t *testing.T) { testReadAbsent(t, newStore(t)) })
	t.Run("ReadReturnsCopy", func(t *testing.T) { testReadCopy(t, newStore(t)) })
	t.Run("UpdateBumpsVersion", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateIfVersionConflict", func(t *testing.T) { testUpdateConflict(t, newStore(t)) })
	t.Run("UpdateAbsent", func(t *testing.T) { testUpdateAbsent(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListCreationOrder", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newStore(t)) })
	t.Run("ConcurrentCompareAndSwap", func(t *testing.T) { testConcurrentCAS(t, newStore(t)) })
}

func testCreate(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeObject, &construct.ObjectData{
		CategoryID: "cat-1",
		Properties: props.Object{"rank": props.Int(2), "tags": props.Array{props.String("a")}},
	}, store.CreateOptions{Name: "A", Description: "first"})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID())
	assert.Equal(t, s.ID(), c.Signature.StoreID)
	assert.Equal(t, int64(1), c.Signature.Version)
	assert.Equal(t, "A", c.Metadata.Name)
	assert.Equal(t, "first", c.Metadata.Description)
	assert.True(t, c.Metadata.CreatedAt.Equal(c.Metadata.UpdatedAt))
	assert.False(t, c.Metadata.CreatedAt.IsZero())

	got, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Signature, got.Signature)
	assert.True(t, c.Metadata.CreatedAt.Equal(got.Metadata.CreatedAt))
	obj := got.Object()
	require.NotNil(t, obj)
	assert.Equal(t, "cat-1", obj.CategoryID)
	assert.Equal(t, props.Int(2), obj.Properties["rank"])
	assert.Equal(t, []string{}, obj.MorphismsFromIDs)

	// nil payload creates the empty payload for the type
	cat, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, cat.Category())
	assert.Equal(t, []string{}, cat.Category().ObjectIDs)
}

func testCreateMismatch(t *testing.T, s store.Store) {
	_, err := s.Create(context.Background(), construct.TypeCategory, &construct.ObjectData{}, store.CreateOptions{})
	assert.Error(t, err)

	_, err = s.Create(context.Background(), construct.Type("widget"), nil, store.CreateOptions{})
	assert.Error(t, err)
}

func testReadAbsent(t *testing.T, s store.Store) {
	c, err := s.Read(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func testReadCopy(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{Name: "C"})
	require.NoError(t, err)

	first, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	first.Category().ObjectIDs = append(first.Category().ObjectIDs, "leak")
	first.Metadata.Name = "changed"

	second, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	assert.Empty(t, second.Category().ObjectIDs)
	assert.Equal(t, "C", second.Metadata.Name)
}

func testUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{Name: "C", Description: "d"})
	require.NoError(t, err)

	data := c.Category()
	data.ObjectIDs = append(data.ObjectIDs, "o1")
	name := "Renamed"
	updated, err := s.Update(ctx, c.ID(), data, store.UpdateOptions{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, int64(2), updated.Signature.Version)
	assert.Equal(t, "Renamed", updated.Metadata.Name)
	assert.Equal(t, "d", updated.Metadata.Description)
	assert.True(t, c.Metadata.CreatedAt.Equal(updated.Metadata.CreatedAt))
	assert.False(t, updated.Metadata.UpdatedAt.Before(c.Metadata.UpdatedAt))

	got, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Signature.Version)
	assert.Equal(t, []string{"o1"}, got.Category().ObjectIDs)

	_, err = s.Update(ctx, c.ID(), &construct.ObjectData{}, store.UpdateOptions{})
	assert.Error(t, err)
}

func testUpdateConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{})
	require.NoError(t, err)

	_, err = s.Update(ctx, c.ID(), c.Data, store.UpdateOptions{IfVersion: 1})
	require.NoError(t, err)

	data := c.Category()
	data.ObjectIDs = []string{"stale"}
	_, err = s.Update(ctx, c.ID(), data, store.UpdateOptions{IfVersion: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrVersionConflict), "got %v", err)

	got, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Signature.Version)
	assert.Empty(t, got.Category().ObjectIDs)
}

func testUpdateAbsent(t *testing.T, s store.Store) {
	_, err := s.Update(context.Background(), "missing", &construct.CategoryData{}, store.UpdateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeObject, nil, store.CreateOptions{})
	require.NoError(t, err)

	ok, err := s.Delete(ctx, c.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, c.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.List(ctx, construct.TypeObject)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	var want []string
	for _, name := range []string{"a", "b", "c"} {
		c, err := s.Create(ctx, construct.TypeObject, nil, store.CreateOptions{Name: name})
		require.NoError(t, err)
		want = append(want, c.ID())
	}
	_, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{Name: "cat"})
	require.NoError(t, err)

	objects, err := s.List(ctx, construct.TypeObject)
	require.NoError(t, err)
	assert.Equal(t, want, construct.IDs(objects))

	functors, err := s.List(ctx, construct.TypeFunctor)
	require.NoError(t, err)
	assert.Empty(t, functors)
}

func testSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	obj, err := s.Create(ctx, construct.TypeObject, nil, store.CreateOptions{Name: "X"})
	require.NoError(t, err)
	cat, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{Name: "X"})
	require.NoError(t, err)
	_, err = s.Create(ctx, construct.TypeObject, nil, store.CreateOptions{Name: "Y"})
	require.NoError(t, err)

	byName, err := s.Search(ctx, store.Query{Name: "X"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{obj.ID(), cat.ID()}, construct.IDs(byName))

	byBoth, err := s.Search(ctx, store.Query{Type: construct.TypeCategory, Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, []string{cat.ID()}, construct.IDs(byBoth))

	all, err := s.Search(ctx, store.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// testConcurrentCAS appends from many goroutines with a read-modify-write
// retry loop. Every append must survive.
func testConcurrentCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{})
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for {
				cur, err := s.Read(ctx, c.ID())
				if err != nil {
					errs <- err
					return
				}
				data := cur.Category()
				data.ObjectIDs = append(data.ObjectIDs, string(rune('a'+n)))
				_, err = s.Update(ctx, c.ID(), data, store.UpdateOptions{IfVersion: cur.Signature.Version})
				if errors.Is(err, store.ErrVersionConflict) {
					continue
				}
				if err != nil {
					errs <- err
				}
				return
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Read(ctx, c.ID())
	require.NoError(t, err)
	assert.Len(t, got.Category().ObjectIDs, writers)
	assert.Equal(t, int64(writers+1), got.Signature.Version)
}
