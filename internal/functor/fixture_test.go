package functor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/engine"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/memory"
	"github.com/roach88/catgraph/internal/testutil"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	fed    *federation.Context
	client *engine.Client
}

func memoryStore(id string) *memory.Store {
	return memory.New(id,
		store.WithIDGenerator(testutil.NewSequentialIDs(id)),
		store.WithClock(testutil.NewDeterministicClock()),
	)
}

// newFixture attaches the given stores, or memory stores s1 and s2 when
// none are given.
func newFixture(t *testing.T, stores ...store.Store) *fixture {
	t.Helper()
	if len(stores) == 0 {
		stores = []store.Store{memoryStore("s1"), memoryStore("s2")}
	}
	fed, err := federation.New(stores...)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		fed:    fed,
		client: engine.New(fed, engine.WithLogger(logger)),
	}
}

func (f *fixture) category(storeID, name string) *construct.Construct {
	f.t.Helper()
	c, err := f.client.CreateCategory(f.ctx, storeID, engine.CategorySpec{Name: name})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) object(storeID string, cat *construct.Construct, name string) *construct.Construct {
	f.t.Helper()
	o, err := f.client.CreateObject(f.ctx, storeID, engine.ObjectSpec{Name: name, CategoryID: cat.ID()})
	require.NoError(f.t, err)
	return o
}

func (f *fixture) morphism(storeID string, cat *construct.Construct, name string, src, tgt *construct.Construct) *construct.Construct {
	f.t.Helper()
	m, err := f.client.CreateMorphism(f.ctx, storeID, engine.MorphismSpec{
		Name:       name,
		SourceID:   src.ID(),
		TargetID:   tgt.ID(),
		CategoryID: cat.ID(),
	})
	require.NoError(f.t, err)
	return m
}

func (f *fixture) builder(storeID string, src, tgt *construct.Construct) *Builder {
	return New(f.client).
		InStore(storeID).
		From(construct.Resolved(src)).
		To(construct.Resolved(tgt)).
		Named("F")
}

func (f *fixture) objectRows(functorID string) []*construct.Construct {
	f.t.Helper()
	rows, err := f.client.Query().ObjectMappings(f.ctx, functorID)
	require.NoError(f.t, err)
	return rows
}

func (f *fixture) morphismRows(functorID string) []*construct.Construct {
	f.t.Helper()
	rows, err := f.client.Query().MorphismMappings(f.ctx, functorID)
	require.NoError(f.t, err)
	return rows
}

func (f *fixture) requireConsistent() {
	f.t.Helper()
	report, err := f.client.CheckBackReferences(f.ctx)
	require.NoError(f.t, err)
	require.True(f.t, report.Consistent(), "drifts: %v", report.Drifts)
}

func ref(c *construct.Construct) construct.Ref { return construct.Resolved(c) }

// pairsOf flattens mapping rows into source->target pairs.
func pairsOf(rows []*construct.Construct) map[string]string {
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		switch d := r.Data.(type) {
		case *construct.ObjectMappingData:
			out[d.SourceObjectID] = d.TargetObjectID
		case *construct.MorphismMappingData:
			out[d.SourceMorphismID] = d.TargetMorphismID
		}
	}
	return out
}

// square is a source category x -> y, x -> z and a target category
// a -> b, a -> c, c -> d.
type square struct {
	src, tgt   *construct.Construct
	x, y, z    *construct.Construct
	a, b, c, d *construct.Construct
	f, h       *construct.Construct // x -> y, x -> z
	g, i, k    *construct.Construct // a -> b, a -> c, c -> d
}

func newSquare(f *fixture) square {
	f.t.Helper()
	var s square
	s.src = f.category("s1", "Src")
	s.tgt = f.category("s1", "Tgt")
	s.x = f.object("s1", s.src, "x")
	s.y = f.object("s1", s.src, "y")
	s.z = f.object("s1", s.src, "z")
	s.a = f.object("s1", s.tgt, "a")
	s.b = f.object("s1", s.tgt, "b")
	s.c = f.object("s1", s.tgt, "c")
	s.d = f.object("s1", s.tgt, "d")
	s.f = f.morphism("s1", s.src, "f", s.x, s.y)
	s.h = f.morphism("s1", s.src, "h", s.x, s.z)
	s.g = f.morphism("s1", s.tgt, "g", s.a, s.b)
	s.i = f.morphism("s1", s.tgt, "i", s.a, s.c)
	s.k = f.morphism("s1", s.tgt, "k", s.c, s.d)
	return s
}
