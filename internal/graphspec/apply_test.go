package graphspec

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/engine"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/memory"
	"github.com/roach88/catgraph/internal/testutil"
)

func newClient(t *testing.T, ids ...string) *engine.Client {
	t.Helper()
	fed, err := federation.New()
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, fed.Attach(memory.New(id,
			store.WithIDGenerator(testutil.NewSequentialIDs(id)),
			store.WithClock(testutil.NewDeterministicClock()),
		)))
	}
	return engine.New(fed, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestApply_Chain(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, "s1", "s2")
	plan, err := CompileSource(chain, "chain.cue")
	require.NoError(t, err)

	res, err := Apply(ctx, client, plan, ApplyOptions{})
	require.NoError(t, err)

	catID := res.Categories["C"]
	require.NotEmpty(t, catID)
	b, err := client.Get(ctx, res.Objects["C"]["B"])
	require.NoError(t, err)
	assert.Equal(t, "s2", b.Signature.StoreID)

	outcome, ok := res.Functor("F")
	require.True(t, ok)
	assert.True(t, outcome.Valid)
	assert.Empty(t, outcome.Errors)

	rows, err := client.Query().ObjectMappings(ctx, outcome.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	report, err := client.CheckBackReferences(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestApply_InvalidFunctorIsReportedNotBuilt(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, "main")
	plan, err := CompileSource(`
category: S: {
	object: x: {}
	object: y: {}
	object: z: {}
	morphism: f: {from: "x", to: "y"}
	morphism: h: {from: "x", to: "z"}
}
category: T: {
	object: a: {}
	object: b: {}
	object: c: {}
	object: d: {}
	morphism: g: {from: "a", to: "b"}
	morphism: k: {from: "c", to: "d"}
}
functor: Bad: {from: "S", to: "T", morphisms: {f: "g", h: "k"}}
`, "bad.cue")
	require.NoError(t, err)

	res, err := Apply(ctx, client, plan, ApplyOptions{DefaultStore: "main"})
	require.NoError(t, err)

	outcome, ok := res.Functor("Bad")
	require.True(t, ok)
	assert.False(t, outcome.Valid)
	assert.Empty(t, outcome.ID)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "must map to both")

	functors, err := client.Query().FunctorsFrom(ctx, res.Categories["S"])
	require.NoError(t, err)
	assert.Empty(t, functors)
}

func TestApply_NeedsAStore(t *testing.T) {
	client := newClient(t, "main")
	plan, err := CompileSource(`category: C: {}`, "c.cue")
	require.NoError(t, err)

	_, err = Apply(context.Background(), client, plan, ApplyOptions{})
	assert.ErrorContains(t, err, "no store named")
}
