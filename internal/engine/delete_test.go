package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// graph is a category with two objects and one non-identity arrow a -> b.
type graph struct {
	cat, a, b, f *construct.Construct
}

func seedGraph(t *testing.T, c *Client) graph {
	t.Helper()
	ctx := context.Background()
	cat, err := c.CreateCategory(ctx, "s1", CategorySpec{Name: "C"})
	require.NoError(t, err)
	a, err := c.CreateObject(ctx, "s1", ObjectSpec{Name: "A", CategoryID: cat.ID()})
	require.NoError(t, err)
	b, err := c.CreateObject(ctx, "s2", ObjectSpec{Name: "B", CategoryID: cat.ID()})
	require.NoError(t, err)
	f, err := c.CreateMorphism(ctx, "s2", MorphismSpec{Name: "f", SourceID: a.ID(), TargetID: b.ID(), CategoryID: cat.ID()})
	require.NoError(t, err)
	return graph{cat: cat, a: a, b: b, f: f}
}

func TestDelete_RetractRemovesBackReferences(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, []string{"s1", "s2"})
	g := seedGraph(t, c)

	ok, err := c.Delete(ctx, g.f.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := c.Get(ctx, g.f.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.NotContains(t, mustGet(t, c, g.cat.ID()).Category().MorphismIDs, g.f.ID())
	assert.NotContains(t, mustGet(t, c, g.a.ID()).Object().MorphismsFromIDs, g.f.ID())
	assert.NotContains(t, mustGet(t, c, g.b.ID()).Object().MorphismsToIDs, g.f.ID())
	requireConsistent(t, c)
}

func TestDelete_RetractIdentityClearsObject(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, []string{"s1", "s2"})
	g := seedGraph(t, c)
	identityID := g.a.Object().IdentityMorphismID

	ok, err := c.Delete(ctx, identityID)
	require.NoError(t, err)
	require.True(t, ok)

	a := mustGet(t, c, g.a.ID()).Object()
	assert.Empty(t, a.IdentityMorphismID)
	assert.NotContains(t, a.MorphismsFromIDs, identityID)
	assert.NotContains(t, a.MorphismsToIDs, identityID)
	requireConsistent(t, c)
}

func TestDelete_RetractObject(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, []string{"s1", "s2"})
	g := seedGraph(t, c)

	ok, err := c.Delete(ctx, g.b.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{g.a.ID()}, mustGet(t, c, g.cat.ID()).Category().ObjectIDs)
}

func TestDelete_RetainLeavesDanglingIDs(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, []string{"s1", "s2"}, WithDeletePolicy(RetainBackReferences))
	g := seedGraph(t, c)

	ok, err := c.Delete(ctx, g.f.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, mustGet(t, c, g.cat.ID()).Category().MorphismIDs, g.f.ID())

	report, err := c.CheckBackReferences(ctx)
	require.NoError(t, err)
	require.False(t, report.Consistent())

	fields := map[string][]string{}
	for _, d := range report.Drifts {
		assert.Empty(t, d.Missing)
		fields[d.OwnerID+"."+d.Field] = d.Dangling
	}
	assert.Equal(t, map[string][]string{
		g.cat.ID() + ".morphism_ids":     {g.f.ID()},
		g.a.ID() + ".morphisms_from_ids": {g.f.ID()},
		g.b.ID() + ".morphisms_to_ids":   {g.f.ID()},
	}, fields)
}

func TestDelete_AbsentID(t *testing.T) {
	c, _ := newTestClient(t, []string{"s1"})
	ok, err := c.Delete(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckBackReferences_ReportsMissingEntries(t *testing.T) {
	ctx := context.Background()
	c, stores := newTestClient(t, []string{"s1"})
	cat, err := c.CreateCategory(ctx, "s1", CategorySpec{Name: "C"})
	require.NoError(t, err)

	// written straight to the store, bypassing back-reference maintenance
	stray, err := stores["s1"].Create(ctx, construct.TypeObject, &construct.ObjectData{CategoryID: cat.ID()}, store.CreateOptions{Name: "stray"})
	require.NoError(t, err)

	report, err := c.CheckBackReferences(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	d := report.Drifts[0]
	assert.Equal(t, cat.ID(), d.OwnerID)
	assert.Equal(t, construct.TypeCategory, d.OwnerType)
	assert.Equal(t, "object_ids", d.Field)
	assert.Equal(t, []string{stray.ID()}, d.Missing)
	assert.Contains(t, d.String(), "missing=")
	assert.Equal(t, 2, report.Checked)
}

func TestCheckBackReferences_ReportsBrokenIdentity(t *testing.T) {
	ctx := context.Background()
	c, stores := newTestClient(t, []string{"s1"})
	obj, err := stores["s1"].Create(ctx, construct.TypeObject, &construct.ObjectData{IdentityMorphismID: "ghost"}, store.CreateOptions{})
	require.NoError(t, err)

	report, err := c.CheckBackReferences(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, obj.ID(), report.Drifts[0].OwnerID)
	assert.Equal(t, "identity_morphism_id", report.Drifts[0].Field)
	assert.Contains(t, report.Drifts[0].Detail, "does not exist")
}
