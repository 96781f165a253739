package memory

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New("mem")
	})
}

func TestConformance_Instrumented(t *testing.T) {
	m := store.NewMetrics(prometheus.NewRegistry())
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.Instrument(New("mem"), m)
	})
}

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return "id-" + string(rune('0'+g.n))
}

func TestNew_UsesInjectedIDs(t *testing.T) {
	s := New("mem", store.WithIDGenerator(&seqIDs{}))
	c, err := s.Create(context.Background(), construct.TypeCategory, nil, store.CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "id-1", c.ID())
	assert.Equal(t, 1, s.Len())
}

func TestInstrument_CountsCallsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := store.NewMetrics(reg)
	s := store.Instrument(New("mem"), m)
	ctx := context.Background()

	c, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{})
	require.NoError(t, err)
	_, err = s.Read(ctx, c.ID())
	require.NoError(t, err)
	_, err = s.Update(ctx, c.ID(), c.Data, store.UpdateOptions{IfVersion: 9})
	require.ErrorIs(t, err, store.ErrVersionConflict)
	_, err = s.Update(ctx, "missing", c.Data, store.UpdateOptions{})
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Calls.WithLabelValues("mem", "create", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Calls.WithLabelValues("mem", "read", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Calls.WithLabelValues("mem", "update", "conflict")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Calls.WithLabelValues("mem", "update", "error")))
	assert.Equal(t, 3, promtest.CollectAndCount(m.Duration))
}

func TestInstrument_NilMetricsReturnsInner(t *testing.T) {
	inner := New("mem")
	assert.Same(t, inner, store.Instrument(inner, nil))
}
