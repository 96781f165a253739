package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/catgraph/internal/construct"
)

// Metrics holds the collectors shared by every instrumented store.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the store collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catgraph",
			Subsystem: "store",
			Name:      "calls_total",
			Help:      "Store boundary calls by store, operation and result.",
		}, []string{"store", "op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "catgraph",
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "Store boundary call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Calls, m.Duration)
	}
	return m
}

// Instrument wraps s so every call is counted and timed.
func Instrument(s Store, m *Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{inner: s, m: m}
}

type instrumented struct {
	inner Store
	m     *Metrics
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrVersionConflict):
		result = "conflict"
	default:
		result = "error"
	}
	i.m.Calls.WithLabelValues(i.inner.ID(), op, result).Inc()
	i.m.Duration.WithLabelValues(i.inner.ID(), op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) ID() string { return i.inner.ID() }

func (i *instrumented) Create(ctx context.Context, t construct.Type, data construct.Data, opts CreateOptions) (*construct.Construct, error) {
	start := time.Now()
	c, err := i.inner.Create(ctx, t, data, opts)
	i.observe("create", start, err)
	return c, err
}

func (i *instrumented) Read(ctx context.Context, id string) (*construct.Construct, error) {
	start := time.Now()
	c, err := i.inner.Read(ctx, id)
	i.observe("read", start, err)
	return c, err
}

func (i *instrumented) Update(ctx context.Context, id string, data construct.Data, opts UpdateOptions) (*construct.Construct, error) {
	start := time.Now()
	c, err := i.inner.Update(ctx, id, data, opts)
	i.observe("update", start, err)
	return c, err
}

func (i *instrumented) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := i.inner.Delete(ctx, id)
	i.observe("delete", start, err)
	return ok, err
}

func (i *instrumented) List(ctx context.Context, t construct.Type) ([]*construct.Construct, error) {
	start := time.Now()
	cs, err := i.inner.List(ctx, t)
	i.observe("list", start, err)
	return cs, err
}

func (i *instrumented) Search(ctx context.Context, q Query) ([]*construct.Construct, error) {
	start := time.Now()
	cs, err := i.inner.Search(ctx, q)
	i.observe("search", start, err)
	return cs, err
}
