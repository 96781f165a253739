// Package query answers relational questions over the union of every store
// in a federation.
//
// There is no index. Each operator is a linear scan of List(type) across
// the attached stores, optionally followed by point Reads. Results keep each
// store's listing order, and stores are visited in attach order.
//
// Absent ids produce nil or an empty slice, never an error. Errors are
// returned only when a store call fails.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/store"
)

// Engine is a stateless set of federated operators.
type Engine struct {
	fed    *federation.Context
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-scan debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over fed.
func New(fed *federation.Context, opts ...Option) *Engine {
	e := &Engine{fed: fed, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Federation returns the context the engine scans.
func (e *Engine) Federation() *federation.Context { return e.fed }

// Get resolves any id by reading each store in attach order. The first hit
// wins.
func (e *Engine) Get(ctx context.Context, id string) (*construct.Construct, error) {
	c, _, err := e.Locate(ctx, id)
	return c, err
}

// Locate is Get that also returns the owning store.
func (e *Engine) Locate(ctx context.Context, id string) (*construct.Construct, store.Store, error) {
	if id == "" {
		return nil, nil, nil
	}
	for _, s := range e.fed.Stores() {
		c, err := s.Read(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s from store %s: %w", id, s.ID(), err)
		}
		if c != nil {
			return c, s, nil
		}
	}
	return nil, nil, nil
}

// List concatenates every store's listing of type t.
func (e *Engine) List(ctx context.Context, t construct.Type) ([]*construct.Construct, error) {
	out := []*construct.Construct{}
	for _, s := range e.fed.Stores() {
		cs, err := s.List(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("list %s from store %s: %w", t, s.ID(), err)
		}
		out = append(out, cs...)
	}
	e.logger.Debug("federated list", "type", t, "count", len(out))
	return out, nil
}

// Search runs q against every store and concatenates the results.
func (e *Engine) Search(ctx context.Context, q store.Query) ([]*construct.Construct, error) {
	out := []*construct.Construct{}
	for _, s := range e.fed.Stores() {
		cs, err := s.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search store %s: %w", s.ID(), err)
		}
		out = append(out, cs...)
	}
	return out, nil
}

// scan lists type t and keeps constructs accepted by keep.
func (e *Engine) scan(ctx context.Context, t construct.Type, keep func(*construct.Construct) bool) ([]*construct.Construct, error) {
	all, err := e.List(ctx, t)
	if err != nil {
		return nil, err
	}
	out := []*construct.Construct{}
	for _, c := range all {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// getTyped resolves id and returns it only if it has type t.
func (e *Engine) getTyped(ctx context.Context, id string, t construct.Type) (*construct.Construct, error) {
	c, err := e.Get(ctx, id)
	if err != nil || c == nil || c.Type != t {
		return nil, err
	}
	return c, nil
}

// resolveAll resolves ids in order, skipping ids that resolve nowhere.
func (e *Engine) resolveAll(ctx context.Context, ids []string) ([]*construct.Construct, error) {
	out := []*construct.Construct{}
	for _, id := range ids {
		c, err := e.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}
