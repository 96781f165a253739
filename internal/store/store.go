package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/catgraph/internal/construct"
)

var (
	// ErrVersionConflict is returned by Update when IfVersion does not match
	// the stored version.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrNotFound is returned by Update when the id is absent.
	ErrNotFound = errors.New("store: construct not found")
)

// CreateOptions carries the metadata set at creation.
type CreateOptions struct {
	Name        string
	Description string
}

// UpdateOptions controls an update. Nil Name/Description leave the stored
// value unchanged. A non-zero IfVersion makes the update conditional.
type UpdateOptions struct {
	Name        *string
	Description *string
	IfVersion   int64
}

// Query filters Search. Zero fields match everything.
type Query struct {
	Type construct.Type
	Name string
}

// Matches reports whether c satisfies q.
func (q Query) Matches(c *construct.Construct) bool {
	if q.Type != "" && c.Type != q.Type {
		return false
	}
	if q.Name != "" && c.Metadata.Name != q.Name {
		return false
	}
	return true
}

// Store is the uniform backend contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// ID returns the store identifier stamped into every Signature.
	ID() string

	Create(ctx context.Context, t construct.Type, data construct.Data, opts CreateOptions) (*construct.Construct, error)

	// Read returns (nil, nil) when id is absent.
	Read(ctx context.Context, id string) (*construct.Construct, error)

	Update(ctx context.Context, id string, data construct.Data, opts UpdateOptions) (*construct.Construct, error)

	Delete(ctx context.Context, id string) (bool, error)

	// List returns every construct of type t in creation order.
	List(ctx context.Context, t construct.Type) ([]*construct.Construct, error)

	Search(ctx context.Context, q Query) ([]*construct.Construct, error)
}

// ApplyUpdate computes the construct that results from applying an update to
// current. Backends call it after any version check so the metadata rules
// stay identical across implementations.
func ApplyUpdate(current *construct.Construct, data construct.Data, opts UpdateOptions, clock Clock) *construct.Construct {
	next := current.Clone()
	next.Data = data.Clone()
	next.Signature.Version = current.Signature.Version + 1
	if opts.Name != nil {
		next.Metadata.Name = *opts.Name
	}
	if opts.Description != nil {
		next.Metadata.Description = *opts.Description
	}
	next.Metadata.UpdatedAt = clock.Now()
	return next
}

// CheckVersion returns ErrVersionConflict when opts.IfVersion is set and does
// not equal current.
func CheckVersion(current int64, opts UpdateOptions) error {
	if opts.IfVersion != 0 && opts.IfVersion != current {
		return ErrVersionConflict
	}
	return nil
}

// NewConstruct assembles a freshly created construct. It validates that data
// matches t.
func NewConstruct(storeID, id string, t construct.Type, data construct.Data, opts CreateOptions, clock Clock) (*construct.Construct, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("store: unknown construct type %q", t)
	}
	if data == nil {
		var err error
		if data, err = construct.NewData(t); err != nil {
			return nil, err
		}
	}
	if data.Kind() != t {
		return nil, NewPayloadMismatch(t, data)
	}
	now := clock.Now()
	return &construct.Construct{
		Signature: construct.Signature{ID: id, StoreID: storeID, Version: 1},
		Metadata: construct.Metadata{
			Name:        opts.Name,
			Description: opts.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Type: t,
		Data: data.Clone(),
	}, nil
}

// NewPayloadMismatch reports a payload whose kind differs from the construct
// type it is written under.
func NewPayloadMismatch(t construct.Type, data construct.Data) error {
	if data == nil {
		return fmt.Errorf("store: nil payload for %s", t)
	}
	return fmt.Errorf("store: %s payload does not match type %s", data.Kind(), t)
}
