package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/props"
	"github.com/roach88/catgraph/internal/query"
	"github.com/roach88/catgraph/internal/store"
)

// DefaultMaxAppendAttempts bounds the compare-and-swap loop of one
// back-reference append.
const DefaultMaxAppendAttempts = 8

// DeletePolicy selects what Delete does to the arrays that reference the
// deleted construct.
type DeletePolicy int

const (
	// RetractBackReferences removes the deleted id from every array that
	// lists it.
	RetractBackReferences DeletePolicy = iota

	// RetainBackReferences leaves dangling ids in place.
	RetainBackReferences
)

// String returns the config spelling of the policy.
func (p DeletePolicy) String() string {
	switch p {
	case RetainBackReferences:
		return "retain"
	default:
		return "retract"
	}
}

// ParseDeletePolicy accepts "retract" or "retain".
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch s {
	case "", "retract":
		return RetractBackReferences, nil
	case "retain":
		return RetainBackReferences, nil
	default:
		return 0, fmt.Errorf("unknown delete policy %q (want retract or retain)", s)
	}
}

// Client creates, reads and deletes constructs while keeping back-references
// and identity morphisms consistent.
//
// A Client is meant for one logical caller at a time, but concurrent
// callers do not lose back-reference appends.
type Client struct {
	fed               *federation.Context
	query             *query.Engine
	logger            *slog.Logger
	deletePolicy      DeletePolicy
	maxAppendAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDeletePolicy sets the delete policy. Default: RetractBackReferences.
func WithDeletePolicy(p DeletePolicy) Option {
	return func(c *Client) {
		c.deletePolicy = p
	}
}

// WithMaxAppendAttempts bounds the compare-and-swap retries per append.
//
// Default: 8 (DefaultMaxAppendAttempts)
func WithMaxAppendAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAppendAttempts = n
		}
	}
}

// New creates a Client over fed.
func New(fed *federation.Context, opts ...Option) *Client {
	c := &Client{
		fed:               fed,
		logger:            slog.Default(),
		deletePolicy:      RetractBackReferences,
		maxAppendAttempts: DefaultMaxAppendAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.query = query.New(fed, query.WithLogger(c.logger))
	return c
}

// Query returns the federated query engine the client uses for lookups.
func (c *Client) Query() *query.Engine { return c.query }

// Federation returns the client's federation context.
func (c *Client) Federation() *federation.Context { return c.fed }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// CategorySpec describes a category to create.
type CategorySpec struct {
	Name        string
	Description string
	Properties  props.Object
}

// ObjectSpec describes an object to create. CategoryID may be empty.
type ObjectSpec struct {
	Name        string
	Description string
	CategoryID  string
	Properties  props.Object
}

// MorphismSpec describes a morphism to create.
type MorphismSpec struct {
	Name        string
	Description string
	SourceID    string
	TargetID    string
	CategoryID  string
	Properties  props.Object
}

// FunctorSpec describes a functor to create. Mapping rows are added
// separately, usually through functor.Builder.
type FunctorSpec struct {
	Name             string
	Description      string
	SourceCategoryID string
	TargetCategoryID string
	Properties       props.Object
}

// Get resolves any id across the federation. Absent ids return nil.
func (c *Client) Get(ctx context.Context, id string) (*construct.Construct, error) {
	return c.query.Get(ctx, id)
}

func (c *Client) create(ctx context.Context, storeID string, data construct.Data, name, description string) (*construct.Construct, error) {
	s, err := c.fed.Store(storeID)
	if err != nil {
		return nil, err
	}
	created, err := s.Create(ctx, data.Kind(), data, store.CreateOptions{Name: name, Description: description})
	if err != nil {
		return nil, fmt.Errorf("create %s in store %s: %w", data.Kind(), storeID, err)
	}
	c.logger.Debug("created construct",
		"type", created.Type,
		"id", created.ID(),
		"store", storeID,
		"name", name,
	)
	return created, nil
}

// CreateCategory creates a category with empty back-reference arrays.
func (c *Client) CreateCategory(ctx context.Context, storeID string, spec CategorySpec) (*construct.Construct, error) {
	return c.create(ctx, storeID, &construct.CategoryData{
		Properties: spec.Properties.Clone(),
	}, spec.Name, spec.Description)
}

// CreateObject creates an object together with its identity morphism.
//
// Steps: create the object, list it on its category, create the identity
// morphism in the same store and category, record it as the object's
// identity, then re-read and return the object.
func (c *Client) CreateObject(ctx context.Context, storeID string, spec ObjectSpec) (*construct.Construct, error) {
	obj, err := c.create(ctx, storeID, &construct.ObjectData{
		CategoryID: spec.CategoryID,
		Properties: spec.Properties.Clone(),
	}, spec.Name, spec.Description)
	if err != nil {
		return nil, err
	}

	if spec.CategoryID != "" {
		if err := c.appendBackRef(ctx, spec.CategoryID, construct.TypeCategory, categoryObjects, obj.ID()); err != nil {
			return nil, err
		}
	}

	identity, err := c.createMorphism(ctx, storeID, MorphismSpec{
		Name:       IdentityName(obj),
		SourceID:   obj.ID(),
		TargetID:   obj.ID(),
		CategoryID: spec.CategoryID,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("create identity for %s: %w", obj.ID(), err)
	}

	err = c.mutate(ctx, obj.ID(), construct.TypeObject, func(d construct.Data) bool {
		o := d.(*construct.ObjectData)
		if o.IdentityMorphismID == identity.ID() {
			return false
		}
		o.IdentityMorphismID = identity.ID()
		return true
	})
	if err != nil {
		return nil, err
	}

	return c.reread(ctx, storeID, obj.ID())
}

// IdentityName is the name given to an object's identity morphism:
// id_<name>, or id_<objectID> when the object is unnamed.
func IdentityName(obj *construct.Construct) string {
	if obj.Name() != "" {
		return "id_" + obj.Name()
	}
	return "id_" + obj.ID()
}

// CreateMorphism creates a morphism and lists it on its category, its
// source object and its target object.
func (c *Client) CreateMorphism(ctx context.Context, storeID string, spec MorphismSpec) (*construct.Construct, error) {
	m, err := c.createMorphism(ctx, storeID, spec, false)
	if err != nil {
		return nil, err
	}
	return c.reread(ctx, storeID, m.ID())
}

func (c *Client) createMorphism(ctx context.Context, storeID string, spec MorphismSpec, identity bool) (*construct.Construct, error) {
	m, err := c.create(ctx, storeID, &construct.MorphismData{
		SourceID:   spec.SourceID,
		TargetID:   spec.TargetID,
		CategoryID: spec.CategoryID,
		Properties: spec.Properties.Clone(),
		IsIdentity: identity,
	}, spec.Name, spec.Description)
	if err != nil {
		return nil, err
	}

	if spec.CategoryID != "" {
		if err := c.appendBackRef(ctx, spec.CategoryID, construct.TypeCategory, categoryMorphisms, m.ID()); err != nil {
			return nil, err
		}
	}
	if err := c.appendBackRef(ctx, spec.SourceID, construct.TypeObject, objectMorphismsFrom, m.ID()); err != nil {
		return nil, err
	}
	if err := c.appendBackRef(ctx, spec.TargetID, construct.TypeObject, objectMorphismsTo, m.ID()); err != nil {
		return nil, err
	}
	return m, nil
}

// CreateFunctor creates a functor and lists it on both categories.
//
// When listing fails after the functor was stored, the stored functor is
// returned together with the error so the caller can delete it.
func (c *Client) CreateFunctor(ctx context.Context, storeID string, spec FunctorSpec) (*construct.Construct, error) {
	f, err := c.create(ctx, storeID, &construct.FunctorData{
		SourceCategoryID: spec.SourceCategoryID,
		TargetCategoryID: spec.TargetCategoryID,
		Properties:       spec.Properties.Clone(),
	}, spec.Name, spec.Description)
	if err != nil {
		return nil, err
	}

	if err := c.appendBackRef(ctx, spec.SourceCategoryID, construct.TypeCategory, categoryFunctorsFrom, f.ID()); err != nil {
		return f, err
	}
	if err := c.appendBackRef(ctx, spec.TargetCategoryID, construct.TypeCategory, categoryFunctorsTo, f.ID()); err != nil {
		return f, err
	}
	return c.reread(ctx, storeID, f.ID())
}

// AddObjectMapping creates one source-object to target-object row and lists
// it on the functor. Like CreateFunctor it returns the stored row with the
// error when listing fails.
func (c *Client) AddObjectMapping(ctx context.Context, storeID, functorID, sourceObjectID, targetObjectID string) (*construct.Construct, error) {
	row, err := c.create(ctx, storeID, &construct.ObjectMappingData{
		FunctorID:      functorID,
		SourceObjectID: sourceObjectID,
		TargetObjectID: targetObjectID,
	}, "", "")
	if err != nil {
		return nil, err
	}
	if err := c.appendBackRef(ctx, functorID, construct.TypeFunctor, functorObjectMappings, row.ID()); err != nil {
		return row, err
	}
	return row, nil
}

// AddMorphismMapping creates one source-morphism to target-morphism row and
// lists it on the functor. The stored row is returned with a listing error.
func (c *Client) AddMorphismMapping(ctx context.Context, storeID, functorID, sourceMorphismID, targetMorphismID string) (*construct.Construct, error) {
	row, err := c.create(ctx, storeID, &construct.MorphismMappingData{
		FunctorID:        functorID,
		SourceMorphismID: sourceMorphismID,
		TargetMorphismID: targetMorphismID,
	}, "", "")
	if err != nil {
		return nil, err
	}
	if err := c.appendBackRef(ctx, functorID, construct.TypeFunctor, functorMorphismMappings, row.ID()); err != nil {
		return row, err
	}
	return row, nil
}

// reread fetches the current version of a construct from its store.
func (c *Client) reread(ctx context.Context, storeID, id string) (*construct.Construct, error) {
	s, err := c.fed.Store(storeID)
	if err != nil {
		return nil, err
	}
	got, err := s.Read(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("re-read %s: %w", id, err)
	}
	if got == nil {
		return nil, construct.NewNotFoundError("", id)
	}
	return got, nil
}
