// Package functor builds functors between two categories from partial,
// order-independent mapping declarations.
//
// Callers declare object mappings (manual) and morphism mappings. Every
// morphism mapping f -> g forces f's endpoints onto g's endpoints; those
// forced object mappings are derived. Derivation reruns before every query,
// Validate and Build, so declarations can arrive in any order. Build writes
// nothing unless the whole declaration set is consistent, and undoes its own
// writes when a store call fails partway.
package functor

import (
	"log/slog"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/engine"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/props"
	"github.com/roach88/catgraph/internal/query"
)

// Mapping is one declared or effective source -> target pair.
type Mapping struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// DerivedMapping is an object mapping forced by a morphism mapping.
type DerivedMapping struct {
	SourceID       string `json:"source_id"`
	TargetID       string `json:"target_id"`
	FromMorphismID string `json:"from_morphism_id"`
}

// Target is one candidate returned by the Available*Targets queries.
type Target struct {
	Construct *construct.Construct
	// Required is true when a morphism mapping forces this choice.
	Required bool
}

// Result is the outcome of Validate.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Builder accumulates mapping declarations for one functor.
//
// A Builder is for one logical caller. It stays usable after Build: further
// declarations and a second Build produce an independent functor.
type Builder struct {
	client *engine.Client
	query  *query.Engine
	fed    *federation.Context
	logger *slog.Logger

	storeID          string
	sourceCategoryID string
	targetCategoryID string
	name             string
	description      string
	properties       props.Object

	manual    *pairs
	morphisms *pairs

	cache *listing
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger overrides the logger inherited from the client.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// New creates an empty builder over client's federation.
func New(client *engine.Client, opts ...Option) *Builder {
	b := &Builder{
		client:    client,
		query:     client.Query(),
		fed:       client.Federation(),
		logger:    client.Logger(),
		manual:    newPairs(),
		morphisms: newPairs(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InStore selects the store the functor and its mapping rows are created in.
func (b *Builder) InStore(storeID string) *Builder {
	b.storeID = storeID
	return b
}

// From selects the source category and clears every declaration.
func (b *Builder) From(category construct.Ref) *Builder {
	b.sourceCategoryID = category.ID()
	b.reset()
	return b
}

// To selects the target category and clears every declaration.
func (b *Builder) To(category construct.Ref) *Builder {
	b.targetCategoryID = category.ID()
	b.reset()
	return b
}

// Named sets the functor's name.
func (b *Builder) Named(name string) *Builder {
	b.name = name
	return b
}

// Describe sets the functor's description.
func (b *Builder) Describe(description string) *Builder {
	b.description = description
	return b
}

// WithProperties sets the functor's properties.
func (b *Builder) WithProperties(p props.Object) *Builder {
	b.properties = p.Clone()
	return b
}

// SourceCategoryID returns the selected source category.
func (b *Builder) SourceCategoryID() string { return b.sourceCategoryID }

// TargetCategoryID returns the selected target category.
func (b *Builder) TargetCategoryID() string { return b.targetCategoryID }

// Refresh drops the cached category listings so the next query sees
// constructs created since they were loaded.
func (b *Builder) Refresh() {
	b.cache = nil
}

func (b *Builder) reset() {
	b.manual = newPairs()
	b.morphisms = newPairs()
	b.cache = nil
}

// MapMorphism declares source -> target. Nothing is checked until the next
// query, Validate or Build. Re-declaring a source replaces its target.
func (b *Builder) MapMorphism(source, target construct.Ref) *Builder {
	b.morphisms.set(source.ID(), target.ID())
	return b
}

// ObjectMappings returns the manual object mappings in declaration order.
func (b *Builder) ObjectMappings() []Mapping {
	return b.manual.list()
}

// MorphismMappings returns the declared morphism mappings in declaration
// order.
func (b *Builder) MorphismMappings() []Mapping {
	return b.morphisms.list()
}

// IsReady reports whether the store and both categories are selected.
func (b *Builder) IsReady() bool {
	return len(b.preconditions()) == 0
}

func (b *Builder) preconditions() []string {
	var problems []string
	if b.storeID == "" {
		problems = append(problems, "store is not set")
	}
	if b.sourceCategoryID == "" {
		problems = append(problems, "source category is not set")
	}
	if b.targetCategoryID == "" {
		problems = append(problems, "target category is not set")
	}
	return problems
}

// pairs is an insertion-ordered source -> target map. Overwriting a source
// keeps its original position.
type pairs struct {
	order   []string
	targets map[string]string
}

func newPairs() *pairs {
	return &pairs{targets: make(map[string]string)}
}

func (p *pairs) set(source, target string) {
	if _, ok := p.targets[source]; !ok {
		p.order = append(p.order, source)
	}
	p.targets[source] = target
}

func (p *pairs) get(source string) (string, bool) {
	t, ok := p.targets[source]
	return t, ok
}

func (p *pairs) list() []Mapping {
	out := make([]Mapping, 0, len(p.order))
	for _, s := range p.order {
		out = append(out, Mapping{SourceID: s, TargetID: p.targets[s]})
	}
	return out
}
