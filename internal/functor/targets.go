package functor

import (
	"context"

	"github.com/roach88/catgraph/internal/construct"
)

// listing caches both categories' members for the Available*Targets
// queries. It is tied to the federation generation it was loaded under.
type listing struct {
	generation      uint64
	sourceObjects   []*construct.Construct
	sourceMorphisms []*construct.Construct
	targetObjects   []*construct.Construct
	targetMorphisms []*construct.Construct
}

func (b *Builder) listing(ctx context.Context) (*listing, error) {
	if problems := b.categoryPreconditions(); len(problems) > 0 {
		return nil, construct.NewPreconditionError(problems)
	}
	gen := b.fed.Generation()
	if b.cache != nil && b.cache.generation == gen {
		return b.cache, nil
	}

	l := &listing{generation: gen}
	var err error
	if l.sourceObjects, err = b.query.ObjectsInCategory(ctx, b.sourceCategoryID); err != nil {
		return nil, err
	}
	if l.sourceMorphisms, err = b.query.MorphismsInCategory(ctx, b.sourceCategoryID); err != nil {
		return nil, err
	}
	if l.targetObjects, err = b.query.ObjectsInCategory(ctx, b.targetCategoryID); err != nil {
		return nil, err
	}
	if l.targetMorphisms, err = b.query.MorphismsInCategory(ctx, b.targetCategoryID); err != nil {
		return nil, err
	}
	b.logger.Debug("loaded functor category listings",
		"source", b.sourceCategoryID,
		"target", b.targetCategoryID,
		"generation", gen,
	)
	b.cache = l
	return l, nil
}

func (b *Builder) categoryPreconditions() []string {
	var problems []string
	if b.sourceCategoryID == "" {
		problems = append(problems, "source category is not set")
	}
	if b.targetCategoryID == "" {
		problems = append(problems, "target category is not set")
	}
	return problems
}

func find(cs []*construct.Construct, id string) *construct.Construct {
	for _, c := range cs {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

func notInSourceCategory(t construct.Type, id string) error {
	return &construct.Error{
		Code:    construct.ErrCodeNotFound,
		Message: string(t) + " is not in the source category",
		ID:      id,
	}
}

// AvailableObjectTargets lists the legal images of a source-category
// object. A derived mapping yields exactly one required target. Otherwise
// every target-category object is offered.
func (b *Builder) AvailableObjectTargets(ctx context.Context, source construct.Ref) ([]Target, error) {
	l, err := b.listing(ctx)
	if err != nil {
		return nil, err
	}
	id := source.ID()
	if find(l.sourceObjects, id) == nil {
		return nil, notInSourceCategory(construct.TypeObject, id)
	}

	d, err := b.derive(ctx)
	if err != nil {
		return nil, err
	}
	if derived, ok := d.bySource[id]; ok {
		target := find(l.targetObjects, derived.TargetID)
		if target == nil {
			if target, err = b.query.Get(ctx, derived.TargetID); err != nil {
				return nil, err
			}
		}
		if target == nil {
			return nil, construct.NewNotFoundError(construct.TypeObject, derived.TargetID)
		}
		return []Target{{Construct: target, Required: true}}, nil
	}

	out := make([]Target, 0, len(l.targetObjects))
	for _, o := range l.targetObjects {
		out = append(out, Target{Construct: o})
	}
	return out, nil
}

// AvailableMorphismTargets lists the non-identity target-category morphisms
// whose endpoints agree with the effective mappings of source's endpoints.
// An unmapped endpoint does not filter. Identities are never offered because
// Build maps them from the object mappings.
func (b *Builder) AvailableMorphismTargets(ctx context.Context, source construct.Ref) ([]Target, error) {
	l, err := b.listing(ctx)
	if err != nil {
		return nil, err
	}
	id := source.ID()
	f := find(l.sourceMorphisms, id)
	if f == nil {
		return nil, notInSourceCategory(construct.TypeMorphism, id)
	}

	d, err := b.derive(ctx)
	if err != nil {
		return nil, err
	}
	effective := make(map[string]string)
	for _, m := range b.effective(d) {
		effective[m.SourceID] = m.TargetID
	}
	wantSource := effective[f.Morphism().SourceID]
	wantTarget := effective[f.Morphism().TargetID]

	out := []Target{}
	for _, g := range l.targetMorphisms {
		gd := g.Morphism()
		if gd.IsIdentity {
			continue
		}
		if wantSource != "" && gd.SourceID != wantSource {
			continue
		}
		if wantTarget != "" && gd.TargetID != wantTarget {
			continue
		}
		out = append(out, Target{Construct: g})
	}
	return out, nil
}
