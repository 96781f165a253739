package query

import (
	"context"

	"github.com/roach88/catgraph/internal/construct"
)

// ObjectsInCategory returns every object whose CategoryID is categoryID.
func (e *Engine) ObjectsInCategory(ctx context.Context, categoryID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeObject, func(c *construct.Construct) bool {
		return c.Object().CategoryID == categoryID
	})
}

// ObjectInCategory returns the object when it exists and belongs to
// categoryID, nil otherwise.
func (e *Engine) ObjectInCategory(ctx context.Context, categoryID, objectID string) (*construct.Construct, error) {
	c, err := e.getTyped(ctx, objectID, construct.TypeObject)
	if err != nil || c == nil || c.Object().CategoryID != categoryID {
		return nil, err
	}
	return c, nil
}

// MorphismsInCategory returns every morphism whose CategoryID is categoryID,
// identities included.
func (e *Engine) MorphismsInCategory(ctx context.Context, categoryID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeMorphism, func(c *construct.Construct) bool {
		return c.Morphism().CategoryID == categoryID
	})
}

// MorphismInCategory returns the morphism when it exists and belongs to
// categoryID, nil otherwise.
func (e *Engine) MorphismInCategory(ctx context.Context, categoryID, morphismID string) (*construct.Construct, error) {
	c, err := e.getTyped(ctx, morphismID, construct.TypeMorphism)
	if err != nil || c == nil || c.Morphism().CategoryID != categoryID {
		return nil, err
	}
	return c, nil
}

// MorphismsFrom returns morphisms whose SourceID is objectID.
func (e *Engine) MorphismsFrom(ctx context.Context, objectID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeMorphism, func(c *construct.Construct) bool {
		return c.Morphism().SourceID == objectID
	})
}

// MorphismsTo returns morphisms whose TargetID is objectID.
func (e *Engine) MorphismsTo(ctx context.Context, objectID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeMorphism, func(c *construct.Construct) bool {
		return c.Morphism().TargetID == objectID
	})
}

// SourceObject resolves the morphism's source object.
func (e *Engine) SourceObject(ctx context.Context, morphismID string) (*construct.Construct, error) {
	m, err := e.getTyped(ctx, morphismID, construct.TypeMorphism)
	if err != nil || m == nil {
		return nil, err
	}
	return e.getTyped(ctx, m.Morphism().SourceID, construct.TypeObject)
}

// TargetObject resolves the morphism's target object.
func (e *Engine) TargetObject(ctx context.Context, morphismID string) (*construct.Construct, error) {
	m, err := e.getTyped(ctx, morphismID, construct.TypeMorphism)
	if err != nil || m == nil {
		return nil, err
	}
	return e.getTyped(ctx, m.Morphism().TargetID, construct.TypeObject)
}

// FunctorsFrom returns functors whose source category is categoryID.
func (e *Engine) FunctorsFrom(ctx context.Context, categoryID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeFunctor, func(c *construct.Construct) bool {
		return c.Functor().SourceCategoryID == categoryID
	})
}

// FunctorsTo returns functors whose target category is categoryID.
func (e *Engine) FunctorsTo(ctx context.Context, categoryID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeFunctor, func(c *construct.Construct) bool {
		return c.Functor().TargetCategoryID == categoryID
	})
}

// ObjectMappings returns the functor's object mapping rows.
func (e *Engine) ObjectMappings(ctx context.Context, functorID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeObjectMapping, func(c *construct.Construct) bool {
		return c.ObjectMapping().FunctorID == functorID
	})
}

// MorphismMappings returns the functor's morphism mapping rows.
func (e *Engine) MorphismMappings(ctx context.Context, functorID string) ([]*construct.Construct, error) {
	return e.scan(ctx, construct.TypeMorphismMapping, func(c *construct.Construct) bool {
		return c.MorphismMapping().FunctorID == functorID
	})
}

// SourceObjects resolves every object that appears as a mapping source.
func (e *Engine) SourceObjects(ctx context.Context, functorID string) ([]*construct.Construct, error) {
	rows, err := e.ObjectMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ObjectMapping().SourceObjectID
	}
	return e.resolveAll(ctx, ids)
}

// TargetObjects resolves the distinct mapping targets in order of first
// occurrence.
func (e *Engine) TargetObjects(ctx context.Context, functorID string) ([]*construct.Construct, error) {
	rows, err := e.ObjectMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ObjectMapping().TargetObjectID)
	}
	return e.resolveAll(ctx, distinct(ids))
}

// TargetObjectFor returns the image of sourceObjectID, or nil when unmapped.
func (e *Engine) TargetObjectFor(ctx context.Context, functorID, sourceObjectID string) (*construct.Construct, error) {
	rows, err := e.ObjectMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if m := r.ObjectMapping(); m.SourceObjectID == sourceObjectID {
			return e.Get(ctx, m.TargetObjectID)
		}
	}
	return nil, nil
}

// SourceObjectsFor returns the full preimage of targetObjectID.
func (e *Engine) SourceObjectsFor(ctx context.Context, functorID, targetObjectID string) ([]*construct.Construct, error) {
	rows, err := e.ObjectMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range rows {
		if m := r.ObjectMapping(); m.TargetObjectID == targetObjectID {
			ids = append(ids, m.SourceObjectID)
		}
	}
	return e.resolveAll(ctx, ids)
}

// SourceMorphisms resolves every morphism that appears as a mapping source.
func (e *Engine) SourceMorphisms(ctx context.Context, functorID string) ([]*construct.Construct, error) {
	rows, err := e.MorphismMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.MorphismMapping().SourceMorphismID
	}
	return e.resolveAll(ctx, ids)
}

// TargetMorphisms resolves the distinct mapping targets in order of first
// occurrence.
func (e *Engine) TargetMorphisms(ctx context.Context, functorID string) ([]*construct.Construct, error) {
	rows, err := e.MorphismMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.MorphismMapping().TargetMorphismID)
	}
	return e.resolveAll(ctx, distinct(ids))
}

// TargetMorphismFor returns the image of sourceMorphismID, or nil when
// unmapped.
func (e *Engine) TargetMorphismFor(ctx context.Context, functorID, sourceMorphismID string) (*construct.Construct, error) {
	rows, err := e.MorphismMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if m := r.MorphismMapping(); m.SourceMorphismID == sourceMorphismID {
			return e.Get(ctx, m.TargetMorphismID)
		}
	}
	return nil, nil
}

// SourceMorphismsFor returns the full preimage of targetMorphismID.
func (e *Engine) SourceMorphismsFor(ctx context.Context, functorID, targetMorphismID string) ([]*construct.Construct, error) {
	rows, err := e.MorphismMappings(ctx, functorID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range rows {
		if m := r.MorphismMapping(); m.TargetMorphismID == targetMorphismID {
			ids = append(ids, m.SourceMorphismID)
		}
	}
	return e.resolveAll(ctx, ids)
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
