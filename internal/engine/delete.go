package engine

import (
	"context"
	"fmt"

	"github.com/roach88/catgraph/internal/construct"
)

// Delete removes the construct from its owning store and applies the
// client's DeletePolicy. It reports false when id resolves nowhere.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	target, s, err := c.query.Locate(ctx, id)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, nil
	}

	ok, err := s.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete %s from store %s: %w", id, s.ID(), err)
	}
	if !ok {
		return false, nil
	}
	c.logger.Info("deleted construct",
		"type", target.Type,
		"id", id,
		"store", s.ID(),
		"policy", c.deletePolicy,
	)

	if c.deletePolicy == RetainBackReferences {
		return true, nil
	}
	if err := c.retract(ctx, target); err != nil {
		return true, fmt.Errorf("retract back-references of %s: %w", id, err)
	}
	return true, nil
}

// retract removes a deleted construct's id from every array that listed it.
func (c *Client) retract(ctx context.Context, deleted *construct.Construct) error {
	id := deleted.ID()
	switch d := deleted.Data.(type) {
	case *construct.ObjectData:
		return c.removeBackRef(ctx, d.CategoryID, construct.TypeCategory, categoryObjects, id)

	case *construct.MorphismData:
		if err := c.removeBackRef(ctx, d.CategoryID, construct.TypeCategory, categoryMorphisms, id); err != nil {
			return err
		}
		if err := c.removeBackRef(ctx, d.SourceID, construct.TypeObject, objectMorphismsFrom, id); err != nil {
			return err
		}
		if err := c.removeBackRef(ctx, d.TargetID, construct.TypeObject, objectMorphismsTo, id); err != nil {
			return err
		}
		if !d.IsIdentity {
			return nil
		}
		return c.mutate(ctx, d.SourceID, construct.TypeObject, func(data construct.Data) bool {
			o := data.(*construct.ObjectData)
			if o.IdentityMorphismID != id {
				return false
			}
			o.IdentityMorphismID = ""
			return true
		})

	case *construct.FunctorData:
		if err := c.removeBackRef(ctx, d.SourceCategoryID, construct.TypeCategory, categoryFunctorsFrom, id); err != nil {
			return err
		}
		return c.removeBackRef(ctx, d.TargetCategoryID, construct.TypeCategory, categoryFunctorsTo, id)

	case *construct.ObjectMappingData:
		return c.removeBackRef(ctx, d.FunctorID, construct.TypeFunctor, functorObjectMappings, id)

	case *construct.MorphismMappingData:
		return c.removeBackRef(ctx, d.FunctorID, construct.TypeFunctor, functorMorphismMappings, id)
	}
	// categories are referenced by foreign keys only
	return nil
}
