package functor

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/engine"
)

// Build validates the declarations and, when they are consistent, writes
// the functor and its mapping rows:
//
//  1. the Functor itself;
//  2. one ObjectMapping per effective object mapping;
//  3. one MorphismMapping per declared morphism mapping;
//  4. id_A -> id_X for every effective A -> X whose objects both have an
//     identity, unless id_A already has a row.
//
// The functor is re-read and returned with its back-references current.
// When a write fails, everything Build created is deleted again in reverse
// order and rollback failures are joined onto the returned error.
func (b *Builder) Build(ctx context.Context) (*construct.Construct, error) {
	d, err := b.derive(ctx)
	if err != nil {
		return nil, err
	}
	if res := b.result(d); !res.Valid {
		if len(d.conflicts) > 0 {
			return nil, construct.NewConflictError(res.Errors)
		}
		return nil, construct.NewPreconditionError(res.Errors)
	}
	for _, id := range []string{b.sourceCategoryID, b.targetCategoryID} {
		c, err := b.query.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil || c.Type != construct.TypeCategory {
			return nil, construct.NewNotFoundError(construct.TypeCategory, id)
		}
	}

	w := &buildWriter{b: b}
	fn, err := w.write(ctx, d)
	if err != nil {
		return nil, w.rollback(ctx, err)
	}
	b.logger.Info("built functor",
		"id", fn.ID(),
		"store", b.storeID,
		"object_mappings", len(fn.Functor().ObjectMappingIDs),
		"morphism_mappings", len(fn.Functor().MorphismMappingIDs),
	)
	return fn, nil
}

// buildWriter carries the undo log of one Build.
type buildWriter struct {
	b       *Builder
	created []string
}

// record logs c for rollback. Engine writes return the stored construct
// even when a later back-reference step failed, so c is recorded before the
// error is looked at. A nil c means nothing was stored.
func (w *buildWriter) record(c *construct.Construct) {
	if c != nil {
		w.created = append(w.created, c.ID())
	}
}

func (w *buildWriter) write(ctx context.Context, d *derivation) (*construct.Construct, error) {
	b := w.b
	fn, err := b.client.CreateFunctor(ctx, b.storeID, engine.FunctorSpec{
		Name:             b.name,
		Description:      b.description,
		SourceCategoryID: b.sourceCategoryID,
		TargetCategoryID: b.targetCategoryID,
		Properties:       b.properties,
	})
	w.record(fn)
	if err != nil {
		return nil, err
	}

	objects := b.effective(d)
	for _, m := range objects {
		row, err := b.client.AddObjectMapping(ctx, b.storeID, fn.ID(), m.SourceID, m.TargetID)
		w.record(row)
		if err != nil {
			return nil, err
		}
	}

	mapped := make(map[string]bool)
	for _, m := range b.morphisms.list() {
		row, err := b.client.AddMorphismMapping(ctx, b.storeID, fn.ID(), m.SourceID, m.TargetID)
		w.record(row)
		if err != nil {
			return nil, err
		}
		mapped[m.SourceID] = true
	}

	for _, m := range objects {
		srcID, err := b.identityOf(ctx, m.SourceID)
		if err != nil {
			return nil, err
		}
		tgtID, err := b.identityOf(ctx, m.TargetID)
		if err != nil {
			return nil, err
		}
		if srcID == "" || tgtID == "" || mapped[srcID] {
			continue
		}
		row, err := b.client.AddMorphismMapping(ctx, b.storeID, fn.ID(), srcID, tgtID)
		w.record(row)
		if err != nil {
			return nil, err
		}
		mapped[srcID] = true
	}

	built, err := b.client.Get(ctx, fn.ID())
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, construct.NewNotFoundError(construct.TypeFunctor, fn.ID())
	}
	return built, nil
}

// identityOf returns the identity morphism id of an object, or "" when the
// object or its identity is absent.
func (b *Builder) identityOf(ctx context.Context, objectID string) (string, error) {
	c, err := b.query.Get(ctx, objectID)
	if err != nil {
		return "", err
	}
	if c == nil || c.Type != construct.TypeObject {
		b.logger.Debug("no identity to map", "object", objectID)
		return "", nil
	}
	return c.Object().IdentityMorphismID, nil
}

// rollback deletes the undo log newest first. It runs even when ctx is
// cancelled.
func (w *buildWriter) rollback(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	errs := []error{fmt.Errorf("build functor: %w", cause)}
	for i := len(w.created) - 1; i >= 0; i-- {
		id := w.created[i]
		if _, err := w.b.client.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", id, err))
		}
	}
	w.b.logger.Warn("rolled back partial functor build",
		"created", len(w.created),
		"rollback_errors", len(errs)-1,
		"cause", cause,
	)
	return errors.Join(errs...)
}
