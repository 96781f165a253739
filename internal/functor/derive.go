package functor

import (
	"context"
	"fmt"

	"github.com/roach88/catgraph/internal/construct"
)

// derivation is one run of the derivation pass over the current
// declarations.
type derivation struct {
	order    []string
	bySource map[string]DerivedMapping

	conflicts  []string
	unresolved []string
}

func (d *derivation) propose(source, target, fromMorphism string) {
	if prev, ok := d.bySource[source]; ok {
		if prev.TargetID != target {
			d.addConflict(fmt.Sprintf("object %s must map to both %s (from morphism %s) and %s (from morphism %s)",
				source, prev.TargetID, prev.FromMorphismID, target, fromMorphism))
		}
		return
	}
	d.order = append(d.order, source)
	d.bySource[source] = DerivedMapping{SourceID: source, TargetID: target, FromMorphismID: fromMorphism}
}

func (d *derivation) addConflict(msg string) {
	for _, c := range d.conflicts {
		if c == msg {
			return
		}
	}
	d.conflicts = append(d.conflicts, msg)
}

func (d *derivation) list() []DerivedMapping {
	out := make([]DerivedMapping, 0, len(d.order))
	for _, s := range d.order {
		out = append(out, d.bySource[s])
	}
	return out
}

// derive recomputes the derived object mappings from the declared morphism
// mappings and checks them against the manual ones. Only store failures are
// returned as errors; conflicts and unresolvable morphisms are recorded.
func (b *Builder) derive(ctx context.Context) (*derivation, error) {
	d := &derivation{bySource: make(map[string]DerivedMapping)}

	for _, m := range b.morphisms.list() {
		f, err := b.morphism(ctx, m.SourceID)
		if err != nil {
			return nil, err
		}
		g, err := b.morphism(ctx, m.TargetID)
		if err != nil {
			return nil, err
		}
		if f == nil || g == nil {
			missing := m.SourceID
			if f != nil {
				missing = m.TargetID
			}
			d.unresolved = append(d.unresolved,
				fmt.Sprintf("morphism mapping %s -> %s: morphism %s not found", m.SourceID, m.TargetID, missing))
			continue
		}
		fd, gd := f.Morphism(), g.Morphism()
		d.propose(fd.SourceID, gd.SourceID, f.ID())
		d.propose(fd.TargetID, gd.TargetID, f.ID())
	}

	for _, m := range b.manual.list() {
		derived, ok := d.bySource[m.SourceID]
		if ok && derived.TargetID != m.TargetID {
			d.addConflict(manualConflict(m.SourceID, m.TargetID, derived))
		}
	}
	return d, nil
}

func manualConflict(source, manualTarget string, derived DerivedMapping) string {
	return fmt.Sprintf("object %s is manually mapped to %s but morphism mapping %s requires %s",
		source, manualTarget, derived.FromMorphismID, derived.TargetID)
}

// morphism resolves id and returns it only when it is a morphism.
func (b *Builder) morphism(ctx context.Context, id string) (*construct.Construct, error) {
	c, err := b.query.Get(ctx, id)
	if err != nil || c == nil || c.Type != construct.TypeMorphism {
		return nil, err
	}
	return c, nil
}

// effective merges derived and manual mappings: manual sources first in
// declaration order, then derived-only sources in derivation order. A
// derived target wins over a manual one.
func (b *Builder) effective(d *derivation) []Mapping {
	out := make([]Mapping, 0, len(d.order)+len(b.manual.order))
	seen := make(map[string]bool, cap(out))
	for _, m := range b.manual.list() {
		if derived, ok := d.bySource[m.SourceID]; ok {
			m.TargetID = derived.TargetID
		}
		out = append(out, m)
		seen[m.SourceID] = true
	}
	for _, s := range d.order {
		if seen[s] {
			continue
		}
		out = append(out, Mapping{SourceID: s, TargetID: d.bySource[s].TargetID})
	}
	return out
}

// MapObject declares a manual object mapping. It fails with a
// ConstraintConflict error when a morphism mapping already forces source
// onto a different target. Re-declaring a source replaces its target.
func (b *Builder) MapObject(ctx context.Context, source, target construct.Ref) error {
	d, err := b.derive(ctx)
	if err != nil {
		return err
	}
	src, tgt := source.ID(), target.ID()
	if derived, ok := d.bySource[src]; ok && derived.TargetID != tgt {
		return construct.NewConflictError([]string{manualConflict(src, tgt, derived)})
	}
	b.manual.set(src, tgt)
	return nil
}

// DerivedObjectMappings returns the object mappings forced by the declared
// morphism mappings, each tagged with the morphism that first forced it.
func (b *Builder) DerivedObjectMappings(ctx context.Context) ([]DerivedMapping, error) {
	d, err := b.derive(ctx)
	if err != nil {
		return nil, err
	}
	return d.list(), nil
}

// EffectiveObjectMappings returns what Build would write as ObjectMapping
// rows.
func (b *Builder) EffectiveObjectMappings(ctx context.Context) ([]Mapping, error) {
	d, err := b.derive(ctx)
	if err != nil {
		return nil, err
	}
	return b.effective(d), nil
}

// Validate reruns derivation and collects every problem: unset fields,
// unresolvable morphisms and conflicts, in that order.
func (b *Builder) Validate(ctx context.Context) (Result, error) {
	d, err := b.derive(ctx)
	if err != nil {
		return Result{}, err
	}
	return b.result(d), nil
}

func (b *Builder) result(d *derivation) Result {
	errs := []string{}
	errs = append(errs, b.preconditions()...)
	errs = append(errs, d.unresolved...)
	errs = append(errs, d.conflicts...)
	return Result{Valid: len(errs) == 0, Errors: errs}
}
