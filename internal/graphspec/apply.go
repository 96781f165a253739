package graphspec

import (
	"context"
	"fmt"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/engine"
	"github.com/roach88/catgraph/internal/functor"
)

// ApplyOptions controls where Apply writes.
type ApplyOptions struct {
	// DefaultStore receives every construct whose definition names no store.
	DefaultStore string
}

// ApplyResult maps the names of a Plan to the ids Apply created.
type ApplyResult struct {
	Categories map[string]string            `json:"categories"`
	Objects    map[string]map[string]string `json:"objects"`
	Morphisms  map[string]map[string]string `json:"morphisms"`
	Functors   []FunctorOutcome             `json:"functors"`
}

// FunctorOutcome reports one functor definition. Invalid functors are not
// built and carry the validation errors instead of an id.
type FunctorOutcome struct {
	Name   string   `json:"name"`
	ID     string   `json:"id,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Functor returns the outcome of the named functor.
func (r *ApplyResult) Functor(name string) (FunctorOutcome, bool) {
	for _, f := range r.Functors {
		if f.Name == name {
			return f, true
		}
	}
	return FunctorOutcome{}, false
}

// Apply creates every category, object and morphism of plan in declaration
// order, then builds each functor through a functor.Builder. Store errors
// abort; functor validation failures are reported in the result.
func Apply(ctx context.Context, client *engine.Client, plan *Plan, opts ApplyOptions) (*ApplyResult, error) {
	res := &ApplyResult{
		Categories: make(map[string]string),
		Objects:    make(map[string]map[string]string),
		Morphisms:  make(map[string]map[string]string),
		Functors:   []FunctorOutcome{},
	}
	logger := client.Logger()

	for _, cd := range plan.Categories {
		storeID, err := pickStore(opts.DefaultStore, cd.Store)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cd.Name, err)
		}
		cat, err := client.CreateCategory(ctx, storeID, engine.CategorySpec{
			Name:        cd.Name,
			Description: cd.Description,
			Properties:  cd.Properties,
		})
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cd.Name, err)
		}
		res.Categories[cd.Name] = cat.ID()
		res.Objects[cd.Name] = make(map[string]string)
		res.Morphisms[cd.Name] = make(map[string]string)

		for _, od := range cd.Objects {
			storeID, err := pickStore(opts.DefaultStore, cd.Store, od.Store)
			if err != nil {
				return nil, fmt.Errorf("object %s.%s: %w", cd.Name, od.Name, err)
			}
			obj, err := client.CreateObject(ctx, storeID, engine.ObjectSpec{
				Name:        od.Name,
				Description: od.Description,
				CategoryID:  cat.ID(),
				Properties:  od.Properties,
			})
			if err != nil {
				return nil, fmt.Errorf("object %s.%s: %w", cd.Name, od.Name, err)
			}
			res.Objects[cd.Name][od.Name] = obj.ID()
		}

		for _, md := range cd.Morphisms {
			storeID, err := pickStore(opts.DefaultStore, cd.Store, md.Store)
			if err != nil {
				return nil, fmt.Errorf("morphism %s.%s: %w", cd.Name, md.Name, err)
			}
			m, err := client.CreateMorphism(ctx, storeID, engine.MorphismSpec{
				Name:        md.Name,
				Description: md.Description,
				SourceID:    res.Objects[cd.Name][md.From],
				TargetID:    res.Objects[cd.Name][md.To],
				CategoryID:  cat.ID(),
				Properties:  md.Properties,
			})
			if err != nil {
				return nil, fmt.Errorf("morphism %s.%s: %w", cd.Name, md.Name, err)
			}
			res.Morphisms[cd.Name][md.Name] = m.ID()
		}
		logger.Info("applied category",
			"name", cd.Name,
			"id", cat.ID(),
			"objects", len(cd.Objects),
			"morphisms", len(cd.Morphisms),
		)
	}

	for _, fd := range plan.Functors {
		outcome, err := applyFunctor(ctx, client, plan, res, fd, opts)
		if err != nil {
			return nil, fmt.Errorf("functor %s: %w", fd.Name, err)
		}
		res.Functors = append(res.Functors, outcome)
	}
	return res, nil
}

func applyFunctor(ctx context.Context, client *engine.Client, plan *Plan, res *ApplyResult, fd FunctorDef, opts ApplyOptions) (FunctorOutcome, error) {
	src, _ := plan.Category(fd.From)
	storeID, err := pickStore(opts.DefaultStore, src.Store, fd.Store)
	if err != nil {
		return FunctorOutcome{}, err
	}

	b := functor.New(client).
		InStore(storeID).
		From(construct.ByID(res.Categories[fd.From])).
		To(construct.ByID(res.Categories[fd.To])).
		Named(fd.Name).
		Describe(fd.Description).
		WithProperties(fd.Properties)

	// Object declarations go first so a disagreement with a morphism
	// mapping is reported by Validate instead of failing MapObject.
	for _, p := range fd.Objects {
		source := construct.ByID(res.Objects[fd.From][p.Source])
		target := construct.ByID(res.Objects[fd.To][p.Target])
		if err := b.MapObject(ctx, source, target); err != nil {
			return FunctorOutcome{}, err
		}
	}
	for _, p := range fd.Morphisms {
		b.MapMorphism(
			construct.ByID(res.Morphisms[fd.From][p.Source]),
			construct.ByID(res.Morphisms[fd.To][p.Target]),
		)
	}

	outcome := FunctorOutcome{Name: fd.Name, Errors: []string{}}
	v, err := b.Validate(ctx)
	if err != nil {
		return FunctorOutcome{}, err
	}
	if !v.Valid {
		outcome.Errors = v.Errors
		client.Logger().Warn("functor definition is invalid, not built",
			"name", fd.Name,
			"errors", len(v.Errors),
		)
		return outcome, nil
	}

	fn, err := b.Build(ctx)
	if err != nil {
		return FunctorOutcome{}, err
	}
	outcome.ID = fn.ID()
	outcome.Valid = true
	return outcome, nil
}

// pickStore returns the last non-empty candidate, falling back to def.
func pickStore(def string, candidates ...string) (string, error) {
	storeID := def
	for _, c := range candidates {
		if c != "" {
			storeID = c
		}
	}
	if storeID == "" {
		return "", fmt.Errorf("no store named and no default store configured")
	}
	return storeID, nil
}
