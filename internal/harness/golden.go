package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/catgraph/internal/props"
)

// snapshot captures what the scenario built in a form that only depends on
// the scenario: names, deterministic ids and mapping rows by name.
func (h *Harness) snapshot(ctx context.Context, name string) (props.Object, error) {
	categories := props.Object{}
	for n, id := range h.outcome.Categories {
		categories[n] = props.String(id)
	}

	functors := props.Array{}
	for _, f := range h.outcome.Functors {
		entry := props.Object{
			"name":   props.String(f.Name),
			"valid":  props.Bool(f.Valid),
			"errors": stringArray(f.Errors),
		}
		if f.Valid {
			entry["id"] = props.String(f.ID)
			objects, err := h.mappingLines(ctx, f.ID, true)
			if err != nil {
				return nil, err
			}
			morphisms, err := h.mappingLines(ctx, f.ID, false)
			if err != nil {
				return nil, err
			}
			entry["object_mappings"] = objects
			entry["morphism_mappings"] = morphisms
		}
		functors = append(functors, entry)
	}

	return props.Object{
		"scenario":   props.String(name),
		"categories": categories,
		"functors":   functors,
	}, nil
}

// mappingLines renders a functor's rows as "source -> target" by construct
// name, in row order.
func (h *Harness) mappingLines(ctx context.Context, functorID string, objects bool) (props.Array, error) {
	q := h.client.Query()
	rows, err := q.ObjectMappings(ctx, functorID)
	if !objects {
		rows, err = q.MorphismMappings(ctx, functorID)
	}
	if err != nil {
		return nil, err
	}

	lines := props.Array{}
	for _, r := range rows {
		var src, tgt string
		if objects {
			src, tgt = r.ObjectMapping().SourceObjectID, r.ObjectMapping().TargetObjectID
		} else {
			src, tgt = r.MorphismMapping().SourceMorphismID, r.MorphismMapping().TargetMorphismID
		}
		srcName, err := h.nameOf(ctx, src)
		if err != nil {
			return nil, err
		}
		tgtName, err := h.nameOf(ctx, tgt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, props.String(srcName+" -> "+tgtName))
	}
	return lines, nil
}

func (h *Harness) nameOf(ctx context.Context, id string) (string, error) {
	c, err := h.client.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if c == nil || c.Name() == "" {
		return id, nil
	}
	return c.Name(), nil
}

func stringArray(ss []string) props.Array {
	arr := make(props.Array, len(ss))
	for i, s := range ss {
		arr[i] = props.String(s)
	}
	return arr
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A snapshot mismatch fails t
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// SnapshotJSON returns the canonical JSON that golden files hold.
func SnapshotJSON(result *Result) ([]byte, error) {
	return props.MarshalCanonical(result.Snapshot)
}
