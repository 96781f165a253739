package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/catgraph/internal/graphspec"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Functor  string // Functor the assertion was about, if any
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Functor != "" {
		fmt.Fprintf(&buf, " (functor %s)", e.Functor)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s\n", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the applied graph.
// Returns one message per failed assertion.
func (h *Harness) EvaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFunctorValid:
			err = h.assertFunctorValid(a, true)
		case AssertFunctorInvalid:
			err = h.assertFunctorValid(a, false)
		case AssertErrorsContain:
			err = h.assertErrorsContain(a)
		case AssertObjectMappingCount:
			err = h.assertMappingCount(ctx, a, true)
		case AssertMorphismMappingCount:
			err = h.assertMappingCount(ctx, a, false)
		case AssertMapsObject:
			err = h.assertMapsObject(ctx, a)
		case AssertBackrefsConsistent:
			err = h.assertBackrefsConsistent(ctx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func (h *Harness) functor(a Assertion) (graphspec.FunctorOutcome, error) {
	outcome, ok := h.outcome.Functor(a.Functor)
	if !ok {
		return outcome, &AssertionError{
			Type:     a.Type,
			Functor:  a.Functor,
			Expected: "functor defined in the graph",
			Actual:   "no such functor",
		}
	}
	return outcome, nil
}

// builtFunctor is like functor but fails unless the functor was built.
func (h *Harness) builtFunctor(a Assertion) (graphspec.FunctorOutcome, error) {
	outcome, err := h.functor(a)
	if err != nil {
		return outcome, err
	}
	if !outcome.Valid {
		return outcome, &AssertionError{
			Type:     a.Type,
			Functor:  a.Functor,
			Expected: "built functor",
			Actual:   fmt.Sprintf("functor was not built: %v", outcome.Errors),
		}
	}
	return outcome, nil
}

func (h *Harness) assertFunctorValid(a Assertion, want bool) error {
	outcome, err := h.functor(a)
	if err != nil {
		return err
	}
	if outcome.Valid == want {
		return nil
	}
	actual := "valid"
	if !outcome.Valid {
		actual = fmt.Sprintf("invalid: %v", outcome.Errors)
	}
	return &AssertionError{
		Type:     a.Type,
		Functor:  a.Functor,
		Expected: fmt.Sprintf("valid=%t", want),
		Actual:   actual,
	}
}

func (h *Harness) assertErrorsContain(a Assertion) error {
	outcome, err := h.functor(a)
	if err != nil {
		return err
	}
	for _, msg := range outcome.Errors {
		if strings.Contains(msg, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Functor:  a.Functor,
		Expected: fmt.Sprintf("an error containing %q", a.Text),
		Actual:   fmt.Sprintf("%v", outcome.Errors),
	}
}

func (h *Harness) assertMappingCount(ctx context.Context, a Assertion, objects bool) error {
	outcome, err := h.builtFunctor(a)
	if err != nil {
		return err
	}
	q := h.client.Query()
	rows, err := q.ObjectMappings(ctx, outcome.ID)
	if !objects {
		rows, err = q.MorphismMappings(ctx, outcome.ID)
	}
	if err != nil {
		return err
	}
	if len(rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Functor:  a.Functor,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(rows)),
	}
}

func (h *Harness) assertMapsObject(ctx context.Context, a Assertion) error {
	outcome, err := h.builtFunctor(a)
	if err != nil {
		return err
	}
	def := h.functorDef(a.Functor)
	sourceID := h.outcome.Objects[def.From][a.Source]
	targetID := h.outcome.Objects[def.To][a.Target]
	if sourceID == "" || targetID == "" {
		return &AssertionError{
			Type:     a.Type,
			Functor:  a.Functor,
			Expected: fmt.Sprintf("objects %s.%s and %s.%s", def.From, a.Source, def.To, a.Target),
			Actual:   "object not defined in the graph",
		}
	}

	image, err := h.client.Query().TargetObjectFor(ctx, outcome.ID, sourceID)
	if err != nil {
		return err
	}
	if image != nil && image.ID() == targetID {
		return nil
	}
	actual := "unmapped"
	if image != nil {
		actual = "maps to " + image.Name()
	}
	return &AssertionError{
		Type:     a.Type,
		Functor:  a.Functor,
		Expected: fmt.Sprintf("%s maps to %s", a.Source, a.Target),
		Actual:   actual,
	}
}

func (h *Harness) assertBackrefsConsistent(ctx context.Context) error {
	report, err := h.client.CheckBackReferences(ctx)
	if err != nil {
		return err
	}
	if report.Consistent() {
		return nil
	}
	drifts := make([]string, len(report.Drifts))
	for i, d := range report.Drifts {
		drifts[i] = d.String()
	}
	return &AssertionError{
		Type:     AssertBackrefsConsistent,
		Expected: "no drift",
		Actual:   strings.Join(drifts, "; "),
	}
}

func (h *Harness) functorDef(name string) graphspec.FunctorDef {
	for _, f := range h.plan.Functors {
		if f.Name == name {
			return f
		}
	}
	return graphspec.FunctorDef{}
}
