package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainGraph = `
category: C: {
	object: A: {}
	object: B: {}
	object: C: {}
	morphism: u: {from: "A", to: "B"}
	morphism: v: {from: "B", to: "C"}
}
functor: F: {
	from: "C"
	to:   "C"
	morphisms: {u: "u", v: "v"}
}
`

func chainScenario(assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "chain",
		Description: "chain",
		Graph:       chainGraph,
		Assertions:  assertions,
	}
}

func TestRun_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_FailingAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "valid functor asserted invalid",
			assertion: Assertion{Type: AssertFunctorInvalid, Functor: "F"},
			want:      "Expected: valid=false",
		},
		{
			name:      "unknown functor",
			assertion: Assertion{Type: AssertFunctorValid, Functor: "G"},
			want:      "no such functor",
		},
		{
			name:      "errors_contain on a clean functor",
			assertion: Assertion{Type: AssertErrorsContain, Functor: "F", Text: "conflict"},
			want:      `an error containing "conflict"`,
		},
		{
			name:      "object count",
			assertion: Assertion{Type: AssertObjectMappingCount, Functor: "F", Count: 4},
			want:      "Actual: 3 rows",
		},
		{
			name:      "morphism count",
			assertion: Assertion{Type: AssertMorphismMappingCount, Functor: "F", Count: 2},
			want:      "Actual: 5 rows",
		},
		{
			name:      "wrong image",
			assertion: Assertion{Type: AssertMapsObject, Functor: "F", Source: "A", Target: "B"},
			want:      "Actual: maps to A",
		},
		{
			name:      "undefined object",
			assertion: Assertion{Type: AssertMapsObject, Functor: "F", Source: "Z", Target: "A"},
			want:      "object not defined in the graph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(chainScenario(tt.assertion))
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "Assertion failed: "+tt.assertion.Type)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestRun_InvalidFunctorIsReportedNotBuilt(t *testing.T) {
	s := &Scenario{
		Name:        "bad",
		Description: "manual mapping disagrees with u",
		Graph: `
category: C: {
	object: A: {}
	object: B: {}
	morphism: u: {from: "A", to: "B"}
}
functor: F: {
	from: "C"
	to:   "C"
	objects: {A: "B"}
	morphisms: {u: "u"}
}
`,
		Assertions: []Assertion{
			{Type: AssertFunctorInvalid, Functor: "F"},
			{Type: AssertErrorsContain, Functor: "F", Text: "is manually mapped to"},
			{Type: AssertBackrefsConsistent},
			{Type: AssertObjectMappingCount, Functor: "F", Count: 0},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	// only the count fails: it needs a built functor
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "functor was not built")

	functors := result.Snapshot["functors"]
	require.NotNil(t, functors)
}

func TestRun_MultipleFailuresAreAllReported(t *testing.T) {
	result, err := Run(chainScenario(
		Assertion{Type: AssertFunctorInvalid, Functor: "F"},
		Assertion{Type: AssertBackrefsConsistent},
		Assertion{Type: AssertObjectMappingCount, Functor: "F", Count: 0},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_CompileErrorAborts(t *testing.T) {
	s := chainScenario(Assertion{Type: AssertBackrefsConsistent})
	s.Graph = `functor: F: {from: "Nope", to: "Nope"}`

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile graph")
}

func TestRun_UnknownStoreAborts(t *testing.T) {
	s := chainScenario(Assertion{Type: AssertBackrefsConsistent})
	s.Graph = `category: C: {store: "elsewhere"}`

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply graph")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cross_store.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := SnapshotJSON(first)
	require.NoError(t, err)
	b, err := SnapshotJSON(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertMapsObject,
		Functor:  "F",
		Expected: "A maps to B",
		Actual:   "unmapped",
	}
	assert.Equal(t,
		"Assertion failed: maps_object (functor F)\n  Expected: A maps to B\n  Actual: unmapped\n",
		err.Error())

	noFunctor := &AssertionError{Type: AssertBackrefsConsistent, Expected: "no drift", Actual: "x"}
	assert.Equal(t,
		"Assertion failed: backrefs_consistent\n  Expected: no drift\n  Actual: x\n",
		noFunctor.Error())
}
