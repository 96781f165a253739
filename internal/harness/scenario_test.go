package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_Fixtures(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/simple_extraction.yaml")
	require.NoError(t, err)

	assert.Equal(t, "simple_extraction", s.Name)
	assert.Contains(t, s.Graph, "morphism: u:")
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertFunctorValid, s.Assertions[0].Type)
	assert.Equal(t, 3, s.Assertions[1].Count)
	assert.Equal(t, "B", s.Assertions[3].Source)

	ids, def := s.storeIDs()
	assert.Equal(t, []string{DefaultStoreName}, ids)
	assert.Equal(t, DefaultStoreName, def)
}

func TestLoadScenario_ResolvesGraphFilesAgainstScenarioDir(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cross_store.yaml")
	require.NoError(t, err)

	require.Len(t, s.GraphFiles, 1)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "graphs", "cross_store.cue"), s.GraphFiles[0])

	ids, def := s.storeIDs()
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.Equal(t, "s1", def)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g.cue"), []byte("category: C: {}\n"), 0o644))

	path := writeScenario(t, t.TempDir(), `
name: based
description: graph file relative to another dir
graph_files: [g.cue]
assertions:
  - type: backrefs_consistent
`)
	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "g.cue")}, s.GraphFiles)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing name",
			body:    "description: d\ngraph: 'category: C: {}'\nassertions: [{type: backrefs_consistent}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			body:    "name: n\ngraph: 'category: C: {}'\nassertions: [{type: backrefs_consistent}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no graph",
			body:    "name: n\ndescription: d\nassertions: [{type: backrefs_consistent}]\n",
			wantErr: "graph or graph_files is required",
		},
		{
			name:    "no assertions",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown field",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "duplicate store",
			body:    "name: n\ndescription: d\nstores: [a, a]\ngraph: 'category: C: {}'\nassertions: [{type: backrefs_consistent}]\n",
			wantErr: `duplicate store "a"`,
		},
		{
			name:    "default store not listed",
			body:    "name: n\ndescription: d\nstores: [a]\ndefault_store: b\ngraph: 'category: C: {}'\nassertions: [{type: backrefs_consistent}]\n",
			wantErr: `default_store "b" is not listed`,
		},
		{
			name:    "missing graph file",
			body:    "name: n\ndescription: d\ngraph_files: [nope.cue]\nassertions: [{type: backrefs_consistent}]\n",
			wantErr: "graph file not found",
		},
		{
			name:    "unknown assertion type",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\nassertions: [{type: bogus, functor: F}]\n",
			wantErr: `unknown assertion type "bogus"`,
		},
		{
			name:    "functor required",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\nassertions: [{type: functor_valid}]\n",
			wantErr: "functor is required for functor_valid",
		},
		{
			name:    "errors_contain needs text",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\nassertions: [{type: errors_contain, functor: F}]\n",
			wantErr: "text is required for errors_contain",
		},
		{
			name:    "negative count",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\nassertions: [{type: object_mapping_count, functor: F, count: -1}]\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "maps_object needs both names",
			body:    "name: n\ndescription: d\ngraph: 'category: C: {}'\nassertions: [{type: maps_object, functor: F, source: A}]\n",
			wantErr: "source and target are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.body)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
