package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/config"
	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/graphspec"
)

const chainGraph = `category: C: {
	object: A: {}
	object: B: {}
	morphism: f: {from: "A", to: "B"}
	morphism: g: {from: "A", to: "B"}
}
functor: F: {
	from: "C"
	to:   "C"
	morphisms: {f: "f", g: "g"}
}
`

const conflictingGraph = `category: S: {
	object: x: {}
	object: y: {}
	object: z: {}
	morphism: f: {from: "x", to: "y"}
	morphism: h: {from: "x", to: "z"}
}
category: T: {
	object: a: {}
	object: b: {}
	object: c: {}
	object: d: {}
	morphism: g: {from: "a", to: "b"}
	morphism: k: {from: "c", to: "d"}
}
functor: Bad: {
	from: "S"
	to:   "T"
	morphisms: {f: "g", h: "k"}
}
`

// workspace is a temp dir holding a config with one sqlite store and a
// graph definition.
type workspace struct {
	dir    string
	config string
	db     string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvLogLevel, "")

	ws := &workspace{
		dir:    dir,
		config: filepath.Join(dir, "catgraph.toml"),
		db:     filepath.Join(dir, "graph.db"),
	}
	body := "[[stores]]\nid = \"local\"\ndriver = \"sqlite\"\npath = \"" + filepath.ToSlash(ws.db) + "\"\n"
	require.NoError(t, os.WriteFile(ws.config, []byte(body), 0644))
	return ws
}

func (ws *workspace) writeGraph(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(ws.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// run executes the root command with the workspace config and returns
// stdout.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", ws.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// apply loads chainGraph and returns the ids it created.
func (ws *workspace) apply(t *testing.T) graphspec.ApplyResult {
	t.Helper()
	path := ws.writeGraph(t, "chain.cue", chainGraph)
	out, err := ws.run(t, "apply", path, "--format", "json")
	require.NoError(t, err, out)

	var resp struct {
		Status string                `json:"status"`
		Data   graphspec.ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func decodeList(t *testing.T, out string) []construct.Construct {
	t.Helper()
	var resp struct {
		Status string                `json:"status"`
		Data   []construct.Construct `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestApply(t *testing.T) {
	ws := newWorkspace(t)
	res := ws.apply(t)

	require.Contains(t, res.Categories, "C")
	assert.Len(t, res.Objects["C"], 2)
	assert.Len(t, res.Morphisms["C"], 2)
	fn, ok := res.Functor("F")
	require.True(t, ok)
	assert.True(t, fn.Valid)
	assert.NotEmpty(t, fn.ID)

	_, err := os.Stat(ws.db)
	assert.NoError(t, err)
}

func TestApply_Text(t *testing.T) {
	ws := newWorkspace(t)
	path := ws.writeGraph(t, "chain.cue", chainGraph)

	out, err := ws.run(t, "apply", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Categories: 1")
	assert.Contains(t, out, "✓ functor F")
}

func TestApply_InvalidFunctor(t *testing.T) {
	ws := newWorkspace(t)
	path := ws.writeGraph(t, "bad.cue", conflictingGraph)

	out, err := ws.run(t, "apply", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string                `json:"status"`
		Data   graphspec.ApplyResult `json:"data"`
		Error  *Problem             `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeFunctorInvalid, resp.Error.Code)
	fn, ok := resp.Data.Functor("Bad")
	require.True(t, ok)
	assert.False(t, fn.Valid)
	assert.Empty(t, fn.ID)
	require.Len(t, fn.Errors, 1)
	assert.Contains(t, fn.Errors[0], "must map to both")
}

func TestApply_LoadErrors(t *testing.T) {
	ws := newWorkspace(t)
	notCue := ws.writeGraph(t, "graph.txt", chainGraph)

	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"missing path", filepath.Join(ws.dir, "absent.cue"), ErrCodeNotFound},
		{"not a cue file", notCue, ErrCodeGeneric},
		{"empty directory", t.TempDir(), ErrCodeNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ws.run(t, "apply", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestApply_BadConfig(t *testing.T) {
	ws := newWorkspace(t)
	path := ws.writeGraph(t, "chain.cue", chainGraph)
	require.NoError(t, os.WriteFile(ws.config, []byte("[log]\nlevel = \"loud\"\n"), 0644))

	out, err := ws.run(t, "apply", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeConfig+"]")
}

func TestValidate_NeverOpensStores(t *testing.T) {
	ws := newWorkspace(t)
	path := ws.writeGraph(t, "chain.cue", chainGraph)

	out, err := ws.run(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Graph valid")

	_, err = os.Stat(ws.db)
	assert.True(t, os.IsNotExist(err))
}

func TestValidate_InvalidFunctor(t *testing.T) {
	ws := newWorkspace(t)
	path := ws.writeGraph(t, "bad.cue", conflictingGraph)

	out, err := ws.run(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ functor Bad")
	assert.NotContains(t, out, "Graph valid")
}

func TestGet(t *testing.T) {
	ws := newWorkspace(t)
	res := ws.apply(t)
	a := res.Objects["C"]["A"]

	out, err := ws.run(t, "get", a)
	require.NoError(t, err)
	assert.Contains(t, out, "object "+a)
	assert.Contains(t, out, "store:   local")
	assert.Contains(t, out, "name:    A")

	out, err = ws.run(t, "get", a, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data construct.Construct `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "A", resp.Data.Name())
	assert.Len(t, resp.Data.Object().MorphismsFromIDs, 3)
}

func TestGet_Missing(t *testing.T) {
	ws := newWorkspace(t)
	ws.apply(t)

	out, err := ws.run(t, "get", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeMissing+"]")
}

func TestList(t *testing.T) {
	ws := newWorkspace(t)
	ws.apply(t)

	out, err := ws.run(t, "list", "object", "--format", "json")
	require.NoError(t, err)
	assert.Len(t, decodeList(t, out), 2)

	out, err = ws.run(t, "list", "object", "--name", "B", "--format", "json")
	require.NoError(t, err)
	objects := decodeList(t, out)
	require.Len(t, objects, 1)
	assert.Equal(t, "B", objects[0].Name())

	out, err = ws.run(t, "list", "category")
	require.NoError(t, err)
	assert.Contains(t, out, "category")
	assert.Contains(t, out, "local")
}

func TestList_UnknownType(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "list", "widget")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeBadArgument+"]")
}

func TestQuery(t *testing.T) {
	ws := newWorkspace(t)
	res := ws.apply(t)
	cat := res.Categories["C"]
	a, b := res.Objects["C"]["A"], res.Objects["C"]["B"]
	f := res.Morphisms["C"]["f"]
	fn, _ := res.Functor("F")

	out, err := ws.run(t, "query", "objects-in-category", cat, "--format", "json")
	require.NoError(t, err)
	assert.Len(t, decodeList(t, out), 2)

	out, err = ws.run(t, "query", "target-object", f, "--format", "json")
	require.NoError(t, err)
	target := decodeList(t, out)
	require.Len(t, target, 1)
	assert.Equal(t, b, target[0].ID())

	out, err = ws.run(t, "query", "target-object-for", fn.ID, a, "--format", "json")
	require.NoError(t, err)
	mapped := decodeList(t, out)
	require.Len(t, mapped, 1)
	assert.Equal(t, a, mapped[0].ID())

	// Unresolvable ids yield an empty result.
	out, err = ws.run(t, "query", "source-object", "nope", "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeList(t, out))
}

func TestQuery_BadArguments(t *testing.T) {
	ws := newWorkspace(t)

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"unknown operator", []string{"query", "everything", "x"}, `unknown operator "everything"`},
		{"wrong arity", []string{"query", "target-object-for", "x"}, "target-object-for takes <functor-id> <id>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ws.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.wantMsg)
		})
	}
}

func TestOperatorHelp(t *testing.T) {
	help := operatorHelp()
	assert.Len(t, strings.Split(strings.TrimSpace(help), "\n"), len(operators))
	assert.Contains(t, help, "source-morphisms-for")
}

func TestDeleteAndCheck(t *testing.T) {
	ws := newWorkspace(t)
	res := ws.apply(t)

	out, err := ws.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "0 drift(s)")

	// retract keeps the graph consistent
	f := res.Morphisms["C"]["f"]
	out, err = ws.run(t, "delete", f)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ deleted "+f)

	_, err = ws.run(t, "check")
	require.NoError(t, err)

	// retain leaves g listed by its category and objects
	g := res.Morphisms["C"]["g"]
	_, err = ws.run(t, "delete", g, "--policy", "retain")
	require.NoError(t, err)

	out, err = ws.run(t, "check", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Error  *Problem `json:"error"`
		Data   struct {
			Drifts []struct {
				OwnerID  string   `json:"owner_id"`
				Dangling []string `json:"dangling"`
			} `json:"drifts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeDrift, resp.Error.Code)
	require.NotEmpty(t, resp.Data.Drifts)
	for _, d := range resp.Data.Drifts {
		assert.Equal(t, []string{g}, d.Dangling)
	}
}

func TestDelete_Missing(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "delete", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "not found in any attached store")
}

func TestDelete_BadPolicy(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "delete", "x", "--policy", "cascade")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
