package graphspec

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Source is one CUE document. Filename only labels positions in errors.
type Source struct {
	Filename string
	Data     string
}

// CompileSource compiles one CUE document.
func CompileSource(src, filename string) (*Plan, error) {
	return CompileSources(Source{Filename: filename, Data: src})
}

// CompileSources unifies the documents in order and compiles the result.
// Documents must not carry package clauses that disagree.
func CompileSources(srcs ...Source) (*Plan, error) {
	if len(srcs) == 0 {
		return nil, &CompileError{Field: "cue", Message: "no graph sources"}
	}
	ctx := cuecontext.New()
	v := ctx.CompileString(srcs[0].Data, cue.Filename(srcs[0].Filename))
	for _, src := range srcs[1:] {
		v = v.Unify(ctx.CompileString(src.Data, cue.Filename(src.Filename)))
	}
	return Compile(v)
}

// LoadFiles reads and compiles the given CUE files as one definition.
func LoadFiles(paths ...string) (*Plan, error) {
	srcs, err := ReadSources(paths...)
	if err != nil {
		return nil, err
	}
	return CompileSources(srcs...)
}

// ReadSources reads CUE files for CompileSources.
func ReadSources(paths ...string) ([]Source, error) {
	srcs := make([]Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read graph file: %w", err)
		}
		srcs = append(srcs, Source{Filename: p, Data: string(data)})
	}
	return srcs, nil
}

// LoadDir loads every .cue file of the package in dir and compiles the
// unified value.
func LoadDir(dir string) (*Plan, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("graph directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("access graph directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError("cue", inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError("cue", err)
	}
	return Compile(v)
}

// FindCUEFiles lists the .cue files directly in dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}
