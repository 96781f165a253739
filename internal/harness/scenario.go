package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a graph definition applied to
// fresh stores, followed by assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Stores lists the memory stores to attach, in attach order.
	// Defaults to a single store named "main".
	Stores []string `yaml:"stores,omitempty"`

	// DefaultStore receives constructs whose definition names no store.
	// Defaults to the first store.
	DefaultStore string `yaml:"default_store,omitempty"`

	// Graph is an inline CUE graph definition.
	Graph string `yaml:"graph,omitempty"`

	// GraphFiles lists CUE files unified with Graph. Relative paths are
	// resolved against the base path given at load time.
	GraphFiles []string `yaml:"graph_files,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of the applied graph.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Functor names the functor definition the assertion is about.
	Functor string `yaml:"functor,omitempty"`

	// Text is the substring searched by errors_contain.
	Text string `yaml:"text,omitempty"`

	// Count is the expected row count for the *_mapping_count types.
	Count int `yaml:"count,omitempty"`

	// Source and Target are object names for maps_object.
	Source string `yaml:"source,omitempty"`
	Target string `yaml:"target,omitempty"`
}

// Assertion type constants.
const (
	AssertFunctorValid         = "functor_valid"
	AssertFunctorInvalid       = "functor_invalid"
	AssertErrorsContain        = "errors_contain"
	AssertObjectMappingCount   = "object_mapping_count"
	AssertMorphismMappingCount = "morphism_mapping_count"
	AssertMapsObject           = "maps_object"
	AssertBackrefsConsistent   = "backrefs_consistent"
)

// DefaultStoreName is the store attached when a scenario lists none.
const DefaultStoreName = "main"

// LoadScenario reads and parses a scenario YAML file.
// Graph file paths are resolved against the scenario's own directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative graph file paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.GraphFiles {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.GraphFiles[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// storeIDs returns the stores to attach and the default store.
func (s *Scenario) storeIDs() ([]string, string) {
	ids := s.Stores
	if len(ids) == 0 {
		ids = []string{DefaultStoreName}
	}
	def := s.DefaultStore
	if def == "" {
		def = ids[0]
	}
	return ids, def
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Graph == "" && len(s.GraphFiles) == 0 {
		return fmt.Errorf("graph or graph_files is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for _, id := range s.Stores {
		if id == "" {
			return fmt.Errorf("stores: empty store name")
		}
		if seen[id] {
			return fmt.Errorf("stores: duplicate store %q", id)
		}
		seen[id] = true
	}
	if s.DefaultStore != "" && len(s.Stores) > 0 && !seen[s.DefaultStore] {
		return fmt.Errorf("default_store %q is not listed in stores", s.DefaultStore)
	}

	for _, p := range s.GraphFiles {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("graph file not found: %s", p)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBackrefsConsistent:
		return nil
	case AssertFunctorValid, AssertFunctorInvalid:
	case AssertErrorsContain:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for errors_contain", index)
		}
	case AssertObjectMappingCount, AssertMorphismMappingCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertMapsObject:
		if a.Source == "" || a.Target == "" {
			return fmt.Errorf("assertions[%d]: source and target are required for maps_object", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Functor == "" {
		return fmt.Errorf("assertions[%d]: functor is required for %s", index, a.Type)
	}
	return nil
}
