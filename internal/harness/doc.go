// Package harness runs conformance scenarios against the construct graph
// engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: simple_extraction
//	description: "Mapping u and v onto themselves derives three object mappings"
//	stores: [s1, s2]
//	default_store: s1
//	graph: |
//	  category: C: {
//	    object: A: {}
//	    object: B: {}
//	    morphism: u: {from: "A", to: "B"}
//	  }
//	  functor: F: {from: "C", to: "C", morphisms: {u: "u"}}
//	graph_files:
//	  - shared/categories.cue
//	assertions:
//	  - type: functor_valid
//	    functor: F
//	  - type: object_mapping_count
//	    functor: F
//	    count: 2
//	  - type: maps_object
//	    functor: F
//	    source: A
//	    target: A
//	  - type: backrefs_consistent
//
// # Assertion Types
//
//   - functor_valid: the functor validated and was built
//   - functor_invalid: the functor failed validation and was not built
//   - errors_contain: one of the functor's validation errors contains text
//   - object_mapping_count: the built functor has exactly count object rows
//   - morphism_mapping_count: the built functor has exactly count morphism rows
//   - maps_object: the built functor maps object source to object target
//   - backrefs_consistent: every back-reference array matches its foreign keys
//
// # Deterministic Testing
//
// Every run gets fresh memory stores, sequential ids prefixed with the store
// name and a testutil.DeterministicClock, so the same scenario always
// produces the same ids. RunWithGolden relies on this to compare a
// canonical JSON snapshot of the outcome against testdata/golden.
package harness
