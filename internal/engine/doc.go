// Package engine implements graph maintenance: the Client through which
// every construct is created and deleted.
//
// Creating a construct is one logical operation made of several store
// calls. The primary construct is written first, then the id is appended to
// the back-reference arrays of every construct it points at, and for objects
// an identity morphism is created and linked.
//
// BACK-REFERENCES:
//
// Appends are compare-and-swap loops. The owner is re-read, the id is added
// if missing, and the write is conditional on the version that was read.
// A version conflict restarts the loop, so concurrent appends to one owner
// never lose updates. An owner that cannot be located in any attached store
// is skipped with a warning; creation still succeeds, because callers may
// create constructs before attaching the store that holds their category.
//
// DELETION:
//
// Delete removes only the named construct. With RetractBackReferences (the
// default) its id is also removed from the arrays that referenced it.
// RetainBackReferences leaves those arrays untouched. Neither policy
// cascades to dependent constructs.
package engine
