package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/catgraph/internal/engine"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/graphspec"
	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/memory"
	"github.com/roach88/catgraph/internal/testutil"
)

// Harness is one scenario execution: the stores it ran against, the
// compiled graph and the apply outcome.
type Harness struct {
	client  *engine.Client
	plan    *graphspec.Plan
	outcome *graphspec.ApplyResult
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Attach fresh memory stores with sequential ids and a deterministic clock
//  2. Compile the inline graph unified with the graph files
//  3. Apply the graph through the engine (functors via the builder)
//  4. Evaluate assertions and take the snapshot
//
// An error is returned only when the scenario cannot run at all: a compile
// failure or a store failure during apply. Failed assertions are reported in
// the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	ids, def := scenario.storeIDs()

	clock := testutil.NewDeterministicClock()
	fed, err := federation.New()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s := memory.New(id,
			store.WithIDGenerator(testutil.NewSequentialIDs(id)),
			store.WithClock(clock),
		)
		if err := fed.Attach(s); err != nil {
			return nil, fmt.Errorf("failed to attach store: %w", err)
		}
	}

	// Suppress logs in scenario runs
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		client: engine.New(fed, engine.WithLogger(logger)),
		logger: logger,
	}

	h.plan, err = compile(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}
	h.outcome, err = graphspec.Apply(ctx, h.client, h.plan, graphspec.ApplyOptions{DefaultStore: def})
	if err != nil {
		return nil, fmt.Errorf("failed to apply graph: %w", err)
	}

	result := NewResult()
	for _, msg := range h.EvaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	result.Snapshot, err = h.snapshot(ctx, scenario.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot outcome: %w", err)
	}
	return result, nil
}

func compile(scenario *Scenario) (*graphspec.Plan, error) {
	var srcs []graphspec.Source
	if scenario.Graph != "" {
		srcs = append(srcs, graphspec.Source{Filename: scenario.Name + ".cue", Data: scenario.Graph})
	}
	if len(scenario.GraphFiles) == 0 {
		return graphspec.CompileSources(srcs...)
	}
	files, err := graphspec.ReadSources(scenario.GraphFiles...)
	if err != nil {
		return nil, err
	}
	return graphspec.CompileSources(append(srcs, files...)...)
}
