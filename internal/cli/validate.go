package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/engine"
	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/graphspec"
	"github.com/roach88/catgraph/internal/store/memory"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph-dir | file.cue...>",
		Short: "Check a graph definition without writing to any store",
		Long: `Compile a CUE graph definition and apply it to scratch in-memory stores
named after the configured ones, so every functor is checked exactly as
apply would check it. The configured stores are never opened.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	plan, err := LoadGraph(paths)
	if err != nil {
		return failLoad(f, err)
	}
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	// Scratch stores keep the configured ids so store names in the graph
	// resolve the same way.
	fed, err := federation.New()
	if err != nil {
		return err
	}
	for _, sc := range cfg.Stores {
		if err := fed.Attach(memory.New(sc.ID)); err != nil {
			return err
		}
	}
	client := engine.New(fed, engine.WithLogger(logger))

	res, err := graphspec.Apply(cmd.Context(), client, plan, graphspec.ApplyOptions{DefaultStore: cfg.Engine.DefaultStore})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "validation run failed", err)
	}
	f.Debugf("Checked %d categories and %d functors", len(plan.Categories), len(plan.Functors))

	if err := reportApply(f, res); err != nil {
		return err
	}
	if !f.IsJSON() {
		fmt.Fprintln(f.Writer, "✓ Graph valid")
	}
	return nil
}
