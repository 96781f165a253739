package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/graphspec"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Store string // overrides engine.default_store
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <graph-dir | file.cue...>",
		Short: "Create the categories and functors of a graph definition",
		Long: `Create every category, object and morphism of a CUE graph definition
in the configured stores, then check and build each functor.

Functors whose declarations are inconsistent are reported and not built.

Exit codes:
  0 - Everything was created
  1 - One or more functors were invalid
  2 - Command error (unreadable graph, store failure, etc.)

Examples:
  catgraph apply ./graph
  catgraph apply base.cue functors.cue --store archive
  catgraph apply ./graph --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "store for definitions that name none (default engine.default_store)")

	return cmd
}

func runApply(opts *ApplyOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	plan, err := LoadGraph(paths)
	if err != nil {
		return failLoad(f, err)
	}
	f.Debugf("Loaded %d categories and %d functors", len(plan.Categories), len(plan.Functors))

	return withSession(opts.RootOptions, cmd, f, func(sess *session) error {
		store := opts.Store
		if store == "" {
			store = sess.cfg.Engine.DefaultStore
		}
		res, err := graphspec.Apply(cmd.Context(), sess.client, plan, graphspec.ApplyOptions{DefaultStore: store})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "apply failed", err)
		}
		return reportApply(f, res)
	})
}

// reportApply writes the outcome and fails with ExitFailure when a functor
// was not built.
func reportApply(f *OutputFormatter, res *graphspec.ApplyResult) error {
	invalid := 0
	for _, fn := range res.Functors {
		if !fn.Valid {
			invalid++
		}
	}
	message := fmt.Sprintf("%d functor(s) invalid", invalid)

	var problem *Problem
	if invalid > 0 {
		problem = &Problem{Code: ErrCodeFunctorInvalid, Message: message}
	}
	if err := f.Outcome(res, problem); err != nil {
		return err
	}
	if !f.IsJSON() {
		writeApplyText(f.Writer, res)
	}
	if invalid > 0 {
		return NewExitError(ExitFailure, message)
	}
	return nil
}

func writeApplyText(w io.Writer, res *graphspec.ApplyResult) {
	fmt.Fprintf(w, "Categories: %d\n", len(res.Categories))
	for _, fn := range res.Functors {
		if fn.Valid {
			fmt.Fprintf(w, "✓ functor %s (%s)\n", fn.Name, fn.ID)
			continue
		}
		fmt.Fprintf(w, "✗ functor %s\n", fn.Name)
		for _, e := range fn.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// failLoad reports a graph loading error as a command error.
func failLoad(f *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
		message = loadErr.Error()
		if !loadErr.Pos.IsValid() {
			message = loadErr.Message
		}
	}
	_ = f.Problem(&Problem{Code: code, Message: message})
	return WrapExitError(ExitCommandError, "failed to load graph", err)
}
