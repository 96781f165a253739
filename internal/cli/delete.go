package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/engine"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Policy string // overrides engine.delete_policy
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one construct",
		Long: `Delete a construct from the store that holds it. With the retract
policy its id is also removed from every back-reference array that lists
it; with retain those ids are left dangling. Dependents are never deleted.

Exit codes:
  0 - Deleted
  1 - The id resolves nowhere
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "", "delete policy: retract or retain (default engine.delete_policy)")

	return cmd
}

func runDelete(opts *DeleteOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var extra []engine.Option
	if opts.Policy != "" {
		policy, err := engine.ParseDeletePolicy(opts.Policy)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeBadArgument, "invalid --policy", err)
		}
		extra = append(extra, engine.WithDeletePolicy(policy))
	}

	return withSession(opts.RootOptions, cmd, f, func(sess *session) error {
		client := sess.client
		if len(extra) > 0 {
			engineOpts := append(sess.cfg.EngineOptions(sess.logger), extra...)
			client = engine.New(sess.stores.Federation, engineOpts...)
		}
		ok, err := client.Delete(cmd.Context(), id)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "delete failed", err)
		}
		if !ok {
			return failMissing(f, id)
		}
		return f.Result(map[string]any{"id": id, "deleted": true}, func(w io.Writer) {
			fmt.Fprintf(w, "✓ deleted %s\n", id)
		})
	})
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify back-references and identity morphisms",
		Long: `Recompute every back-reference array from the foreign keys across all
stores and report each disagreement, plus every object whose identity
morphism is missing or is not a loop on it.

Exit codes:
  0 - Consistent
  1 - Drift found
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withSession(rootOpts, cmd, f, func(sess *session) error {
				report, err := sess.client.CheckBackReferences(cmd.Context())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "check failed", err)
				}
				message := fmt.Sprintf("%d drift(s) found", len(report.Drifts))

				var problem *Problem
				if !report.Consistent() {
					problem = &Problem{Code: ErrCodeDrift, Message: message}
				}
				if err := f.Outcome(report, problem); err != nil {
					return err
				}
				if !f.IsJSON() {
					for _, d := range report.Drifts {
						fmt.Fprintf(f.Writer, "✗ %s\n", d)
					}
					fmt.Fprintf(f.Writer, "Checked %d constructs, %d drift(s)\n", report.Checked, len(report.Drifts))
				}
				if !report.Consistent() {
					return NewExitError(ExitFailure, message)
				}
				return nil
			})
		},
	}
}
