package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one construct, wherever it is stored",
		Long: `Resolve an id across every configured store, in store order, and show
the construct with its back-references.

Exit codes:
  0 - Found
  1 - The id resolves nowhere
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withSession(rootOpts, cmd, f, func(sess *session) error {
				c, err := sess.client.Get(cmd.Context(), args[0])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "get failed", err)
				}
				if c == nil {
					return failMissing(f, args[0])
				}
				return f.Result(c, func(w io.Writer) { writeConstruct(w, c) })
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Name string // exact name filter
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List every construct of a type across all stores",
		Long: `List every construct of a type, store by store in config order.

Types: category, object, morphism, functor, object_mapping, morphism_mapping

Examples:
  catgraph list category
  catgraph list object --name A`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "only constructs with this exact name")

	return cmd
}

func runList(opts *ListOptions, typ string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	t, ok := construct.ParseType(typ)
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("unknown construct type %q (want one of %v)", typ, construct.Types), nil)
	}

	return withSession(opts.RootOptions, cmd, f, func(sess *session) error {
		q := sess.client.Query()
		var (
			cs  []*construct.Construct
			err error
		)
		if opts.Name != "" {
			cs, err = q.Search(cmd.Context(), store.Query{Type: t, Name: opts.Name})
		} else {
			cs, err = q.List(cmd.Context(), t)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "list failed", err)
		}
		return writeList(f, cs)
	})
}

func writeList(f *OutputFormatter, cs []*construct.Construct) error {
	return f.Result(cs, func(w io.Writer) { writeConstructs(w, cs) })
}

// failMissing reports an id that resolves nowhere.
func failMissing(f *OutputFormatter, id string) error {
	message := fmt.Sprintf("construct %s not found in any attached store", id)
	_ = f.Problem(&Problem{Code: ErrCodeMissing, Message: message})
	return NewExitError(ExitFailure, message)
}
