package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/query"
)

// operator is one named federated query.
type operator struct {
	args  string // argument names for help
	arity int
	run   func(ctx context.Context, q *query.Engine, args []string) ([]*construct.Construct, error)
}

type (
	manyFn     func(*query.Engine, context.Context, string) ([]*construct.Construct, error)
	oneFn      func(*query.Engine, context.Context, string) (*construct.Construct, error)
	pairManyFn func(*query.Engine, context.Context, string, string) ([]*construct.Construct, error)
	pairOneFn  func(*query.Engine, context.Context, string, string) (*construct.Construct, error)
)

func many(fn manyFn) operator {
	return operator{args: "<id>", arity: 1, run: func(ctx context.Context, q *query.Engine, args []string) ([]*construct.Construct, error) {
		return fn(q, ctx, args[0])
	}}
}

func one(fn oneFn) operator {
	return operator{args: "<id>", arity: 1, run: func(ctx context.Context, q *query.Engine, args []string) ([]*construct.Construct, error) {
		return single(fn(q, ctx, args[0]))
	}}
}

func pairMany(first string, fn pairManyFn) operator {
	return operator{args: first + " <id>", arity: 2, run: func(ctx context.Context, q *query.Engine, args []string) ([]*construct.Construct, error) {
		return fn(q, ctx, args[0], args[1])
	}}
}

func pairOne(first string, fn pairOneFn) operator {
	return operator{args: first + " <id>", arity: 2, run: func(ctx context.Context, q *query.Engine, args []string) ([]*construct.Construct, error) {
		return single(fn(q, ctx, args[0], args[1]))
	}}
}

// single turns an optional result into a zero- or one-element list.
func single(c *construct.Construct, err error) ([]*construct.Construct, error) {
	if err != nil || c == nil {
		return []*construct.Construct{}, err
	}
	return []*construct.Construct{c}, nil
}

var operators = map[string]operator{
	"objects-in-category":   many((*query.Engine).ObjectsInCategory),
	"morphisms-in-category": many((*query.Engine).MorphismsInCategory),
	"morphisms-from":        many((*query.Engine).MorphismsFrom),
	"morphisms-to":          many((*query.Engine).MorphismsTo),
	"source-object":         one((*query.Engine).SourceObject),
	"target-object":         one((*query.Engine).TargetObject),
	"functors-from":         many((*query.Engine).FunctorsFrom),
	"functors-to":           many((*query.Engine).FunctorsTo),
	"object-mappings":       many((*query.Engine).ObjectMappings),
	"morphism-mappings":     many((*query.Engine).MorphismMappings),
	"source-objects":        many((*query.Engine).SourceObjects),
	"target-objects":        many((*query.Engine).TargetObjects),
	"source-morphisms":      many((*query.Engine).SourceMorphisms),
	"target-morphisms":      many((*query.Engine).TargetMorphisms),
	"object-in-category":    pairOne("<category-id>", (*query.Engine).ObjectInCategory),
	"morphism-in-category":  pairOne("<category-id>", (*query.Engine).MorphismInCategory),
	"target-object-for":     pairOne("<functor-id>", (*query.Engine).TargetObjectFor),
	"source-objects-for":    pairMany("<functor-id>", (*query.Engine).SourceObjectsFor),
	"target-morphism-for":   pairOne("<functor-id>", (*query.Engine).TargetMorphismFor),
	"source-morphisms-for":  pairMany("<functor-id>", (*query.Engine).SourceMorphismsFor),
}

func operatorHelp() string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %-22s %s\n", name, operators[name].args)
	}
	return b.String()
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <operator> <id> [id]",
		Short: "Run a federated query operator",
		Long: `Run one of the federated query operators. Ids that resolve nowhere
yield an empty result, never an error.

Operators:
` + operatorHelp() + `
Examples:
  catgraph query objects-in-category 0193...
  catgraph query target-object-for <functor-id> <object-id>`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			op, ok := operators[args[0]]
			if !ok {
				return f.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("unknown operator %q", args[0]), nil)
			}
			if len(args)-1 != op.arity {
				return f.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("%s takes %s", args[0], op.args), nil)
			}
			return withSession(rootOpts, cmd, f, func(sess *session) error {
				cs, err := op.run(cmd.Context(), sess.client.Query(), args[1:])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "query failed", err)
				}
				return writeList(f, cs)
			})
		},
	}
}
