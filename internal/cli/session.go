package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/config"
	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/engine"
)

// session is one command's view of the configured federation.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	stores *config.Stores
	client *engine.Client
}

// loadConfig resolves the config and builds the logger. --verbose forces
// debug logging.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Resolve(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// openSession resolves the config and opens every store. Store metrics are
// registered with reg when enabled; reg may be nil.
func openSession(opts *RootOptions, cmd *cobra.Command, reg prometheus.Registerer) (*session, error) {
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}
	stores, err := config.OpenStores(cmd.Context(), cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		stores: stores,
		client: engine.New(stores.Federation, cfg.EngineOptions(logger)...),
	}, nil
}

func (s *session) Close() error {
	return s.stores.Close()
}

// withSession opens a session, runs fn and closes the session. Failing to
// open is a command error.
func withSession(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter, fn func(*session) error) error {
	sess, err := openSession(opts, cmd, nil)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to open stores", err)
	}
	defer sess.Close()
	return fn(sess)
}

// writeConstructs prints one line per construct: type, id, store, name.
func writeConstructs(w io.Writer, cs []*construct.Construct) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Type, c.ID(), c.Signature.StoreID, c.Name())
	}
	tw.Flush()
}

// writeConstruct prints a construct's header and payload fields.
func writeConstruct(w io.Writer, c *construct.Construct) {
	fmt.Fprintf(w, "%s %s\n", c.Type, c.ID())
	fmt.Fprintf(w, "  store:   %s\n", c.Signature.StoreID)
	fmt.Fprintf(w, "  version: %d\n", c.Signature.Version)
	if c.Name() != "" {
		fmt.Fprintf(w, "  name:    %s\n", c.Name())
	}
	if c.Metadata.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", c.Metadata.Description)
	}

	field := func(name string, v any) {
		fmt.Fprintf(w, "  %s: %v\n", name, v)
	}
	switch d := c.Data.(type) {
	case *construct.CategoryData:
		field("objects", d.ObjectIDs)
		field("morphisms", d.MorphismIDs)
		field("functors_from", d.FunctorsFromIDs)
		field("functors_to", d.FunctorsToIDs)
	case *construct.ObjectData:
		field("category", d.CategoryID)
		field("identity", d.IdentityMorphismID)
		field("morphisms_from", d.MorphismsFromIDs)
		field("morphisms_to", d.MorphismsToIDs)
	case *construct.MorphismData:
		field("category", d.CategoryID)
		field("source", d.SourceID)
		field("target", d.TargetID)
		field("identity", d.IsIdentity)
	case *construct.FunctorData:
		field("source_category", d.SourceCategoryID)
		field("target_category", d.TargetCategoryID)
		field("object_mappings", d.ObjectMappingIDs)
		field("morphism_mappings", d.MorphismMappingIDs)
	case *construct.ObjectMappingData:
		field("functor", d.FunctorID)
		field("source", d.SourceObjectID)
		field("target", d.TargetObjectID)
	case *construct.MorphismMappingData:
		field("functor", d.FunctorID)
		field("source", d.SourceMorphismID)
		field("target", d.TargetMorphismID)
	}
}
