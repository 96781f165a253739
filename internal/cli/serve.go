package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/catgraph/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides server.addr
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over HTTP",
		Long: `Serve the federated read operations and /metrics over HTTP until
interrupted.

Examples:
  catgraph serve
  catgraph serve --addr 127.0.0.1:9090 --config catgraph.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sess, err := openSession(opts.RootOptions, cmd, reg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to open stores", err)
	}
	defer sess.Close()

	addr := opts.Addr
	if addr == "" {
		addr = sess.cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(sess.client.Query(),
		server.WithLogger(sess.logger),
		server.WithGatherer(reg),
	)
	if err := srv.Run(ctx, addr); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "server failed", err)
	}
	return nil
}
