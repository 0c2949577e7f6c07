package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/beamline/internal/metrics"
	"github.com/leapstack-labs/beamline/internal/pipeline"
	"github.com/leapstack-labs/beamline/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parser over HTTP",
		Long: `Start an HTTP server that parses sentences posted as JSON to /parse.

With --watch the feature file is recompiled whenever it changes; a broken
file is logged and the previous features stay in service.`,
		Example: `  beamline serve
  beamline serve --port 9090 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().Int("port", 0, "Port to listen on (default from config, 8080)")
	cmd.Flags().Bool("watch", false, "Reload the feature file when it changes")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	c := NewCommandContext(cmd)
	m := metrics.New()

	srv, err := server.New(server.Config{
		Port: c.Cfg.Server.Port,
		Load: func() (*pipeline.Pipeline, error) {
			return c.Pipeline(nil, m)
		},
		Watch:     c.Cfg.Server.Watch,
		WatchPath: c.Cfg.Features,
		Metrics:   m,
		Logger:    c.Logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Renderer.Success(fmt.Sprintf("serving on port %d", c.Cfg.Server.Port))
	if c.Cfg.Server.Watch {
		c.Renderer.Muted("watching " + c.Cfg.Features)
	}
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
