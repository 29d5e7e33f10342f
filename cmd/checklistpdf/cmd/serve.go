package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /render over HTTP",
		Long: `Start an HTTP service that renders checklists.

  POST /render   JSON object of form values -> application/pdf
  GET  /schema   the form schema as JSON
  GET  /healthz  liveness check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.cfg
			if addr != "" {
				cfg.ListenAddr = addr
			}
			template, err := cfg.Template()
			if err != nil {
				return err
			}
			renderer, err := cfg.Renderer(g.log)
			if err != nil {
				return err
			}
			srv := server.New(renderer, template,
				server.WithLogger(g.log.With(observability.String("component", "server"))),
				server.WithMaxBodyBytes(cfg.MaxBodyBytes),
				server.WithMaxConnections(cfg.MaxConnections),
				server.WithShutdownTimeout(cfg.ShutdownTimeout))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = srv.ListenAndServe(ctx, cfg.ListenAddr)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (overrides listen_addr)")
	return c
}
