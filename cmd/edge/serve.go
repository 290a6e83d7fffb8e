package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/wippyai/edge-runtime/server"
)

func newServeCmd(a *app) *cobra.Command {
	var handler, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a handler over HTTP, one invocation per request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			script, err := readHandler(handler)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := server.NewMetrics(reg)

			opts := a.cfg.Supervisor()
			opts.Observe = metrics.ObserveFetch
			sup, err := a.supervisor(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer sup.Close(cmd.Context())

			srv, err := server.New(server.Options{
				Invoker:  sup,
				Script:   script,
				Metrics:  metrics,
				Gatherer: reg,
				Logger:   a.logger.Named("server"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx, a.cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&handler, "handler", "", "handler script path")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (EDGE_ADDR)")
	return cmd
}
