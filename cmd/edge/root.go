package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/edge-runtime/config"
	"github.com/wippyai/edge-runtime/engine"
	"github.com/wippyai/edge-runtime/runtime"
)

// app carries state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	guestPath  string
	logLevel   string
	logDev     bool
	convention string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "edge",
		Short:         "Run JavaScript edge handlers in a WebAssembly sandbox",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.guestPath, "guest", "", "guest module path (EDGE_GUEST_PATH)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (EDGE_LOG_LEVEL)")
	flags.BoolVar(&a.logDev, "log-dev", false, "human readable logs (EDGE_LOG_DEV)")
	flags.StringVar(&a.convention, "convention", "", "fetch import convention: packed or length-stack (EDGE_GUEST_CONVENTION)")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newInspectCmd(a),
		newInteractiveCmd(a),
	)
	return root
}

// setup loads the environment configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("guest") {
		cfg.Guest.Path = a.guestPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-dev") {
		cfg.Log.Dev = a.logDev
	}
	if flags.Changed("convention") {
		cfg.Guest.Convention = a.convention
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	engine.SetLogger(logger.Named("engine"))

	a.cfg = cfg
	a.logger = logger
	return nil
}

// supervisor reads the guest module and builds a supervisor for it.
func (a *app) supervisor(ctx context.Context, opts runtime.Options) (*runtime.Supervisor, error) {
	wasm, err := os.ReadFile(a.cfg.Guest.Path)
	if err != nil {
		return nil, fmt.Errorf("read guest: %w", err)
	}
	opts.Logger = a.logger
	return runtime.New(ctx, wasm, opts)
}

func readHandler(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("--handler is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read handler: %w", err)
	}
	return string(data), nil
}
