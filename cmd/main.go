package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/config"
	"webtestflow/recorder/pkg/logger"
)

var cfgFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "recorder",
		Short:         "Record browser interactions as replayable steps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")

	serve := newServeCommand()
	root.AddCommand(serve, newExportCommand())
	// Running without a subcommand serves.
	root.RunE = serve.RunE
	return root
}

// setup loads configuration and installs the process logger.
func setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(cfg.Logger)
	restore := logger.Install(log)
	return cfg, log, func() {
		_ = log.Sync()
		restore()
	}, nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
