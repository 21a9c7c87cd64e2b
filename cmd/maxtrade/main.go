package main

import (
	"fmt"
	"os"

	"maxtrade/cmd"
	"maxtrade/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func (o *rootOptions) dependencies() (*cmd.Dependencies, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return cmd.InitializeDependencies(cfg)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "maxtrade",
		Short:         "factor screening and backtesting engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("MAXTRADE_CONFIG"), "path to a yaml config file")

	root.AddCommand(
		newBacktestCommand(opts),
		newScreenCommand(opts),
		newFactorsCommand(opts),
		newStrategiesCommand(opts),
		newServeCommand(opts),
		newImportCommand(),
	)
	return root
}
