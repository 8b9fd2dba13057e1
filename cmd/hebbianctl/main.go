// Command hebbianctl is the operator surface for the memory engine: single-
// purpose invocations that each print one structured summary line and
// return a non-zero exit status on failure.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hebbianmem/hebbianmem/internal/config"
	"github.com/hebbianmem/hebbianmem/internal/engine"
)

const version = "0.1.0"

var (
	cfgFile string
	logger  *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "hebbianctl",
		Short:   "Operator CLI for the hebbian memory engine",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := zap.NewProduction()
			if err != nil {
				l = zap.NewNop()
			}
			logger = l
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file")
	viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		newInitCmd(),
		newQueryCmd(),
		newTopCmd(),
		newStatsCmd(),
		newDecayCmd(),
		newLowActivationCmd(),
		newDeprecateCmd(),
		newCorrectCmd(),
		newBackfillEmbeddingsCmd(),
	)
	return root
}

func openService() (*engine.Service, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, logger)
}
