package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"creditrisk/config"
	"creditrisk/logging"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) init() error {
	cfg, err := config.Load(config.ResolvePath(a.configPath))
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log)
	return nil
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "creditrisk",
		Short:         "Train and serve a credit default risk classifier",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./config.yaml when present)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(a), newTrainCmd(a), newPredictCmd(a))
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
