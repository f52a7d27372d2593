package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"call-analytics-go/internal/config"
	"call-analytics-go/internal/logger"
)

type app struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "callkpi",
		Short:         "Call transcript analytics: sentiment, timing, PII redaction and KPI extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load() // loads .env when present

			cfg, err := config.Load(cmd.Context())
			if err != nil {
				logger.New().WithError(err).Error("config")
				return err
			}
			a.cfg = cfg
			a.log = logger.New(logger.WithEnvironment(cfg.Environment), logger.WithLevel(cfg.LogLevel)).
				With("service", "callkpi")
			return nil
		},
	}
	root.AddCommand(newRunCmd(a), newServeCmd(a))
	return root
}
