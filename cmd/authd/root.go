package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/identity-service/internal/infrastructure/config"
	"github.com/99minutos/identity-service/pkg/logger"
)

const serviceName = "authd"

// cfg is loaded once in PersistentPreRunE and shared by every subcommand.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Identity service: signup, login and role-based authorization",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		cfg = loaded

		logger.Init(logger.Options{
			Level:   cfg.LogLevel,
			Pretty:  cfg.IsDevelopment(),
			Service: serviceName,
		})
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// logger may not be initialised if config loading failed
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("execution failed")
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBootstrapAdminCmd())
}
