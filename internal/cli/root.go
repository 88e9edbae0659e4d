package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/efactura-ao/agt-bridge/internal/config"
	"github.com/efactura-ao/agt-bridge/internal/logger"
	"github.com/efactura-ao/agt-bridge/internal/version"
)

var (
	cfg       *config.ServerEnvironment
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "agt",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "AGT e-facturação client CLI",
	Long:              `CLI for submitting invoices to the AGT web service and managing the local backup mirror`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// keygen needs no AGT configuration
		if cmd.Name() == "keygen" {
			appLogger = logger.InitLogger(slog.LevelInfo, "mock")
			return nil
		}

		_ = godotenv.Load()

		var err error
		cfg, err = config.NewServerConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(keygenCmd)
}
