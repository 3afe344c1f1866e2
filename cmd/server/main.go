package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "membership-api",
		Short:   "Membership purchase API with customer and admin email notifications",
		Version: Version,
		// Running the binary without a subcommand starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to the YAML config file (optional)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(testEmailCmd(&configPath))
	rootCmd.AddCommand(previewCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config, applies the logger settings and, when
// requireMail is set, validates everything needed to send email.
func loadConfig(path string, requireMail bool) (*config.Config, error) {
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(!cfg.Log.ShowPII)
	if cfg.Log.ShowPII {
		log.Println("[Config] Warning: PII redaction disabled in logs")
	}

	if requireMail {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}
