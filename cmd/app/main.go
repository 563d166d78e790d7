package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CryptoDash/internal/di"
	"CryptoDash/pkg/config"
)

var configPath string

// rootCmd runs the dashboard when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:           "cryptodash",
	Short:         "Crypto market dashboard and scalper control client",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the dashboard API, feed polling and scalper control",
	RunE:  runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty for defaults)")
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	return app.Run(cmd.Context())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "cryptodash: %v\n", err)
		os.Exit(1)
	}
}
