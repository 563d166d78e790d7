package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CryptoDash/internal/di"
	"CryptoDash/internal/services/viewmodel"
)

var predictCoin string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Fetch one prediction and print the ranked signal view",
	Long: `Fetch the aggregated prediction for a coin once and print it as the
dashboard renders it: signals ranked by confidence, the overall badge and the
target price band.

Examples:
  cryptodash predict --coin bitcoin
  cryptodash predict --coin solana --config ""`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predictCoin, "coin", "bitcoin", "backend coin id")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := di.InitializeBackendClient(cfg)
	if err != nil {
		return err
	}

	p, err := client.FetchPrediction(cmd.Context(), predictCoin)
	if err != nil {
		return fmt.Errorf("fetch prediction for %s: %w", predictCoin, err)
	}
	view, err := viewmodel.BuildPrediction(p)
	if err != nil {
		return fmt.Errorf("render prediction: %w", err)
	}
	return writeJSON(view)
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
