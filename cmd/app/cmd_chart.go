package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"CryptoDash/internal/di"
	"CryptoDash/internal/domain/repository"
	"CryptoDash/internal/usecase/dashboard"
)

var (
	chartCoin   string
	chartDays   int
	chartWidth  float64
	chartHeight float64
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Fetch one OHLCV series and print its chart geometry as JSON",
	Long: `Fetch the price series for a coin and window once, lay out the
candle, volume, RSI and MACD panes and print the drawing primitives.

Examples:
  cryptodash chart --coin ethereum --days 7
  cryptodash chart --coin bitcoin --days 90 --width 1200 --height 500`,
	RunE: runChart,
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVar(&chartCoin, "coin", "bitcoin", "backend coin id")
	chartCmd.Flags().IntVar(&chartDays, "days", int(repository.DefaultTimeframe()), "window in days (1, 7, 14, 30 or 90)")
	chartCmd.Flags().Float64Var(&chartWidth, "width", 800, "chart width in pixels")
	chartCmd.Flags().Float64Var(&chartHeight, "height", 360, "price pane height in pixels")
}

func runChart(cmd *cobra.Command, _ []string) error {
	tf := repository.Timeframe(chartDays)
	if !repository.IsValidTimeframe(tf) {
		return fmt.Errorf("invalid --days %d: must be one of 1, 7, 14, 30, 90", chartDays)
	}
	if chartWidth <= 0 || chartHeight <= 0 {
		return fmt.Errorf("--width and --height must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := di.InitializeBackendClient(cfg)
	if err != nil {
		return err
	}

	series, err := client.FetchOHLCV(cmd.Context(), chartCoin, tf)
	if err != nil {
		return fmt.Errorf("fetch %s %s: %w", chartCoin, tf.Label(), err)
	}
	return writeJSON(dashboard.BuildChart(series, dashboard.ChartLayout{
		Width:        chartWidth,
		Height:       chartHeight,
		VolumeHeight: 80,
		PanelHeight:  100,
		Gap:          0.2,
	}))
}
