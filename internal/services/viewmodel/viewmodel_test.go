package viewmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoDash/internal/domain/models"
)

func TestClassifySignalBySubstring(t *testing.T) {
	cases := map[string]Badge{
		"STRONG BUY":  BadgeBull,
		"BUY":         BadgeBull,
		"NEUTRAL":     BadgeNeutral,
		"SELL":        BadgeBear,
		"STRONG SELL": BadgeBear,
		"WEAK BUY":    BadgeBull,
		"":            BadgeNeutral,
		"buy":         BadgeNeutral,
	}
	for label, want := range cases {
		assert.Equal(t, want, ClassifySignal(label), label)
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-5))
	assert.Equal(t, 100.0, ClampConfidence(150))
	assert.Equal(t, 42.5, ClampConfidence(42.5))
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
}

func TestSanitizeRange(t *testing.T) {
	b := SanitizeRange(models.PriceRange{Low: 110, Mid: 120, High: 100})
	assert.Equal(t, PriceBand{Low: 100, Mid: 110, High: 110, Adjusted: true}, b)

	ok := SanitizeRange(models.PriceRange{Low: 1, Mid: 2, High: 3})
	assert.False(t, ok.Adjusted)
	assert.Equal(t, 2.0, ok.Mid)
}

func TestBuildPredictionKeepsSignalOrderAndClamps(t *testing.T) {
	p := &models.Prediction{
		OverallSignal:       "STRONG SELL",
		Confidence:          150,
		PredictedDirection:  models.TrendDown,
		PredictedPriceRange: models.PriceRange{Low: 90, Mid: 95, High: 100},
		Horizon:             "24h",
		Summary:             "bearish",
		Signals: []models.SignalDetail{
			{Indicator: "RSI", Value: 71, Signal: "Overbought", Direction: "bear", Weight: 2},
			{Indicator: "MACD", Value: -3, Signal: "Bearish cross", Direction: "bear", Weight: 2},
			{Indicator: "BB", Value: 0.5, Signal: "Mid band", Direction: "sideways", Weight: 1},
		},
	}

	v, err := BuildPrediction(p)
	require.NoError(t, err)
	assert.Equal(t, BadgeBear, v.Badge)
	assert.Equal(t, 100.0, v.Confidence)
	assert.Equal(t, "100.0% CF", v.ConfidenceLabel)
	require.Len(t, v.Signals, 3)
	assert.Equal(t, []string{"RSI", "MACD", "BB"}, []string{v.Signals[0].Indicator, v.Signals[1].Indicator, v.Signals[2].Indicator})
	assert.Equal(t, models.DirectionNeutral, v.Signals[2].Direction)
	assert.Len(t, v.Warnings, 1)
}

func TestBuildPredictionFlagsDuplicatesAndNegativeConfidence(t *testing.T) {
	v, err := BuildPrediction(&models.Prediction{
		OverallSignal: "NEUTRAL",
		Confidence:    -5,
		Signals: []models.SignalDetail{
			{Indicator: "RSI"},
			{Indicator: "RSI"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Confidence)
	assert.Equal(t, "0.0% CF", v.ConfidenceLabel)
	assert.Len(t, v.Signals, 2)
	assert.Len(t, v.Warnings, 2)
}

func TestBuildPredictionNil(t *testing.T) {
	_, err := BuildPrediction(nil)
	assert.ErrorIs(t, err, models.ErrPredictionUnavailable)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatUSD(1234.5))
	assert.Equal(t, "-$0.25", FormatUSD(-0.25))
	assert.Equal(t, "-2.35%", FormatPercent(-2.345678))
	assert.Equal(t, "999", FormatCompact(999))
	assert.Equal(t, "1.23K", FormatCompact(1234))
	assert.Equal(t, "1.5M", FormatCompact(1_500_000))
	assert.Equal(t, "1M", FormatCompact(999_999))
	assert.Equal(t, "19.7M", FormatCompact(19_700_000))
	assert.Equal(t, "1.2T", FormatCompact(1.2e12))
	assert.Equal(t, "-3B", FormatCompact(-3e9))
	assert.Equal(t, "-", FormatCompact(math.Inf(1)))
}

func TestBuildOverview(t *testing.T) {
	o := BuildOverview(&models.MarketOverview{
		Name:              "Bitcoin",
		Symbol:            "btc",
		CurrentPrice:      65000,
		MarketCap:         1.28e12,
		Volume24h:         3.1e10,
		PriceChange24h:    -1.5,
		CirculatingSupply: 19_700_000,
	})
	require.NotNil(t, o)
	assert.Equal(t, "$65,000.00", o.PriceLabel)
	assert.Equal(t, ToneDown, o.Change24hDir)
	assert.Equal(t, "-1.50%", o.Change24hTxt)
	assert.Equal(t, "1.28T", o.MarketCap)
	assert.Equal(t, "31B", o.Volume24h)
	assert.Equal(t, "19.7M BTC", o.Supply)

	assert.Nil(t, BuildOverview(nil))
}

func TestLogsNewestFirst(t *testing.T) {
	lines := LogsNewestFirst([]string{"connected", "SIGNAL buy @ 100", "Error: timeout"})
	require.Len(t, lines, 3)
	assert.Equal(t, LogLine{Text: "Error: timeout", Tone: LogError}, lines[0])
	assert.Equal(t, LogLine{Text: "SIGNAL buy @ 100", Tone: LogSignal}, lines[1])
	assert.Equal(t, LogLine{Text: "connected", Tone: LogInfo}, lines[2])
	assert.Equal(t, LogSignal, ClassifyLog("SIGNAL Error"))
	assert.Empty(t, LogsNewestFirst(nil))
}
