// Package viewmodel shapes backend payloads into what the dashboard shows:
// signal badges, clamped confidence, sanitized price bands, formatted market
// figures and toned scalper log lines.
package viewmodel

import (
	"fmt"
	"math"
	"strings"

	"CryptoDash/internal/domain/models"
)

// Badge is the colour class of an overall signal.
type Badge string

const (
	BadgeBull    Badge = "bull"
	BadgeBear    Badge = "bear"
	BadgeNeutral Badge = "neutral"
)

// ClassifySignal maps an overall signal label by substring: anything
// containing BUY is bull, otherwise anything containing SELL is bear.
func ClassifySignal(label string) Badge {
	switch {
	case strings.Contains(label, "BUY"):
		return BadgeBull
	case strings.Contains(label, "SELL"):
		return BadgeBear
	default:
		return BadgeNeutral
	}
}

// ClampConfidence bounds a confidence percentage to [0, 100]. NaN reads as 0.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// PriceBand is a predicted range guaranteed to satisfy Low <= Mid <= High.
type PriceBand struct {
	Low      float64 `json:"low"`
	Mid      float64 `json:"mid"`
	High     float64 `json:"high"`
	Adjusted bool    `json:"adjusted,omitempty"`
}

// SanitizeRange swaps inverted bounds and pulls mid inside them.
func SanitizeRange(r models.PriceRange) PriceBand {
	b := PriceBand{Low: r.Low, Mid: r.Mid, High: r.High}
	if b.Low > b.High {
		b.Low, b.High = b.High, b.Low
		b.Adjusted = true
	}
	if b.Mid < b.Low {
		b.Mid = b.Low
		b.Adjusted = true
	} else if b.Mid > b.High {
		b.Mid = b.High
		b.Adjusted = true
	}
	return b
}

// SignalRow is one indicator line of the signal list.
type SignalRow struct {
	Indicator string           `json:"indicator"`
	Value     float64          `json:"value"`
	Signal    string           `json:"signal"`
	Direction models.Direction `json:"direction"`
	Weight    float64          `json:"weight"`
}

// Prediction is the display form of a models.Prediction.
type Prediction struct {
	Signal          string      `json:"signal"`
	Badge           Badge       `json:"badge"`
	Confidence      float64     `json:"confidence"`
	ConfidenceLabel string      `json:"confidence_label"`
	Direction       string      `json:"direction"`
	Horizon         string      `json:"horizon"`
	Band            PriceBand   `json:"band"`
	Signals         []SignalRow `json:"signals"`
	Summary         string      `json:"summary"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// BuildPrediction converts a prediction for display. Signal rows keep the
// backend's order. Inconsistencies are repaired and listed in Warnings
// rather than rejected.
func BuildPrediction(p *models.Prediction) (*Prediction, error) {
	if p == nil {
		return nil, models.ErrPredictionUnavailable
	}

	v := &Prediction{
		Signal:    p.OverallSignal,
		Badge:     ClassifySignal(p.OverallSignal),
		Direction: p.PredictedDirection,
		Horizon:   p.Horizon,
		Summary:   p.Summary,
		Band:      SanitizeRange(p.PredictedPriceRange),
		Signals:   make([]SignalRow, 0, len(p.Signals)),
	}

	v.Confidence = ClampConfidence(p.Confidence)
	if v.Confidence != p.Confidence {
		v.Warnings = append(v.Warnings, fmt.Sprintf("confidence %v clamped to %v", p.Confidence, v.Confidence))
	}
	v.ConfidenceLabel = fmt.Sprintf("%.1f%% CF", v.Confidence)

	if v.Band.Adjusted {
		v.Warnings = append(v.Warnings, "predicted price range was inconsistent and has been reordered")
	}

	seen := make(map[string]struct{}, len(p.Signals))
	for _, s := range p.Signals {
		if _, dup := seen[s.Indicator]; dup {
			v.Warnings = append(v.Warnings, fmt.Sprintf("duplicate indicator %q", s.Indicator))
		}
		seen[s.Indicator] = struct{}{}

		v.Signals = append(v.Signals, SignalRow{
			Indicator: s.Indicator,
			Value:     s.Value,
			Signal:    s.Signal,
			Direction: s.Direction.Normalize(),
			Weight:    s.Weight,
		})
	}

	return v, nil
}
