package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// Timeframe is a chart lookback window in days.
type Timeframe int

const (
	TF1D  Timeframe = 1
	TF7D  Timeframe = 7
	TF14D Timeframe = 14
	TF30D Timeframe = 30
	TF90D Timeframe = 90
)

// Timeframes lists the supported windows in display order.
func Timeframes() []Timeframe { return []Timeframe{TF1D, TF7D, TF14D, TF30D, TF90D} }

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1D, TF7D, TF14D, TF30D, TF90D:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF30D }

// Days returns the lookback as a day count.
func (tf Timeframe) Days() int { return int(tf) }

// Label is the selector caption, e.g. "30D".
func (tf Timeframe) Label() string { return fmt.Sprintf("%dD", int(tf)) }

func (tf Timeframe) String() string { return tf.Label() }

// ParseTimeframe accepts "30", "30d" or "30D".
func ParseTimeframe(s string) (Timeframe, error) {
	raw := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(s), "D"), "d")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("timeframe %q: %w", s, err)
	}
	tf := Timeframe(n)
	if !IsValidTimeframe(tf) {
		return 0, fmt.Errorf("timeframe %q is not one of 1, 7, 14, 30, 90", s)
	}
	return tf, nil
}

// NormalizeTimeframe converts a raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if tf, err := ParseTimeframe(s); err == nil {
		return tf
	}
	return DefaultTimeframe()
}
