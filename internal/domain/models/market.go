package models

import (
	"math"
	"time"
)

// Indicators are the optional technical readings attached to a price point.
// A nil pointer means the backend had no value for that slot (warm-up
// periods at the start of a series).
type Indicators struct {
	RSI        *float64 `json:"rsi,omitempty"`
	MACD       *float64 `json:"macd,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	MACDHist   *float64 `json:"macd_hist,omitempty"`
	BBUpper    *float64 `json:"bb_upper,omitempty"`
	BBMiddle   *float64 `json:"bb_middle,omitempty"`
	BBLower    *float64 `json:"bb_lower,omitempty"`
}

// PricePoint is one OHLCV bar. Time is unix milliseconds.
type PricePoint struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Indicators
}

// Timestamp converts the wire time to a time.Time in UTC.
func (p PricePoint) Timestamp() time.Time {
	return time.UnixMilli(p.Time).UTC()
}

// Bullish reports whether the bar closed at or above its open.
func (p PricePoint) Bullish() bool { return p.Close >= p.Open }

// Bounds returns the bar's effective low and high. A malformed bar whose
// high/low do not enclose open and close is widened so the range always
// contains the body.
func (p PricePoint) Bounds() (low, high float64) {
	low = min(p.Low, p.High, p.Open, p.Close)
	high = max(p.Low, p.High, p.Open, p.Close)
	return low, high
}

// Valid reports whether the bar honours high >= max(open, close) and
// low <= min(open, close) with finite values.
func (p PricePoint) Valid() bool {
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close, p.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.High >= math.Max(p.Open, p.Close) && p.Low <= math.Min(p.Open, p.Close)
}

// OHLCVSeries is an ordered price series for one instrument and timeframe.
type OHLCVSeries struct {
	Symbol string       `json:"symbol"`
	Prices []PricePoint `json:"prices"`
}

// SanitizeSeries drops points that are non-finite or whose time does not
// strictly increase. It returns the kept points and how many were dropped.
// The input slice is not modified.
func SanitizeSeries(points []PricePoint) ([]PricePoint, int) {
	kept := make([]PricePoint, 0, len(points))
	var last int64
	for _, p := range points {
		if !finite(p.Open, p.High, p.Low, p.Close, p.Volume) {
			continue
		}
		if len(kept) > 0 && p.Time <= last {
			continue
		}
		kept = append(kept, p)
		last = p.Time
	}
	return kept, len(points) - len(kept)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MarketOverview is the market summary for one instrument. Percent changes
// are already expressed in percent.
type MarketOverview struct {
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	CurrentPrice      float64 `json:"current_price"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"volume_24h"`
	PriceChange24h    float64 `json:"price_change_24h"`
	PriceChange7d     float64 `json:"price_change_7d"`
	ATH               float64 `json:"ath"`
	ATL               float64 `json:"atl"`
	CirculatingSupply float64 `json:"circulating_supply"`
}
