package models

// Overall signal labels emitted by the prediction service. Consumers classify
// by substring, so unknown labels containing BUY or SELL still map sensibly.
const (
	SignalStrongBuy  = "STRONG BUY"
	SignalBuy        = "BUY"
	SignalNeutral    = "NEUTRAL"
	SignalSell       = "SELL"
	SignalStrongSell = "STRONG SELL"
)

// Direction is an indicator's lean.
type Direction string

const (
	DirectionBull    Direction = "bull"
	DirectionBear    Direction = "bear"
	DirectionNeutral Direction = "neutral"
)

// Normalize maps anything outside the known set to neutral.
func (d Direction) Normalize() Direction {
	switch d {
	case DirectionBull, DirectionBear:
		return d
	default:
		return DirectionNeutral
	}
}

// Predicted price directions.
const (
	TrendUp       = "UP"
	TrendDown     = "DOWN"
	TrendSideways = "SIDEWAYS"
)

// SignalDetail is one indicator's contribution to a prediction.
type SignalDetail struct {
	Indicator string    `json:"indicator"`
	Value     float64   `json:"value"`
	Signal    string    `json:"signal"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
}

type PriceRange struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Prediction is the aggregated signal report for one instrument.
type Prediction struct {
	OverallSignal       string         `json:"overall_signal"`
	Confidence          float64        `json:"confidence"`
	PredictedDirection  string         `json:"predicted_direction"`
	PredictedPriceRange PriceRange     `json:"predicted_price_range"`
	Horizon             string         `json:"horizon"`
	Signals             []SignalDetail `json:"signals"`
	Summary             string         `json:"summary"`
}
