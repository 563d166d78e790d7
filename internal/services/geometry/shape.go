// Package geometry turns price series into drawable primitives: candle
// bodies and wicks, volume bars and indicator panel polylines. Everything
// here is pure and safe for any finite input, including flat or empty series.
package geometry

import (
	"math"

	"CryptoDash/internal/domain/models"
)

// MinBodyHeight keeps a doji visible.
const MinBodyHeight = 1.0

// Tone is the colour class of a primitive.
type Tone string

const (
	ToneBull Tone = "bull"
	ToneBear Tone = "bear"
)

func toneOf(bullish bool) Tone {
	if bullish {
		return ToneBull
	}
	return ToneBear
}

// Rect is an axis-aligned box in screen space, Y growing downward.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Line is a segment in screen space.
type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Point is a polyline vertex.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Candle is one drawable OHLC bar.
type Candle struct {
	Time int64 `json:"time"`
	Wick Line  `json:"wick"`
	Body Rect  `json:"body"`
	Tone Tone  `json:"tone"`
}

// CandleShape maps one bar into the region that spans its low..high range.
// The wick runs the full height of the region at its horizontal centre. The
// body covers open..close scaled by region height over the bar's range, and is
// never shorter than MinBodyHeight. When the bar has no range the body and
// wick collapse to a MinBodyHeight mark centred in the region.
func CandleShape(p models.PricePoint, region Rect) Candle {
	low, high := p.Bounds()
	cx := region.X + region.Width/2
	c := Candle{Time: p.Time, Tone: toneOf(p.Bullish())}

	span := high - low
	if !(span > 0) || !(region.Height > 0) {
		mid := region.Y + region.Height/2
		h := math.Max(region.Height, MinBodyHeight)
		c.Wick = Line{X1: cx, Y1: mid - h/2, X2: cx, Y2: mid + h/2}
		c.Body = Rect{X: region.X, Y: mid - MinBodyHeight/2, Width: region.Width, Height: MinBodyHeight}
		return c
	}

	ratio := region.Height / span
	c.Wick = Line{X1: cx, Y1: region.Y, X2: cx, Y2: region.Y + region.Height}
	c.Body = Rect{
		X:      region.X,
		Y:      region.Y + (high-math.Max(p.Open, p.Close))*ratio,
		Width:  region.Width,
		Height: math.Max(math.Abs(p.Open-p.Close)*ratio, MinBodyHeight),
	}
	return c
}
