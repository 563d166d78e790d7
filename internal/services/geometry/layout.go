package geometry

import (
	"math"

	"CryptoDash/internal/domain/models"
)

// DefaultGap is the fraction of each slot left empty between candles.
const DefaultGap = 0.2

// Bar is a filled rectangle tied to one point, used for volume and histograms.
type Bar struct {
	Time int64 `json:"time"`
	Rect Rect  `json:"rect"`
	Tone Tone  `json:"tone"`
}

// slots splits a viewport into n equal columns and returns the x origin and
// width of the drawable part of column i.
type slots struct {
	x, width float64
	n        int
	gap      float64
}

func newSlots(vp Rect, n int, gap float64) slots {
	if gap < 0 || gap >= 1 || math.IsNaN(gap) {
		gap = DefaultGap
	}
	return slots{x: vp.X, width: math.Max(vp.Width, 0), n: n, gap: gap}
}

func (s slots) step() float64 {
	if s.n == 0 {
		return 0
	}
	return s.width / float64(s.n)
}

func (s slots) column(i int) (x, w float64) {
	step := s.step()
	pad := step * s.gap / 2
	return s.x + float64(i)*step + pad, step - 2*pad
}

func (s slots) center(i int) float64 {
	step := s.step()
	return s.x + float64(i)*step + step/2
}

// Candles lays out a series across vp. The vertical domain is the window's
// lowest low to highest high. A flat window places every candle as a centred
// mark instead of dividing by a zero range.
func Candles(points []models.PricePoint, vp Rect, gap float64) []Candle {
	if len(points) == 0 {
		return nil
	}

	minLow, maxHigh := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		low, high := p.Bounds()
		minLow = math.Min(minLow, low)
		maxHigh = math.Max(maxHigh, high)
	}

	s := newSlots(vp, len(points), gap)
	span := maxHigh - minLow
	out := make([]Candle, len(points))
	for i, p := range points {
		x, w := s.column(i)
		region := Rect{X: x, Width: w}
		if span > 0 && vp.Height > 0 {
			scale := vp.Height / span
			low, high := p.Bounds()
			region.Y = vp.Y + (maxHigh-high)*scale
			region.Height = (high - low) * scale
		} else {
			region.Y = vp.Y + vp.Height/2
		}
		out[i] = CandleShape(p, region)
	}
	return out
}

// VolumeBars scales volume against the window maximum, bottom aligned. Bar i
// is bull when close[i] >= close[i-1]; the first bar has no predecessor and
// is always bear.
func VolumeBars(points []models.PricePoint, vp Rect, gap float64) []Bar {
	if len(points) == 0 {
		return nil
	}

	maxVol := 0.0
	for _, p := range points {
		maxVol = math.Max(maxVol, p.Volume)
	}

	s := newSlots(vp, len(points), gap)
	bottom := vp.Y + math.Max(vp.Height, 0)
	out := make([]Bar, len(points))
	for i, p := range points {
		x, w := s.column(i)
		h := 0.0
		if maxVol > 0 && p.Volume > 0 {
			h = p.Volume / maxVol * math.Max(vp.Height, 0)
		}
		out[i] = Bar{
			Time: p.Time,
			Rect: Rect{X: x, Y: bottom - h, Width: w, Height: h},
			Tone: toneOf(i > 0 && p.Close >= points[i-1].Close),
		}
	}
	return out
}
