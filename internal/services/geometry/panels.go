package geometry

import (
	"math"

	"CryptoDash/internal/domain/models"
)

const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

// RSIPanel is the RSI line over a fixed 0..100 domain with guide lines.
// Points without a reading break the line into separate segments.
type RSIPanel struct {
	Segments   [][]Point `json:"segments"`
	Overbought Line      `json:"overbought"`
	Oversold   Line      `json:"oversold"`
	Last       *float64  `json:"last,omitempty"`
}

// RSI projects the RSI readings of points into vp.
func RSI(points []models.PricePoint, vp Rect) RSIPanel {
	y := func(v float64) float64 {
		v = math.Max(0, math.Min(100, v))
		return vp.Y + (100-v)/100*vp.Height
	}

	panel := RSIPanel{
		Overbought: Line{X1: vp.X, Y1: y(RSIOverbought), X2: vp.X + vp.Width, Y2: y(RSIOverbought)},
		Oversold:   Line{X1: vp.X, Y1: y(RSIOversold), X2: vp.X + vp.Width, Y2: y(RSIOversold)},
	}

	s := newSlots(vp, len(points), 0)
	panel.Segments = polyline(points, s, func(p models.PricePoint) *float64 { return p.RSI }, y)
	for i := len(points) - 1; i >= 0; i-- {
		if v := points[i].RSI; v != nil {
			last := *v
			panel.Last = &last
			break
		}
	}
	return panel
}

// MACDPanel holds the histogram and the MACD and signal lines on a domain
// symmetric around zero.
type MACDPanel struct {
	Histogram []Bar     `json:"histogram"`
	MACD      [][]Point `json:"macd"`
	Signal    [][]Point `json:"signal"`
	Zero      Line      `json:"zero"`
}

// MACD projects the MACD readings of points into vp.
func MACD(points []models.PricePoint, vp Rect, gap float64) MACDPanel {
	extent := 0.0
	for _, p := range points {
		for _, v := range []*float64{p.MACD, p.MACDSignal, p.MACDHist} {
			if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
				extent = math.Max(extent, math.Abs(*v))
			}
		}
	}

	zeroY := vp.Y + vp.Height/2
	y := func(v float64) float64 {
		if extent == 0 {
			return zeroY
		}
		return zeroY - v/extent*vp.Height/2
	}

	panel := MACDPanel{Zero: Line{X1: vp.X, Y1: zeroY, X2: vp.X + vp.Width, Y2: zeroY}}

	bars := newSlots(vp, len(points), gap)
	for i, p := range points {
		if p.MACDHist == nil {
			continue
		}
		x, w := bars.column(i)
		top, bottom := y(*p.MACDHist), zeroY
		if top > bottom {
			top, bottom = bottom, top
		}
		panel.Histogram = append(panel.Histogram, Bar{
			Time: p.Time,
			Rect: Rect{X: x, Y: top, Width: w, Height: bottom - top},
			Tone: toneOf(*p.MACDHist >= 0),
		})
	}

	lines := newSlots(vp, len(points), 0)
	panel.MACD = polyline(points, lines, func(p models.PricePoint) *float64 { return p.MACD }, y)
	panel.Signal = polyline(points, lines, func(p models.PricePoint) *float64 { return p.MACDSignal }, y)
	return panel
}

func polyline(points []models.PricePoint, s slots, value func(models.PricePoint) *float64, y func(float64) float64) [][]Point {
	var (
		segments [][]Point
		current  []Point
	)
	for i, p := range points {
		v := value(p)
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, Point{X: s.center(i), Y: y(*v)})
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}
