package dashboard

import (
	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/services/geometry"
)

// ChartLayout sizes the stacked chart panes in pixels.
type ChartLayout struct {
	Width        float64 `json:"width" query:"width" default:"800" validate:"gt=0,lte=10000"`
	Height       float64 `json:"height" query:"height" default:"360" validate:"gt=0,lte=10000"`
	VolumeHeight float64 `json:"volume_height" query:"volume_height" default:"80" validate:"gte=0,lte=10000"`
	PanelHeight  float64 `json:"panel_height" query:"panel_height" default:"100" validate:"gte=0,lte=10000"`
	Gap          float64 `json:"gap" query:"gap" default:"0.2" validate:"gte=0,lt=1"`
}

// Chart is the full set of drawing primitives for one series.
type Chart struct {
	Symbol    string             `json:"symbol,omitempty"`
	Points    int                `json:"points"`
	Price     geometry.Rect      `json:"price_area"`
	VolumeBox geometry.Rect      `json:"volume_area"`
	RSIBox    geometry.Rect      `json:"rsi_area"`
	MACDBox   geometry.Rect      `json:"macd_area"`
	Candles   []geometry.Candle  `json:"candles"`
	Volume    []geometry.Bar     `json:"volume"`
	RSI       geometry.RSIPanel  `json:"rsi"`
	MACD      geometry.MACDPanel `json:"macd"`
}

// BuildChart lays the price pane, volume strip, RSI and MACD panels out top
// to bottom and projects series into each. A nil series yields empty panes.
func BuildChart(series *models.OHLCVSeries, l ChartLayout) Chart {
	price := geometry.Rect{Width: l.Width, Height: l.Height}
	volume := geometry.Rect{Y: price.Y + price.Height, Width: l.Width, Height: l.VolumeHeight}
	rsi := geometry.Rect{Y: volume.Y + volume.Height, Width: l.Width, Height: l.PanelHeight}
	macd := geometry.Rect{Y: rsi.Y + rsi.Height, Width: l.Width, Height: l.PanelHeight}

	c := Chart{Price: price, VolumeBox: volume, RSIBox: rsi, MACDBox: macd}
	var points []models.PricePoint
	if series != nil {
		c.Symbol = series.Symbol
		points = series.Prices
	}
	c.Points = len(points)
	c.Candles = geometry.Candles(points, price, l.Gap)
	c.Volume = geometry.VolumeBars(points, volume, l.Gap)
	c.RSI = geometry.RSI(points, rsi)
	c.MACD = geometry.MACD(points, macd, l.Gap)
	return c
}
