package viewmodel

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"CryptoDash/internal/domain/models"
)

var printer = message.NewPrinter(language.English)

// Tone of a signed change figure.
type Tone string

const (
	ToneUp   Tone = "up"
	ToneDown Tone = "down"
)

// Overview is the market summary strip.
type Overview struct {
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	PriceLabel   string  `json:"price_label"`
	Change24h    float64 `json:"change_24h"`
	Change24hTxt string  `json:"change_24h_label"`
	Change24hDir Tone    `json:"change_24h_tone"`
	Change7dTxt  string  `json:"change_7d_label"`
	MarketCap    string  `json:"market_cap"`
	Volume24h    string  `json:"volume_24h"`
	Supply       string  `json:"circulating_supply"`
	ATH          string  `json:"ath"`
	ATL          string  `json:"atl"`
}

// BuildOverview formats an overview. A nil input yields nil.
func BuildOverview(o *models.MarketOverview) *Overview {
	if o == nil {
		return nil
	}
	tone := ToneUp
	if o.PriceChange24h < 0 {
		tone = ToneDown
	}
	return &Overview{
		Name:         o.Name,
		Symbol:       o.Symbol,
		Price:        o.CurrentPrice,
		PriceLabel:   FormatUSD(o.CurrentPrice),
		Change24h:    o.PriceChange24h,
		Change24hTxt: FormatPercent(o.PriceChange24h),
		Change24hDir: tone,
		Change7dTxt:  FormatPercent(o.PriceChange7d),
		MarketCap:    FormatCompact(o.MarketCap),
		Volume24h:    FormatCompact(o.Volume24h),
		Supply:       strings.TrimSpace(FormatCompact(o.CirculatingSupply) + " " + strings.ToUpper(o.Symbol)),
		ATH:          FormatUSD(o.ATH),
		ATL:          FormatUSD(o.ATL),
	}
}

// FormatUSD renders a dollar amount with grouping and two decimals.
func FormatUSD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

// FormatPercent renders a percentage with two decimals.
func FormatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

var compactUnits = []struct {
	div    float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// FormatCompact renders large magnitudes as 1.23K / 4.5M / 7B / 1T with at
// most two fraction digits.
func FormatCompact(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}

	for i, u := range compactUnits {
		if v < u.div {
			continue
		}
		scaled := round2(v / u.div)
		// 999.999K rounds to 1000K; promote to the next unit
		if scaled >= 1000 && i > 0 {
			u = compactUnits[i-1]
			scaled = round2(v / u.div)
		}
		return sign + trimFloat(scaled) + u.suffix
	}
	scaled := round2(v)
	if scaled >= 1000 {
		return sign + "1K"
	}
	return sign + trimFloat(scaled)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
