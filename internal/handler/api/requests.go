package api

import (
	"strings"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
	"CryptoDash/internal/usecase/dashboard"
)

// SelectionRequest is a partial selection update. Omitted fields keep their
// current value.
type SelectionRequest struct {
	CoinID string `json:"coin_id" validate:"omitempty,max=64"`
	Days   int    `json:"days" validate:"omitempty,oneof=1 7 14 30 90"`
}

type TabRequest struct {
	Tab string `json:"tab" validate:"required,oneof=signals scalper"`
}

// StartScalperRequest carries the exchange credentials for one session. The
// request value is discarded once converted.
type StartScalperRequest struct {
	ExchangeID string `json:"exchange_id" validate:"required,max=64"`
	APIKey     string `json:"api_key" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
	Passphrase string `json:"passphrase"`
	Testnet    bool   `json:"testnet"`
	Symbol     string `json:"symbol" validate:"required,max=32"`
}

func (r *StartScalperRequest) credentials() models.Credentials {
	return models.Credentials{
		ExchangeID: strings.TrimSpace(r.ExchangeID),
		APIKey:     strings.TrimSpace(r.APIKey),
		Secret:     strings.TrimSpace(r.Secret),
		Passphrase: r.Passphrase,
		Testnet:    r.Testnet,
		Symbol:     strings.TrimSpace(r.Symbol),
	}
}

type TimeframeOption struct {
	Days  int    `json:"days"`
	Label string `json:"label"`
}

type CatalogResponse struct {
	Instruments []models.Instrument `json:"instruments"`
	Timeframes  []TimeframeOption   `json:"timeframes"`
	Default     TimeframeOption     `json:"default_timeframe"`
}

func catalogResponse() CatalogResponse {
	tfs := repository.Timeframes()
	opts := make([]TimeframeOption, 0, len(tfs))
	for _, tf := range tfs {
		opts = append(opts, TimeframeOption{Days: tf.Days(), Label: tf.Label()})
	}
	def := repository.DefaultTimeframe()
	return CatalogResponse{
		Instruments: models.Catalog(),
		Timeframes:  opts,
		Default:     TimeframeOption{Days: def.Days(), Label: def.Label()},
	}
}

// ChartResponse is the chart geometry plus the freshness of the series it
// was built from.
type ChartResponse struct {
	dashboard.Chart
	Feed dashboard.FeedState `json:"feed"`
}
