package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
)

// Selection is the instrument and history window the operator is looking at.
type Selection struct {
	CoinID string `json:"coin_id"`
	Days   int    `json:"days"`
}

func (s Selection) Timeframe() repository.Timeframe { return repository.Timeframe(s.Days) }

func (s Selection) String() string { return s.CoinID + "/" + s.Timeframe().Label() }

// Validate rejects an empty instrument or an unsupported window. Instruments
// outside the catalogue are allowed.
func (s Selection) Validate() error {
	if s.CoinID == "" {
		return fmt.Errorf("%w: coin_id is required", models.ErrInvalidSelection)
	}
	if !repository.IsValidTimeframe(s.Timeframe()) {
		return fmt.Errorf("%w: unsupported days %d", models.ErrInvalidSelection, s.Days)
	}
	return nil
}

// merge applies a partial update: an empty coin or zero days keeps the
// current value.
func (s Selection) merge(coinID string, days int) Selection {
	if c := strings.ToLower(strings.TrimSpace(coinID)); c != "" {
		s.CoinID = c
	}
	if days != 0 {
		s.Days = days
	}
	return s
}

func ohlcvParams(s Selection) string { return s.CoinID + ":" + strconv.Itoa(s.Days) }

// Tab is the active right-hand panel.
type Tab string

const (
	TabSignals Tab = "signals"
	TabScalper Tab = "scalper"
)

func (t Tab) Valid() bool { return t == TabSignals || t == TabScalper }
