package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Credentials authenticate a scalper session against an exchange. They live
// in memory for the lifetime of one session only. String and MarshalJSON
// redact secrets so a stray log line or event payload cannot leak them.
type Credentials struct {
	ExchangeID string
	APIKey     string
	Secret     string
	Passphrase string
	Testnet    bool
	Symbol     string
}

// Validate performs the checks that do not need the exchange.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ExchangeID) == "" {
		missing = append(missing, "exchange_id")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(c.Secret) == "" {
		missing = append(missing, "secret")
	}
	if strings.TrimSpace(c.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{exchange=%s symbol=%s testnet=%t api_key=%s}",
		c.ExchangeID, c.Symbol, c.Testnet, mask(c.APIKey))
}

func (c Credentials) GoString() string { return c.String() }

func (c Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ExchangeID string `json:"exchange_id"`
		Symbol     string `json:"symbol"`
		Testnet    bool   `json:"testnet"`
		APIKey     string `json:"api_key"`
	}{c.ExchangeID, c.Symbol, c.Testnet, mask(c.APIKey)})
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// SessionState is the local view of a scalper session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionStarting
	SessionRunning
	SessionStopping
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionStarting:
		return "starting"
	case SessionRunning:
		return "running"
	case SessionStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SessionState) UnmarshalText(b []byte) error {
	for st := SessionIdle; st <= SessionStopping; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// TradeSignal is one order the bot placed.
type TradeSignal struct {
	Timestamp int64   `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Reason    string  `json:"reason"`
}

// ScalperStatus is the backend's report of the trading bot. Logs is the
// backend's recent window in receipt order, oldest first.
type ScalperStatus struct {
	IsRunning    bool          `json:"is_running"`
	Symbol       string        `json:"symbol,omitempty"`
	RecentTrades []TradeSignal `json:"recent_trades,omitempty"`
	Logs         []string      `json:"logs"`
}
