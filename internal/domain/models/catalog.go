package models

// Instrument is a selectable coin. ID is the backend's coin identifier.
type Instrument struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

var catalog = []Instrument{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
	{ID: "ethereum", Name: "Ethereum", Symbol: "ETH"},
	{ID: "solana", Name: "Solana", Symbol: "SOL"},
	{ID: "binancecoin", Name: "BNB", Symbol: "BNB"},
	{ID: "ripple", Name: "XRP", Symbol: "XRP"},
	{ID: "cardano", Name: "Cardano", Symbol: "ADA"},
	{ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE"},
	{ID: "polkadot", Name: "Polkadot", Symbol: "DOT"},
	{ID: "avalanche-2", Name: "Avalanche", Symbol: "AVAX"},
	{ID: "chainlink", Name: "Chainlink", Symbol: "LINK"},
}

// Catalog returns a copy of the selectable instruments in display order.
func Catalog() []Instrument {
	out := make([]Instrument, len(catalog))
	copy(out, catalog)
	return out
}

// LookupInstrument finds an instrument by ID.
func LookupInstrument(id string) (Instrument, bool) {
	for _, in := range catalog {
		if in.ID == id {
			return in, true
		}
	}
	return Instrument{}, false
}
