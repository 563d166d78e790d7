package models

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSeriesDropsNonIncreasingAndNonFinite(t *testing.T) {
	in := []PricePoint{
		{Time: 1000, Open: 1, High: 2, Low: 1, Close: 2},
		{Time: 1000, Open: 1, High: 2, Low: 1, Close: 2},
		{Time: 2000, Open: math.NaN(), High: 2, Low: 1, Close: 2},
		{Time: 3000, Open: 2, High: 3, Low: 1, Close: 1},
		{Time: 2500, Open: 2, High: 3, Low: 1, Close: 1},
	}

	out, dropped := SanitizeSeries(in)
	assert.Equal(t, 3, dropped)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1000), out[0].Time)
	assert.Equal(t, int64(3000), out[1].Time)
}

func TestBoundsWidensMalformedBar(t *testing.T) {
	p := PricePoint{Open: 10, High: 9, Low: 11, Close: 8}
	assert.False(t, p.Valid())

	low, high := p.Bounds()
	assert.Equal(t, 8.0, low)
	assert.Equal(t, 11.0, high)
}

func TestBoundsOfInvertedBar(t *testing.T) {
	p := PricePoint{Open: 5, High: 4, Low: 6, Close: 5}

	low, high := p.Bounds()
	assert.Equal(t, 4.0, low)
	assert.Equal(t, 6.0, high)
}

func TestCredentialsNeverPrintSecrets(t *testing.T) {
	c := Credentials{
		ExchangeID: "binance",
		APIKey:     "AKIA-very-secret-1234",
		Secret:     "s3cr3t",
		Passphrase: "hunter2",
		Symbol:     "BTC/USDT",
	}

	for _, s := range []string{c.String(), fmt.Sprintf("%v", c), fmt.Sprintf("%+v", c), fmt.Sprintf("%#v", c)} {
		assert.NotContains(t, s, "s3cr3t")
		assert.NotContains(t, s, "hunter2")
		assert.NotContains(t, s, "AKIA-very-secret")
	}

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "s3cr3t")
	assert.NotContains(t, string(b), "hunter2")
	assert.Contains(t, string(b), "****1234")
}

func TestCredentialsValidate(t *testing.T) {
	err := Credentials{ExchangeID: "binance", Symbol: "BTC/USDT"}.Validate()
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), "secret")

	assert.NoError(t, Credentials{ExchangeID: "okx", APIKey: "k", Secret: "s", Symbol: "ETH/USDT"}.Validate())
}

func TestDirectionNormalize(t *testing.T) {
	assert.Equal(t, DirectionBull, Direction("bull").Normalize())
	assert.Equal(t, DirectionNeutral, Direction("sideways").Normalize())
}

func TestLookupInstrument(t *testing.T) {
	in, ok := LookupInstrument("solana")
	require.True(t, ok)
	assert.Equal(t, "SOL", in.Symbol)

	_, ok = LookupInstrument("nope")
	assert.False(t, ok)
	assert.Len(t, Catalog(), 10)
}
