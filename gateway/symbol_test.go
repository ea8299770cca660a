package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSymbol(t *testing.T) {
	cases := map[string]string{
		"btc/usdt":  "BTC/USDT",
		"BTCUSDT":   "BTC/USDT",
		" indy/usdt": "INDY/USDT",
	}
	for in, want := range cases {
		sym, err := ValidateSymbol(in)
		require.NoError(t, err, in)
		p, err := ParsePair(sym)
		require.NoError(t, err, in)
		assert.Equal(t, want, p.String())
	}
	for _, bad := range []string{"", "B", "BTC-USDT", "BTC/", "/USDT", "1INCH/USDT", "BTC/USDT/EUR"} {
		_, err := ValidateSymbol(bad)
		assert.True(t, errors.Is(err, ErrInvalidSymbol), "expected invalid symbol for %q", bad)
	}
}

func TestValidateSymbolKeepsFormat(t *testing.T) {
	sym, err := ValidateSymbol("ethusdt")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", sym)
}

func TestParsePairQuoteSuffix(t *testing.T) {
	p, err := ParsePair("ETHFDUSD")
	require.NoError(t, err)
	assert.Equal(t, Pair{Base: "ETH", Quote: "FDUSD"}, p)
	assert.Equal(t, "ETH_FDUSD", p.Join("_"))

	p, err = ParsePair("SOLUSD")
	require.NoError(t, err)
	assert.Equal(t, "SOL/USD", p.String())

	_, err = ParsePair("ABCDEF")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestValidateExchange(t *testing.T) {
	id, err := ValidateExchange(" GateIO ")
	require.NoError(t, err)
	assert.Equal(t, "gateio", id)

	_, err = ValidateExchange("ftx")
	require.ErrorIs(t, err, ErrUnsupportedExchange)
	assert.Contains(t, err.Error(), "mexc")

	info, ok := LookupExchange("bitget")
	require.True(t, ok)
	assert.Contains(t, info.Credentials, "BITGET_PASSPHRASE")
	assert.False(t, info.SupportsDriver(DriverREST))
	assert.True(t, info.SupportsDriver(DriverPaper))
	assert.ElementsMatch(t, []string{"mexc", "bitget", "gateio", "kraken", "binance"}, SupportedExchanges())
}
