package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := map[string]Symbol{
		"SOL":           {Base: "SOL", Quote: "USDT"},
		"solusdt":       {Base: "SOL", Quote: "USDT"},
		"ETH/USDT":      {Base: "ETH", Quote: "USDT"},
		"BTC/USDT:USDT": {Base: "BTC", Quote: "USDT"},
		"":              {},
	}
	for in, want := range cases {
		assert.Equal(t, want, Parse(in), in)
	}
}

func TestPairRoundTrip(t *testing.T) {
	assert.Equal(t, "SOLUSDT", PairOf("SOL"))
	assert.Equal(t, "SOL", BaseOf("SOLUSDT"))
	assert.Equal(t, "ETHUSDT", PairOf("eth/usdt"))
	assert.Equal(t, "BTC", BaseOf("BTC/USDT:USDT"))
}

func TestNormalizeListDedupes(t *testing.T) {
	got := NormalizeList([]string{"SOL", "SOLUSDT", " eth ", ""})
	assert.Equal(t, []string{"SOL", "ETH"}, got)
}
