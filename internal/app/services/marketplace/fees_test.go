package marketplace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

func TestSplitRoyalty(t *testing.T) {
	cases := []struct {
		name      string
		price     uint64
		rateBps   uint16
		royalty   uint64
		remainder uint64
	}{
		{name: "five percent", price: 800, rateBps: 500, royalty: 40, remainder: 760},
		{name: "rounds down", price: 999, rateBps: 500, royalty: 49, remainder: 950},
		{name: "zero rate", price: 1000, rateBps: 0, royalty: 0, remainder: 1000},
		{name: "full rate", price: 1000, rateBps: 10000, royalty: 1000, remainder: 0},
		{name: "zero price", price: 0, rateBps: 500, royalty: 0, remainder: 0},
		{name: "dust price below one unit", price: 19, rateBps: 500, royalty: 0, remainder: 19},
		{name: "max price no wrap", price: ^uint64(0), rateBps: 10000, royalty: ^uint64(0), remainder: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			royalty, remainder, err := SplitRoyalty(tc.price, tc.rateBps)
			require.NoError(t, err)
			require.Equal(t, tc.royalty, royalty)
			require.Equal(t, tc.remainder, remainder)
			require.Equal(t, tc.price, royalty+remainder, "split must conserve the price")
		})
	}
}

func TestSplitRoyalty_RateAboveFullPrice(t *testing.T) {
	// Rates above 10000 bps are not rejected at update time; the royalty
	// would exceed the price and the settlement fails instead.
	_, _, err := SplitRoyalty(10000, 10001)
	require.ErrorIs(t, err, errors.ErrOverflow)
}

func TestSplitRoyalty_WideIntermediate(t *testing.T) {
	// price * rateBps overflows 64 bits; the widened multiply keeps the
	// quotient exact.
	price := uint64(1) << 62
	royalty, remainder, err := SplitRoyalty(price, 500)
	require.NoError(t, err)
	require.Equal(t, price/20, royalty)
	require.Equal(t, price-price/20, remainder)
}
