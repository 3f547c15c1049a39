package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestLineKey_RoundTrip(t *testing.T) {
	keys := []LineKey{
		{ProductID: 10},
		{ProductID: 10, VariantID: 42},
		{ProductID: 1, VariantID: 1},
		{ProductID: 123456789, VariantID: 987654321},
		// Keys whose digits could collide under naive concatenation.
		{ProductID: 1, VariantID: 23},
		{ProductID: 12, VariantID: 3},
		{ProductID: 123},
	}

	for _, key := range keys {
		parsed, err := ParseLineKey(key.String())
		require.NoError(t, err, "key %q", key.String())
		assert.Equal(t, key, parsed)
	}
}

func TestLineKey_StringForm(t *testing.T) {
	assert.Equal(t, "10", LineKey{ProductID: 10}.String())
	assert.Equal(t, "10:42", LineKey{ProductID: 10, VariantID: 42}.String())
}

func TestParseLineKey_Invalid(t *testing.T) {
	invalid := []string{"", "abc", "10:", ":42", "10:abc", "-1", "0", "10:0", "10:42:7"}

	for _, s := range invalid {
		_, err := ParseLineKey(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestUnitPrice_VariantSalePriceWins(t *testing.T) {
	snap := LineSnapshot{
		Product: ProductSnapshot{Price: "29.00", SalePrice: "27.00"},
		Variant: &VariantSnapshot{Price: "31.00", SalePrice: "25.00"},
	}

	assert.True(t, snap.UnitPrice().Equal(mustDecimal(t, "25.00")))
}

func TestUnitPrice_FallsThroughInvalidPrices(t *testing.T) {
	snap := LineSnapshot{
		Product: ProductSnapshot{Price: "29.00"},
		Variant: &VariantSnapshot{Price: "not-a-price", SalePrice: ""},
	}

	assert.True(t, snap.UnitPrice().Equal(mustDecimal(t, "29.00")))
}

func TestUnitPrice_NoVariantUsesProductPrice(t *testing.T) {
	snap := LineSnapshot{
		Product: ProductSnapshot{Price: "100"},
	}

	assert.True(t, snap.UnitPrice().Equal(mustDecimal(t, "100")))
}

func TestUnitPrice_NothingParsesIsZero(t *testing.T) {
	snap := LineSnapshot{
		Product: ProductSnapshot{Price: "free"},
	}

	assert.True(t, snap.UnitPrice().IsZero())
}
