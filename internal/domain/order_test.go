package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	cases := map[string]Side{
		"buy": Buy, "BID": Buy, "sell": Sell, "Ask": Sell,
	}
	for input, want := range cases {
		got, err := ParseSide(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSide("nonsense")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseTimeInForce(t *testing.T) {
	got, err := ParseTimeInForce("")
	require.NoError(t, err)
	assert.Equal(t, GTC, got)

	got, err = ParseTimeInForce("FOK")
	require.NoError(t, err)
	assert.Equal(t, FOK, got)

	_, err = ParseTimeInForce("bogus")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOrderValidate(t *testing.T) {
	base := Order{Price: decimal.NewFromInt(10), Quantity: decimal.NewFromInt(1)}

	assert.NoError(t, base.Validate())

	zeroPrice := base
	zeroPrice.Price = decimal.Zero
	assert.ErrorIs(t, zeroPrice.Validate(), ErrInvalidArgument)

	zeroQty := base
	zeroQty.Quantity = decimal.Zero
	assert.ErrorIs(t, zeroQty.Validate(), ErrInvalidArgument)

	gtdMissingExpiry := base
	gtdMissingExpiry.TimeInForce = GTD
	assert.ErrorIs(t, gtdMissingExpiry.Validate(), ErrInvalidArgument)

	expiry := time.Now().Add(time.Hour)
	gtdWithExpiry := base
	gtdWithExpiry.TimeInForce = GTD
	gtdWithExpiry.ExpiryTime = &expiry
	assert.NoError(t, gtdWithExpiry.Validate())
}

func TestOrderIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	gtc := Order{TimeInForce: GTC}
	assert.False(t, gtc.IsExpired(now))

	expired := Order{TimeInForce: GTD, ExpiryTime: &past}
	assert.True(t, expired.IsExpired(now))

	notYet := Order{TimeInForce: GTD, ExpiryTime: &future}
	assert.False(t, notYet.IsExpired(now))
}
