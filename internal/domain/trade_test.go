package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewTradeComputesFeesFromRate(t *testing.T) {
	price := decimal.NewFromInt(100)
	quantity := decimal.NewFromInt(10)
	makerRate := decimal.NewFromFloat(0.001)
	takerRate := decimal.NewFromFloat(0.002)

	trade := NewTrade("t1", "maker1", "taker1", price, quantity, time.Now(), makerRate, takerRate, nil, nil, "alice", "bob")

	assert.True(t, trade.MakerFee.Equal(decimal.NewFromInt(1000).Mul(makerRate)))
	assert.True(t, trade.TakerFee.Equal(decimal.NewFromInt(1000).Mul(takerRate)))
	assert.True(t, trade.Value().Equal(decimal.NewFromInt(1000)))
}

func TestNewTradeHonorsExplicitFeeOverride(t *testing.T) {
	price := decimal.NewFromInt(100)
	quantity := decimal.NewFromInt(10)
	override := decimal.NewFromInt(5)

	trade := NewTrade("t1", "maker1", "taker1", price, quantity, time.Now(),
		decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.01), &override, nil, "alice", "bob")

	assert.True(t, trade.MakerFee.Equal(override))
	assert.False(t, trade.TakerFee.Equal(override))
}
