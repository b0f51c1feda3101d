package services

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFeed struct {
	price int64
	err   error
	calls int
}

func (f *staticFeed) SpotPriceMinor(ctx context.Context) (int64, error) {
	f.calls++
	return f.price, f.err
}

func TestPriceCalculator_Quote_FixedPriceSale(t *testing.T) {
	// Spot price of 1000.00 makes a 7-unit mint cost 700 minor units.
	feed := &staticFeed{price: 100_000}
	calc := NewPriceCalculator(feed, 0, 0)

	quote, err := calc.Quote(context.Background(), 10_000_000, 250, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), quote.Amount)
	assert.Equal(t, int64(725), quote.Fee) // 25 protocol + 700 settlement
}

func TestPriceCalculator_Quote_Deterministic(t *testing.T) {
	feed := &staticFeed{price: 100_000}
	calc := NewPriceCalculator(feed, 0, 0)

	first, err := calc.Quote(context.Background(), 10_000_000, 250, 7)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		quote, err := calc.Quote(context.Background(), 10_000_000, 250, 7)
		require.NoError(t, err)
		assert.Equal(t, first, quote)
	}
}

func TestPriceCalculator_Quote_TruncatesTowardZero(t *testing.T) {
	tests := []struct {
		name           string
		rawPrice       int64
		feeBps         int64
		settlementCost int64
		spotMinor      int64
		wantAmount     int64
		wantFee        int64
	}{
		{
			name:     "protocol fee truncates",
			rawPrice: 10_010_000, feeBps: 250, settlementCost: 0, spotMinor: 0,
			wantAmount: 1001, wantFee: 25, // 1001*250/10000 = 25.025
		},
		{
			name:     "settlement conversion truncates",
			rawPrice: 10_000_000, feeBps: 0, settlementCost: 7, spotMinor: 999,
			wantAmount: 1000, wantFee: 6, // 7*999/1000 = 6.993
		},
		{
			name:     "sub-unit stored price keeps its cents",
			rawPrice: 510_000, feeBps: 0, settlementCost: 0, spotMinor: 0,
			wantAmount: 51, wantFee: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewPriceCalculator(&staticFeed{price: tt.spotMinor}, 0, 0)

			quote, err := calc.Quote(context.Background(), tt.rawPrice, tt.feeBps, tt.settlementCost)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, quote.Amount)
			assert.Equal(t, tt.wantFee, quote.Fee)
		})
	}
}

func TestPriceCalculator_Quote_GatewayFeeAddon(t *testing.T) {
	feed := &staticFeed{price: 100_000}
	calc := NewPriceCalculator(feed, 290, 30) // 2.9% + 30

	quote, err := calc.Quote(context.Background(), 10_000_000, 250, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), quote.Amount)
	assert.Equal(t, int64(725+29+30), quote.Fee)
}

func TestPriceCalculator_Quote_FeedError(t *testing.T) {
	calc := NewPriceCalculator(&staticFeed{err: assert.AnError}, 0, 0)

	_, err := calc.Quote(context.Background(), 10_000_000, 250, 7)
	assert.Error(t, err)
}

func TestPriceFeed_SpotPriceMinor(t *testing.T) {
	db, mock := redismock.NewClientMock()
	feed := NewPriceFeed(db, "solana")

	mock.ExpectGet("price:solana").SetVal("1000")

	price, err := feed.SpotPriceMinor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceFeed_SpotPriceMinor_TruncatesFraction(t *testing.T) {
	db, mock := redismock.NewClientMock()
	feed := NewPriceFeed(db, "solana")

	mock.ExpectGet("price:solana").SetVal("151.2391")

	price, err := feed.SpotPriceMinor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(15123), price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceFeed_SpotPriceMinor_BadValue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	feed := NewPriceFeed(db, "solana")

	mock.ExpectGet("price:solana").SetVal("not-a-price")

	_, err := feed.SpotPriceMinor(context.Background())
	assert.Error(t, err)
}
