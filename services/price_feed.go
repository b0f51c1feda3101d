package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// 1 minor currency unit is 1/100 of the gateway's currency.
const currencyUnit = 100

// PriceKey is the cache key under which the price oracle publishes the
// latest spot price of an asset, as a decimal string.
func PriceKey(asset string) string {
	return fmt.Sprintf("price:%s", asset)
}

// PriceFeed reads the cached spot price of the native settlement asset.
// The oracle that maintains the cache is a separate process; a missing key
// means the feed is down and the purchase cannot be priced.
type PriceFeed struct {
	redis *redis.Client
	asset string
}

func NewPriceFeed(redisClient *redis.Client, asset string) *PriceFeed {
	return &PriceFeed{redis: redisClient, asset: asset}
}

// SpotPriceMinor returns the native asset's spot price in minor currency
// units, truncated toward zero.
func (f *PriceFeed) SpotPriceMinor(ctx context.Context) (int64, error) {
	val, err := f.redis.Get(ctx, PriceKey(f.asset)).Result()
	if err != nil {
		return 0, fmt.Errorf("read spot price for %s: %w", f.asset, err)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return 0, fmt.Errorf("parse spot price %q: %w", val, err)
	}

	return price.Mul(decimal.NewFromInt(currencyUnit)).IntPart(), nil
}
