package services

import (
	"context"
	"fmt"
)

// Stored prices use 6-decimal fixed point.
const storedPriceUnit = 1_000_000

// Protocol fees are expressed in basis points.
const bpsDivisor = 10_000

// Settlement costs are converted with a fixed scaling divisor.
const settlementDivisor = 1_000

// PriceQuote is a computed (amount, fee) pair in minor currency units.
type PriceQuote struct {
	Amount int64
	Fee    int64
}

// SpotPriceSource supplies the cached spot price of the native asset in
// minor currency units.
type SpotPriceSource interface {
	SpotPriceMinor(ctx context.Context) (int64, error)
}

// PriceCalculator turns a stored fixed-point price, a protocol fee in basis
// points and a settlement cost in native units into a gateway charge. All
// arithmetic is integer with truncation toward zero.
type PriceCalculator struct {
	feed SpotPriceSource

	// Gateway-side additive fee, applied on top of the protocol fee.
	// Both default to zero.
	gatewayFeeBps   int64
	gatewayFeeFixed int64
}

func NewPriceCalculator(feed SpotPriceSource, gatewayFeeBps, gatewayFeeFixed int64) *PriceCalculator {
	return &PriceCalculator{
		feed:            feed,
		gatewayFeeBps:   gatewayFeeBps,
		gatewayFeeFixed: gatewayFeeFixed,
	}
}

// Quote computes the charge for one purchase. rawPrice is the stored
// 6-decimal price, protocolFeeBps the protocol fee in basis points and
// settlementCostNative the cost of the on-ledger settlement transaction in
// native units.
func (c *PriceCalculator) Quote(ctx context.Context, rawPrice, protocolFeeBps, settlementCostNative int64) (PriceQuote, error) {
	// Multiply by the currency unit before dividing so sub-unit prices keep
	// their cents.
	amount := rawPrice * currencyUnit / storedPriceUnit
	protocolFee := amount * protocolFeeBps / bpsDivisor

	spot, err := c.feed.SpotPriceMinor(ctx)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("quote: %w", err)
	}
	settlementCost := settlementCostNative * spot / settlementDivisor

	fee := protocolFee + settlementCost
	if c.gatewayFeeBps > 0 || c.gatewayFeeFixed > 0 {
		fee += amount*c.gatewayFeeBps/bpsDivisor + c.gatewayFeeFixed
	}

	return PriceQuote{Amount: amount, Fee: fee}, nil
}
