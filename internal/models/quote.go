package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultQuoteMaxAge is the freshness window applied when callers do not
// override it.
const DefaultQuoteMaxAge = 60 * time.Second

// PriceQuote is a signed, timestamped, decimal-scaled exchange rate between
// the collateral asset and the debt asset. Price is the raw integer value
// scaled by 10^Decimals; Signature is the oracle's attestation over the
// payload and is forwarded opaquely to the chain.
type PriceQuote struct {
	Price            *big.Int  `json:"price"`
	Decimals         int32     `json:"decimals"`
	DataTimestamp    time.Time `json:"data_timestamp"`
	RequestTimestamp time.Time `json:"request_timestamp"`
	AssetPair        string    `json:"asset_pair"`
	Signature        []byte    `json:"signature"`
}

// Numeric converts the raw scaled price into a decimal value, dividing by
// 10^Decimals. The scale always comes from the quote itself.
func (q *PriceQuote) Numeric() decimal.Decimal {
	if q.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(q.Price, -q.Decimals)
}

// IsFresh reports whether the quote's data timestamp is within maxAge of the
// current wall clock. Freshness is a consumer policy, not a property of the
// quote.
func (q *PriceQuote) IsFresh(maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultQuoteMaxAge
	}
	return time.Since(q.DataTimestamp) <= maxAge
}
