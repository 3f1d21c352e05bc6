package profit

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

func position(collateral, debt *big.Int) *models.Position {
	return &models.Position{
		ID:            1,
		Collateral:    collateral,
		Debt:          debt,
		BackingShares: big.NewInt(1),
	}
}

// quoteAt builds a quote for a USD price with 8 decimals of scale.
func quoteAt(t *testing.T, usd string) *models.PriceQuote {
	t.Helper()
	price := decimal.RequireFromString(usd).Shift(8)
	return &models.PriceQuote{Price: price.BigInt(), Decimals: 8}
}

func eth(units string) *big.Int {
	return decimal.RequireFromString(units).Shift(18).BigInt()
}

func TestEstimate(t *testing.T) {
	t.Run("reference scenario", func(t *testing.T) {
		// 0.65 base units collateral, 2400 debt units, $4503.27, 5% bonus,
		// 0.01 gas: bonus $120, gas $45.0327, net $74.9673 (~0.016647 base).
		est := NewEstimator(Config{})
		got := est.Estimate(position(eth("0.65"), eth("2400")), quoteAt(t, "4503.27"))

		tolerance := decimal.RequireFromString("0.15")
		assert.True(t, got.Bonus.Sub(decimal.RequireFromString("120.09")).Abs().LessThan(tolerance),
			"bonus %s", got.Bonus)
		assert.True(t, got.GasCost.Sub(decimal.RequireFromString("45.03")).Abs().LessThan(tolerance),
			"gas cost %s", got.GasCost)
		assert.True(t, got.NetUSD.Sub(decimal.RequireFromString("75.06")).Abs().LessThan(tolerance),
			"net usd %s", got.NetUSD)
		assert.True(t, got.NetBase.Sub(decimal.RequireFromString("0.01667")).Abs().LessThan(decimal.RequireFromString("0.0001")),
			"net base %s", got.NetBase)
		assert.True(t, got.CollateralValue.Sub(decimal.RequireFromString("2927.12")).Abs().LessThan(tolerance),
			"collateral value %s", got.CollateralValue)
	})

	t.Run("never negative when bonus is below gas", func(t *testing.T) {
		// Tiny debt: bonus well under the gas cost.
		est := NewEstimator(Config{})
		got := est.Estimate(position(eth("1"), eth("10")), quoteAt(t, "4503.27"))

		assert.True(t, got.NetUSD.IsZero(), "net usd %s", got.NetUSD)
		assert.True(t, got.NetBase.IsZero(), "net base %s", got.NetBase)
	})

	t.Run("exactly break-even returns zero", func(t *testing.T) {
		// price $100, gas 0.01 -> $1 cost; debt 20 at 5% -> $1 bonus.
		est := NewEstimator(Config{})
		got := est.Estimate(position(eth("1"), eth("20")), quoteAt(t, "100"))

		assert.True(t, got.NetUSD.IsZero())
	})

	t.Run("config overrides apply", func(t *testing.T) {
		bonus := decimal.NewFromInt(10)
		gas := decimal.RequireFromString("0.02")
		est := NewEstimator(Config{
			BonusPercent: &bonus,
			GasEstimate:  &gas,
		})
		got := est.Estimate(position(eth("1"), eth("100")), quoteAt(t, "100"))

		// bonus 100*10% = $10, gas 0.02*100 = $2, net $8, base 0.08.
		assert.True(t, decimal.NewFromInt(10).Equal(got.Bonus), "bonus %s", got.Bonus)
		assert.True(t, decimal.NewFromInt(2).Equal(got.GasCost), "gas %s", got.GasCost)
		assert.True(t, decimal.NewFromInt(8).Equal(got.NetUSD), "net %s", got.NetUSD)
		assert.True(t, decimal.RequireFromString("0.08").Equal(got.NetBase), "base %s", got.NetBase)
	})

	t.Run("explicit zero overrides are honored", func(t *testing.T) {
		zero := decimal.Zero
		est := NewEstimator(Config{
			BonusPercent: &zero,
			GasEstimate:  &zero,
		})
		got := est.Estimate(position(eth("1"), eth("100")), quoteAt(t, "100"))

		// Zero must mean zero, not the defaults.
		assert.True(t, got.Bonus.IsZero(), "bonus %s", got.Bonus)
		assert.True(t, got.GasCost.IsZero(), "gas %s", got.GasCost)
		assert.True(t, got.NetUSD.IsZero(), "net %s", got.NetUSD)
	})

	t.Run("respects quote decimal scaling", func(t *testing.T) {
		// Same $100 price encoded at different scales must agree.
		est := NewEstimator(Config{})
		p := position(eth("1"), eth("100"))

		for _, d := range []int32{0, 6, 8, 18} {
			q := &models.PriceQuote{
				Price:    decimal.NewFromInt(100).Shift(d).BigInt(),
				Decimals: d,
			}
			got := est.Estimate(p, q)
			assert.True(t, decimal.NewFromInt(100).Equal(got.Price), "decimals %d: price %s", d, got.Price)
			assert.True(t, decimal.NewFromInt(4).Equal(got.NetUSD), "decimals %d: net %s", d, got.NetUSD)
		}
	})

	t.Run("nil amounts are treated as zero", func(t *testing.T) {
		est := NewEstimator(Config{})
		got := est.Estimate(&models.Position{ID: 9}, quoteAt(t, "4503.27"))
		assert.True(t, got.NetUSD.IsZero())
		assert.True(t, got.CollateralValue.IsZero())
	})
}
