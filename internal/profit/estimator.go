// Package profit estimates the net proceeds of liquidating a position under
// a given price quote. The estimate is the sole gate on real-money
// execution, so every intermediate quantity is logged and carried in the
// result for after-the-fact verification.
package profit

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// Defaults for the estimator configuration.
var (
	DefaultBonusPercent = decimal.NewFromInt(5)
	// DefaultGasEstimate is a deliberately conservative fixed cost in base
	// asset units, not a live gas price query.
	DefaultGasEstimate   = decimal.RequireFromString("0.01")
	DefaultAssetDecimals = int32(18)
	DefaultDebtDecimals  = int32(18)
)

// Config tunes the estimator.
type Config struct {
	// BonusPercent is the liquidation bonus as a percentage of debt value.
	// nil selects the default; an explicit zero disables the bonus.
	BonusPercent *decimal.Decimal
	// GasEstimate is the fixed execution cost in base asset units. nil
	// selects the default; an explicit zero disables the gas charge.
	GasEstimate *decimal.Decimal
	// AssetDecimals scales raw collateral amounts into base asset units.
	AssetDecimals int32
	// DebtDecimals scales raw debt amounts into debt token units. The debt
	// token is assumed 1:1 USD-pegged.
	DebtDecimals int32
}

// Estimate carries the outcome along with every intermediate quantity.
type Estimate struct {
	Price           decimal.Decimal `json:"price"`
	CollateralValue decimal.Decimal `json:"collateral_value"`
	DebtValue       decimal.Decimal `json:"debt_value"`
	Bonus           decimal.Decimal `json:"bonus"`
	GasCost         decimal.Decimal `json:"gas_cost"`
	NetUSD          decimal.Decimal `json:"net_usd"`
	NetBase         decimal.Decimal `json:"net_base"`
}

// Estimator computes expected liquidation profit.
type Estimator struct {
	bonusPercent  decimal.Decimal
	gasEstimate   decimal.Decimal
	assetDecimals int32
	debtDecimals  int32
	log           *logrus.Entry
}

// NewEstimator creates an estimator, filling unset config fields with the
// defaults.
func NewEstimator(cfg Config) *Estimator {
	e := &Estimator{
		bonusPercent:  DefaultBonusPercent,
		gasEstimate:   DefaultGasEstimate,
		assetDecimals: cfg.AssetDecimals,
		debtDecimals:  cfg.DebtDecimals,
		log:           logrus.WithField("component", "profit"),
	}
	if cfg.BonusPercent != nil {
		e.bonusPercent = *cfg.BonusPercent
	}
	if cfg.GasEstimate != nil {
		e.gasEstimate = *cfg.GasEstimate
	}
	if e.assetDecimals == 0 {
		e.assetDecimals = DefaultAssetDecimals
	}
	if e.debtDecimals == 0 {
		e.debtDecimals = DefaultDebtDecimals
	}
	return e
}

var hundred = decimal.NewFromInt(100)

// Estimate computes the expected net profit of liquidating the position at
// the quoted price, in USD and in base asset units. A non-positive result is
// clamped to zero; callers must treat zero as "do not execute".
func (e *Estimator) Estimate(position *models.Position, quote *models.PriceQuote) Estimate {
	price := quote.Numeric()

	collateral := decimal.Zero
	if position.Collateral != nil {
		collateral = decimal.NewFromBigInt(position.Collateral, -e.assetDecimals)
	}
	debt := decimal.Zero
	if position.Debt != nil {
		debt = decimal.NewFromBigInt(position.Debt, -e.debtDecimals)
	}

	collateralValue := collateral.Mul(price)
	debtValue := debt // 1:1 USD peg
	bonus := debtValue.Mul(e.bonusPercent).Div(hundred)
	gasCost := e.gasEstimate.Mul(price)

	netUSD := bonus.Sub(gasCost)
	netBase := decimal.Zero
	if netUSD.Sign() <= 0 {
		netUSD = decimal.Zero
	} else if price.Sign() > 0 {
		netBase = netUSD.Div(price)
	}

	result := Estimate{
		Price:           price,
		CollateralValue: collateralValue,
		DebtValue:       debtValue,
		Bonus:           bonus,
		GasCost:         gasCost,
		NetUSD:          netUSD,
		NetBase:         netBase,
	}

	e.log.WithFields(logrus.Fields{
		"position_id":      position.ID,
		"price":            price.String(),
		"collateral_value": collateralValue.String(),
		"debt_value":       debtValue.String(),
		"bonus":            bonus.String(),
		"gas_cost":         gasCost.String(),
		"net_usd":          netUSD.String(),
		"net_base":         netBase.String(),
	}).Info("profit estimate")

	return result
}
