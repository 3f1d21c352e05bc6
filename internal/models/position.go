package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Position represents a collateralized debt position tracked by the service.
// Ratio and Eligible are derived from the last price quote consumed, not from
// live chain state; staleness between refreshes is expected and bounded by
// the refresh interval.
type Position struct {
	ID            uint64          `json:"id"`
	Owner         common.Address  `json:"owner"`
	Vault         common.Address  `json:"vault"`
	Collateral    *big.Int        `json:"collateral"`
	BackingShares *big.Int        `json:"backing_shares"`
	Debt          *big.Int        `json:"debt"`
	Ratio         decimal.Decimal `json:"ratio"`
	Threshold     decimal.Decimal `json:"threshold"`
	Eligible      bool            `json:"eligible"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// Active reports whether the position has non-zero backing shares.
func (p *Position) Active() bool {
	return p.BackingShares != nil && p.BackingShares.Sign() > 0
}

// IsLiquidatable reports whether the position is below its liquidation
// threshold. A position with zero backing shares is never liquidatable
// regardless of its ratio.
func (p *Position) IsLiquidatable() bool {
	if !p.Active() {
		return false
	}
	return p.Ratio.LessThan(p.Threshold)
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// the registry's writes.
func (p *Position) Clone() *Position {
	cp := *p
	if p.Collateral != nil {
		cp.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.BackingShares != nil {
		cp.BackingShares = new(big.Int).Set(p.BackingShares)
	}
	if p.Debt != nil {
		cp.Debt = new(big.Int).Set(p.Debt)
	}
	return &cp
}

// PositionEvent represents a Kafka event announcing a newly created position.
type PositionEvent struct {
	EventType  string    `json:"event_type"`
	PositionID uint64    `json:"position_id"`
	Owner      string    `json:"owner"`
	Timestamp  time.Time `json:"timestamp"`
}

// Position event type constants
const (
	EventPositionCreated = "POSITION_CREATED"
)
