package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attempt state constants
const (
	AttemptStatePending        = "PENDING"
	AttemptStateBalanceChecked = "BALANCE_CHECKED"
	AttemptStateProfitChecked  = "PROFIT_CHECKED"
	AttemptStateExecuted       = "EXECUTED"
	AttemptStateDeclined       = "DECLINED"
	AttemptStateFailed         = "FAILED"
)

// Decline reason constants
const (
	DeclineInsufficientBalance  = "INSUFFICIENT_BALANCE"
	DeclineProfitBelowThreshold = "PROFIT_BELOW_THRESHOLD"
)

// LiquidationAttempt is the outcome of evaluating one position against one
// price quote. Attempts are transient; a declined or failed position is
// re-evaluated fresh on the next price tick, never retried within the same
// one.
type LiquidationAttempt struct {
	ID            int             `json:"id,omitempty"`
	PositionID    uint64          `json:"position_id"`
	State         string          `json:"state"`
	DeclineReason string          `json:"decline_reason,omitempty"`
	Price         decimal.Decimal `json:"price"`
	ProfitUSD     decimal.Decimal `json:"profit_usd"`
	ProfitBase    decimal.Decimal `json:"profit_base"`
	TxHash        string          `json:"tx_hash,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Liquidation event type constants
const (
	EventLiquidationExecuted = "LIQUIDATION_EXECUTED"
	EventLiquidationDeclined = "LIQUIDATION_DECLINED"
	EventLiquidationFailed   = "LIQUIDATION_FAILED"
)

// LiquidationEvent represents a Kafka event describing a completed attempt.
type LiquidationEvent struct {
	EventType     string          `json:"event_type"`
	PositionID    uint64          `json:"position_id"`
	State         string          `json:"state"`
	DeclineReason string          `json:"decline_reason,omitempty"`
	ProfitUSD     decimal.Decimal `json:"profit_usd"`
	TxHash        string          `json:"tx_hash,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
