// Package chain implements the typed read/write surface against the
// protocol's on-chain contracts. Each logical call the service needs is a
// dedicated method; contract targets are resolved once at startup from the
// deployment registry.
package chain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrExecutionFailed indicates the ledger rejected or errored a liquidation
// submission.
var ErrExecutionFailed = errors.New("liquidation execution failed")

// ErrPositionNotFound indicates the controller has no position at the
// requested id.
var ErrPositionNotFound = errors.New("position not found")

// PositionState is the raw on-chain view of a position as read from the
// controller contract.
type PositionState struct {
	Owner         common.Address
	Vault         common.Address
	Collateral    *big.Int
	BackingShares *big.Int
	Debt          *big.Int
}
