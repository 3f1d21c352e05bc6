// Package liquidator drives liquidation attempts end to end: balance check,
// profit check, execution, result reporting. Each attempt is a small state
// machine; outcomes are reported, recorded, and published but never retried
// within the same price tick.
package liquidator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
	"github.com/nusdprotocol/liquidation-service/internal/profit"
)

// DefaultMaxConcurrent bounds how many eligible positions one orchestration
// pass processes per price tick. Positions beyond the cap wait for the next
// tick.
const DefaultMaxConcurrent = 3

// Executor is the write-side ledger surface the orchestrator needs.
type Executor interface {
	DebtTokenBalance(ctx context.Context) (*big.Int, error)
	SubmitLiquidation(ctx context.Context, id uint64) (common.Hash, error)
}

// AttemptStore persists attempt outcomes for auditing. A nil store disables
// recording without affecting the decision path.
type AttemptStore interface {
	CreateAttempt(a *models.LiquidationAttempt) error
}

// EventPublisher announces completed attempts downstream. May be nil.
type EventPublisher interface {
	PublishLiquidationResult(ctx context.Context, attempt *models.LiquidationAttempt) error
}

// Config tunes the orchestrator.
type Config struct {
	// MinProfitUSD is the smallest estimated net profit worth executing.
	MinProfitUSD decimal.Decimal
	// MaxConcurrent caps attempts per pass; defaults to 3.
	MaxConcurrent int
}

// Orchestrator runs liquidation attempts against eligible positions.
type Orchestrator struct {
	executor  Executor
	estimator *profit.Estimator
	store     AttemptStore
	publisher EventPublisher
	cfg       Config
	log       *logrus.Entry
}

// NewOrchestrator wires the orchestrator. store and publisher may be nil.
func NewOrchestrator(executor Executor, estimator *profit.Estimator, store AttemptStore, publisher EventPublisher, cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Orchestrator{
		executor:  executor,
		estimator: estimator,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		log:       logrus.WithField("component", "liquidator"),
	}
}

// ProcessEligible runs one orchestration pass over the eligible set, in
// eligibility order, capped at MaxConcurrent attempts. Every outcome is
// collected; a failed attempt never stops its siblings.
func (o *Orchestrator) ProcessEligible(ctx context.Context, eligible []*models.Position, quote *models.PriceQuote) []*models.LiquidationAttempt {
	if len(eligible) > o.cfg.MaxConcurrent {
		o.log.WithFields(logrus.Fields{
			"eligible": len(eligible),
			"cap":      o.cfg.MaxConcurrent,
		}).Info("deferring positions beyond concurrency cap to next tick")
		eligible = eligible[:o.cfg.MaxConcurrent]
	}

	attempts := make([]*models.LiquidationAttempt, len(eligible))
	var wg sync.WaitGroup
	for i, position := range eligible {
		wg.Add(1)
		go func(i int, position *models.Position) {
			defer wg.Done()
			attempts[i] = o.Liquidate(ctx, position, quote)
		}(i, position)
	}
	wg.Wait()

	for _, attempt := range attempts {
		o.report(ctx, attempt)
	}
	return attempts
}

// Liquidate evaluates and, when profitable, executes a single liquidation.
// The attempt advances PENDING -> BALANCE_CHECKED -> PROFIT_CHECKED and
// terminates in EXECUTED, DECLINED, or FAILED.
func (o *Orchestrator) Liquidate(ctx context.Context, position *models.Position, quote *models.PriceQuote) *models.LiquidationAttempt {
	attempt := &models.LiquidationAttempt{
		PositionID: position.ID,
		State:      models.AttemptStatePending,
		Price:      quote.Numeric(),
		CreatedAt:  time.Now(),
	}

	balance, err := o.executor.DebtTokenBalance(ctx)
	if err != nil {
		return o.fail(attempt, err)
	}
	attempt.State = models.AttemptStateBalanceChecked

	if position.Debt != nil && balance.Cmp(position.Debt) < 0 {
		return o.decline(attempt, models.DeclineInsufficientBalance)
	}

	estimate := o.estimator.Estimate(position, quote)
	attempt.State = models.AttemptStateProfitChecked
	attempt.ProfitUSD = estimate.NetUSD
	attempt.ProfitBase = estimate.NetBase

	// Zero means "do not execute", never "execute for free".
	if estimate.NetUSD.Sign() <= 0 || estimate.NetUSD.LessThan(o.cfg.MinProfitUSD) {
		return o.decline(attempt, models.DeclineProfitBelowThreshold)
	}

	txHash, err := o.executor.SubmitLiquidation(ctx, position.ID)
	if err != nil {
		return o.fail(attempt, err)
	}

	attempt.State = models.AttemptStateExecuted
	attempt.TxHash = txHash.Hex()
	o.log.WithFields(logrus.Fields{
		"position_id": position.ID,
		"tx":          attempt.TxHash,
		"profit_usd":  attempt.ProfitUSD.String(),
		"profit_base": attempt.ProfitBase.String(),
	}).Info("position liquidated")
	return attempt
}

func (o *Orchestrator) decline(attempt *models.LiquidationAttempt, reason string) *models.LiquidationAttempt {
	attempt.State = models.AttemptStateDeclined
	attempt.DeclineReason = reason
	o.log.WithFields(logrus.Fields{
		"position_id": attempt.PositionID,
		"reason":      reason,
	}).Info("liquidation declined")
	return attempt
}

func (o *Orchestrator) fail(attempt *models.LiquidationAttempt, err error) *models.LiquidationAttempt {
	attempt.State = models.AttemptStateFailed
	attempt.Error = err.Error()
	o.log.WithFields(logrus.Fields{
		"position_id": attempt.PositionID,
		"state":       attempt.State,
	}).WithError(err).Warn("liquidation attempt failed")
	return attempt
}

// report records and publishes an attempt outcome. Recording failures are
// logged but never affect the attempt itself.
func (o *Orchestrator) report(ctx context.Context, attempt *models.LiquidationAttempt) {
	if o.store != nil {
		if err := o.store.CreateAttempt(attempt); err != nil {
			o.log.WithError(err).Warn("failed to record liquidation attempt")
		}
	}
	if o.publisher != nil {
		if err := o.publisher.PublishLiquidationResult(ctx, attempt); err != nil {
			o.log.WithError(err).Warn("failed to publish liquidation result")
		}
	}
}
