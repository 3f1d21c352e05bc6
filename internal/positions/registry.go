// Package positions owns the in-memory store of discovered positions. The
// registry is the single writer: every mutation goes through its methods,
// and concurrent producers (timers, the event stream) share it safely.
package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/chain"
	"github.com/nusdprotocol/liquidation-service/internal/models"
	"github.com/nusdprotocol/liquidation-service/internal/policy"
)

// Default batch sizes for bulk operations against the rate-limited endpoint.
const (
	DefaultDiscoverBatchSize = 10
	DefaultRefreshBatchSize  = 5
)

// Ledger is the subset of chain reads the registry needs.
type Ledger interface {
	PositionCount(ctx context.Context) (uint64, error)
	PositionByID(ctx context.Context, id uint64) (*chain.PositionState, error)
	VaultRatio(ctx context.Context, vault common.Address, quote *models.PriceQuote) (uint64, error)
}

// RegistryStats summarizes the tracked position set.
type RegistryStats struct {
	Total        int             `json:"total"`
	Active       int             `json:"active"`
	Eligible     int             `json:"eligible"`
	AverageRatio decimal.Decimal `json:"average_ratio"`
}

// Config tunes the registry.
type Config struct {
	// TierID is the operator's tier; it fixes the liquidation threshold
	// stamped onto every tracked position.
	TierID            uint64
	DiscoverBatchSize int
	RefreshBatchSize  int
}

// Registry tracks every discovered position keyed by id. Records are never
// deleted; a position whose backing shares drop to zero simply stops
// appearing in the active and eligible subsets.
type Registry struct {
	mu        sync.RWMutex
	positions map[uint64]*models.Position
	order     []uint64

	ledger        Ledger
	threshold     decimal.Decimal
	discoverBatch int
	refreshBatch  int
	log           *logrus.Entry
}

// NewRegistry creates an empty registry bound to the given ledger. The
// operator's tier is resolved to a threshold once, here, and applied to all
// positions it tracks.
func NewRegistry(ledger Ledger, cfg Config) *Registry {
	discoverBatch := cfg.DiscoverBatchSize
	if discoverBatch <= 0 {
		discoverBatch = DefaultDiscoverBatchSize
	}
	refreshBatch := cfg.RefreshBatchSize
	if refreshBatch <= 0 {
		refreshBatch = DefaultRefreshBatchSize
	}

	return &Registry{
		positions:     make(map[uint64]*models.Position),
		ledger:        ledger,
		threshold:     policy.ThresholdFor(cfg.TierID),
		discoverBatch: discoverBatch,
		refreshBatch:  refreshBatch,
		log:           logrus.WithField("component", "positions"),
	}
}

// Threshold returns the liquidation threshold applied to tracked positions.
func (r *Registry) Threshold() decimal.Decimal {
	return r.threshold
}

// DiscoverAll scans ids 1..count of the enumerable position collection in
// bounded concurrent batches. Individual failures are logged and skipped;
// a missing position stays invisible until the next scan or an AddOne.
func (r *Registry) DiscoverAll(ctx context.Context) error {
	count, err := r.ledger.PositionCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to query position count: %w", err)
	}

	r.log.WithField("count", count).Info("starting position discovery")

	var failed int
	for start := uint64(1); start <= count; start += uint64(r.discoverBatch) {
		end := start + uint64(r.discoverBatch) - 1
		if end > count {
			end = count
		}

		var wg sync.WaitGroup
		results := make(chan error, int(end-start)+1)
		for id := start; id <= end; id++ {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				if err := r.InitializeOne(ctx, id); err != nil {
					r.log.WithField("position_id", id).WithError(err).
						Warn("failed to initialize position, skipping")
					results <- err
					return
				}
				results <- nil
			}(id)
		}
		wg.Wait()
		close(results)
		for err := range results {
			if err != nil {
				failed++
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	r.log.WithFields(logrus.Fields{
		"discovered": r.Stats().Total,
		"failed":     failed,
	}).Info("position discovery complete")

	return nil
}

// InitializeOne reads a position from the ledger and stores it with ratio 0
// and eligibility false. Debt comes from the controller's explicit debt
// read; a failed read fails initialization rather than storing a zero debt.
func (r *Registry) InitializeOne(ctx context.Context, id uint64) error {
	state, err := r.ledger.PositionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read position %d: %w", id, err)
	}

	position := &models.Position{
		ID:            id,
		Owner:         state.Owner,
		Vault:         state.Vault,
		Collateral:    state.Collateral,
		BackingShares: state.BackingShares,
		Debt:          state.Debt,
		Ratio:         decimal.Zero,
		Threshold:     r.threshold,
		Eligible:      false,
		LastUpdated:   time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.positions[id]; ok {
		// Known id: refresh the raw fields in place, keep the last ratio.
		existing.Owner = position.Owner
		existing.Vault = position.Vault
		existing.Collateral = position.Collateral
		existing.BackingShares = position.BackingShares
		existing.Debt = position.Debt
		// Shares may have changed, so eligibility must be recomputed; a
		// position with zero backing shares is never eligible.
		existing.Eligible = existing.Active() && existing.Ratio.LessThan(existing.Threshold)
		existing.LastUpdated = position.LastUpdated
		return nil
	}
	r.positions[id] = position
	r.order = append(r.order, id)
	return nil
}

// AddOne registers a position announced by the creation event stream. It is
// idempotent: re-adding a known id re-reads its raw fields and nothing else.
func (r *Registry) AddOne(ctx context.Context, id uint64) error {
	r.mu.RLock()
	_, known := r.positions[id]
	r.mu.RUnlock()

	if err := r.InitializeOne(ctx, id); err != nil {
		return err
	}
	if !known {
		r.log.WithField("position_id", id).Info("tracking new position")
	}
	return nil
}

// RefreshOne recomputes a position's ratio and eligibility under the given
// quote. The ledger call runs without holding the registry lock; the derived
// snapshot is assigned atomically afterwards. A failed call leaves the prior
// state untouched.
func (r *Registry) RefreshOne(ctx context.Context, id uint64, quote *models.PriceQuote) error {
	r.mu.RLock()
	position, ok := r.positions[id]
	if !ok {
		r.mu.RUnlock()
		return fmt.Errorf("position %d not tracked", id)
	}
	vault := position.Vault
	r.mu.RUnlock()

	scaled, err := r.ledger.VaultRatio(ctx, vault, quote)
	if err != nil {
		r.log.WithField("position_id", id).WithError(err).
			Warn("ratio refresh failed, keeping prior state")
		return fmt.Errorf("failed to refresh position %d: %w", id, err)
	}

	// 10000 on the wire means 100.00%.
	ratio := decimal.New(int64(scaled), -2)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok = r.positions[id]
	if !ok {
		return fmt.Errorf("position %d not tracked", id)
	}
	position.Ratio = ratio
	position.Eligible = position.Active() && ratio.LessThan(position.Threshold)
	position.LastUpdated = now
	return nil
}

// RefreshAll recomputes ratios for every position with non-zero backing
// shares, in bounded concurrent batches. Failures are isolated per position;
// the call collects every outcome instead of failing fast.
func (r *Registry) RefreshAll(ctx context.Context, quote *models.PriceQuote) {
	ids := r.activeIDs()

	for start := 0; start < len(ids); start += r.refreshBatch {
		end := start + r.refreshBatch
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				// RefreshOne logs its own failures; the batch carries on.
				_ = r.RefreshOne(ctx, id, quote)
			}(id)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return
		}
	}
}

// EligibleForLiquidation returns snapshots of every eligible position in
// insertion order. Ranking beyond that is the orchestrator's concern.
func (r *Registry) EligibleForLiquidation() []*models.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var eligible []*models.Position
	for _, id := range r.order {
		if p := r.positions[id]; p.Eligible {
			eligible = append(eligible, p.Clone())
		}
	}
	return eligible
}

// Get returns a snapshot of one position.
func (r *Registry) Get(id uint64) (*models.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// All returns snapshots of every tracked position in insertion order.
func (r *Registry) All() []*models.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Position, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.positions[id].Clone())
	}
	return out
}

// Stats summarizes the tracked set. The average ratio covers active
// positions only and is zero when none are active.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{Total: len(r.positions), AverageRatio: decimal.Zero}
	sum := decimal.Zero
	for _, p := range r.positions {
		if !p.Active() {
			continue
		}
		stats.Active++
		sum = sum.Add(p.Ratio)
		if p.Eligible {
			stats.Eligible++
		}
	}
	if stats.Active > 0 {
		stats.AverageRatio = sum.Div(decimal.NewFromInt(int64(stats.Active)))
	}
	return stats
}

func (r *Registry) activeIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.order))
	for _, id := range r.order {
		if r.positions[id].Active() {
			ids = append(ids, id)
		}
	}
	return ids
}
