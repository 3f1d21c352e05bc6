// Package monitor ties the service together: a fast price-driven
// opportunity scan, a slower full position refresh, and the asynchronous
// position-creation subscription, all feeding the shared registry.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// Default timer intervals.
const (
	DefaultPriceInterval   = 15 * time.Second
	DefaultRefreshInterval = 5 * time.Minute
)

// QuoteFetcher fetches a signed price quote.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context) (*models.PriceQuote, error)
}

// Registry is the position store surface the monitor drives.
type Registry interface {
	DiscoverAll(ctx context.Context) error
	RefreshAll(ctx context.Context, quote *models.PriceQuote)
	EligibleForLiquidation() []*models.Position
}

// Orchestrator processes the eligible subset under a quote.
type Orchestrator interface {
	ProcessEligible(ctx context.Context, eligible []*models.Position, quote *models.PriceQuote) []*models.LiquidationAttempt
}

// QuoteRecorder persists consumed quotes for audit. May be nil.
type QuoteRecorder interface {
	CreatePriceQuote(quote *models.PriceQuote) error
}

// Subscription is the position-creation event stream. Start blocks until the
// context is cancelled; Close tears the stream down.
type Subscription interface {
	Start(ctx context.Context) error
	Close() error
}

// Config tunes the monitor.
type Config struct {
	PriceInterval   time.Duration
	RefreshInterval time.Duration
	// MaxQuoteAge is the freshness window applied to fetched quotes.
	MaxQuoteAge time.Duration
}

// Monitor runs the two timers and the subscription until stopped.
type Monitor struct {
	feed         QuoteFetcher
	registry     Registry
	orchestrator Orchestrator
	recorder     QuoteRecorder
	subscription Subscription
	cfg          Config

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	log      *logrus.Entry
}

// New wires a monitor. recorder and subscription may be nil.
func New(feed QuoteFetcher, registry Registry, orchestrator Orchestrator, recorder QuoteRecorder, subscription Subscription, cfg Config) *Monitor {
	if cfg.PriceInterval <= 0 {
		cfg.PriceInterval = DefaultPriceInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.MaxQuoteAge <= 0 {
		cfg.MaxQuoteAge = models.DefaultQuoteMaxAge
	}
	return &Monitor{
		feed:         feed,
		registry:     registry,
		orchestrator: orchestrator,
		recorder:     recorder,
		subscription: subscription,
		cfg:          cfg,
		log:          logrus.WithField("component", "monitor"),
	}
}

// Start launches the timers and the subscription. It returns immediately;
// use Stop for a graceful shutdown.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runPriceLoop(ctx)
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runRefreshLoop(ctx)
	}()

	if m.subscription != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.subscription.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.WithError(err).Warn("position event subscription stopped")
			}
		}()
	}

	m.log.WithFields(logrus.Fields{
		"price_interval":   m.cfg.PriceInterval,
		"refresh_interval": m.cfg.RefreshInterval,
	}).Info("monitor started")
}

// Stop halts both timers, closes the subscription, and waits for in-flight
// work to wind down.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.subscription != nil {
			if err := m.subscription.Close(); err != nil {
				m.log.WithError(err).Warn("failed to close subscription")
			}
		}
		m.wg.Wait()
		m.log.Info("monitor stopped")
	})
}

func (m *Monitor) runPriceLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PriceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

func (m *Monitor) runRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Full re-read of raw collateral/debt, not just ratios.
			if err := m.registry.DiscoverAll(ctx); err != nil {
				m.log.WithError(err).Warn("position refresh scan failed")
			}
		}
	}
}

// Tick runs one price-driven pass: fetch, freshness check, refresh ratios,
// orchestrate the eligible subset. A feed failure aborts the tick, never the
// process.
func (m *Monitor) Tick(ctx context.Context) {
	quote, err := m.feed.FetchQuote(ctx)
	if err != nil {
		m.log.WithError(err).Warn("price tick aborted")
		return
	}
	if !quote.IsFresh(m.cfg.MaxQuoteAge) {
		m.log.WithFields(logrus.Fields{
			"data_ts": quote.DataTimestamp,
			"max_age": m.cfg.MaxQuoteAge,
		}).Warn("stale quote, skipping tick")
		return
	}

	if m.recorder != nil {
		if err := m.recorder.CreatePriceQuote(quote); err != nil {
			m.log.WithError(err).Warn("failed to record price quote")
		}
	}

	m.registry.RefreshAll(ctx, quote)

	eligible := m.registry.EligibleForLiquidation()
	if len(eligible) == 0 {
		return
	}
	m.log.WithField("eligible", len(eligible)).Info("processing eligible positions")
	m.orchestrator.ProcessEligible(ctx, eligible, quote)
}
