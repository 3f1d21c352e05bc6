package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/api"
	"github.com/nusdprotocol/liquidation-service/internal/chain"
	"github.com/nusdprotocol/liquidation-service/internal/config"
	"github.com/nusdprotocol/liquidation-service/internal/database"
	"github.com/nusdprotocol/liquidation-service/internal/deployments"
	"github.com/nusdprotocol/liquidation-service/internal/kafka"
	"github.com/nusdprotocol/liquidation-service/internal/liquidator"
	"github.com/nusdprotocol/liquidation-service/internal/monitor"
	"github.com/nusdprotocol/liquidation-service/internal/positions"
	"github.com/nusdprotocol/liquidation-service/internal/pricefeed"
	"github.com/nusdprotocol/liquidation-service/internal/profit"
)

func main() {
	log := logrus.WithField("component", "main")

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("error loading .env file")
	}

	cfg := config.Load()
	configureLogging(cfg.Log)

	log.WithFields(logrus.Fields{
		"chain_id": cfg.Chain.ChainID,
		"tier_id":  cfg.Liquidator.TierID,
	}).Info("starting liquidation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve the live deployment and its contract interfaces.
	deps := deployments.NewClient(cfg.Deployments.URL, cfg.Deployments.Timeout)

	deployment, err := deps.Lookup(ctx, uint64(cfg.Chain.ChainID))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve deployment")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var abiCache *chain.ABICache
	if redisClient != nil {
		abiCache = chain.NewABICache(redisClient, deps)
	} else {
		abiCache = chain.NewABICache(nil, deps)
	}

	controllerABI, err := abiCache.Get(ctx, deployment.Controller)
	if err != nil {
		log.WithError(err).Fatal("failed to load controller abi")
	}
	vaultABI, err := abiCache.Get(ctx, deployment.VaultManager)
	if err != nil {
		log.WithError(err).Fatal("failed to load vault manager abi")
	}
	erc20ABI, err := chain.ERC20ABI()
	if err != nil {
		log.WithError(err).Fatal("failed to parse erc20 abi")
	}

	chainClient, err := chain.NewClient(chain.Config{
		RPCURL:         cfg.Chain.RPCURL,
		ChainID:        big.NewInt(cfg.Chain.ChainID),
		Controller:     deployment.Controller,
		VaultManager:   deployment.VaultManager,
		DebtToken:      deployment.DebtToken,
		PrivateKeyHex:  cfg.Chain.PrivateKeyHex,
		CallTimeout:    cfg.Chain.CallTimeout,
		ReadsPerSecond: cfg.Chain.ReadsPerSecond,
	}, controllerABI, vaultABI, erc20ABI)
	if err != nil {
		log.WithError(err).Fatal("failed to create chain client")
	}
	defer chainClient.Close()

	registry := positions.NewRegistry(chainClient, positions.Config{
		TierID:            cfg.Liquidator.TierID,
		DiscoverBatchSize: cfg.Liquidator.DiscoverBatchSize,
		RefreshBatchSize:  cfg.Liquidator.RefreshBatchSize,
	})

	// The service starts with a complete view of the position collection or
	// not at all.
	if err := registry.DiscoverAll(ctx); err != nil {
		log.WithError(err).Fatal("initial position discovery failed")
	}
	log.WithField("positions", registry.Stats().Total).Info("initial discovery complete")

	bonusPercent, err := decimal.NewFromString(cfg.Liquidator.BonusPercent)
	if err != nil {
		log.WithError(err).Fatal("invalid LIQUIDATOR_BONUS_PERCENT")
	}
	gasEstimate, err := decimal.NewFromString(cfg.Liquidator.GasEstimate)
	if err != nil {
		log.WithError(err).Fatal("invalid LIQUIDATOR_GAS_ESTIMATE")
	}
	minProfitUSD, err := decimal.NewFromString(cfg.Liquidator.MinProfitUSD)
	if err != nil {
		log.WithError(err).Fatal("invalid LIQUIDATOR_MIN_PROFIT_USD")
	}

	estimator := profit.NewEstimator(profit.Config{
		BonusPercent: &bonusPercent,
		GasEstimate:  &gasEstimate,
	})

	var db *database.DB
	if cfg.Database.Enabled() {
		db, err = database.New(cfg.Database.ConnectionString())
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()
		log.Info("attempt history store connected")
	}

	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ResultsTopic)
		defer producer.Close()
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.PositionsTopic, cfg.Kafka.GroupID, registry)
		log.WithField("brokers", cfg.Kafka.Brokers).Info("kafka event stream enabled")
	}

	var attemptStore liquidator.AttemptStore
	var publisher liquidator.EventPublisher
	if db != nil {
		attemptStore = db
	}
	if producer != nil {
		publisher = producer
	}

	orchestrator := liquidator.NewOrchestrator(chainClient, estimator, attemptStore, publisher, liquidator.Config{
		MinProfitUSD:  minProfitUSD,
		MaxConcurrent: cfg.Liquidator.MaxConcurrent,
	})

	feed := pricefeed.NewClient(cfg.Oracle.URL, cfg.Oracle.Timeout)

	var recorder monitor.QuoteRecorder
	if db != nil {
		recorder = db
	}
	var subscription monitor.Subscription
	if consumer != nil {
		subscription = consumer
	}

	mon := monitor.New(feed, registry, orchestrator, recorder, subscription, monitor.Config{
		PriceInterval:   cfg.Monitor.PriceInterval,
		RefreshInterval: cfg.Monitor.RefreshInterval,
		MaxQuoteAge:     cfg.Oracle.QuoteMaxAge,
	})
	mon.Start(ctx)

	stopCh := make(chan struct{})
	var attemptsAPI api.AttemptSource
	if db != nil {
		attemptsAPI = db
	}
	handler := api.NewHandler(registry, attemptsAPI, feed, func() { close(stopCh) })
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	case <-stopCh:
		log.Info("shutdown requested via api")
	}

	log.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown failed")
	}

	mon.Stop()

	log.Info("liquidation service stopped")
}

func configureLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
