// Package main is the entry point of the Flow Signal Bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/flow-signal-bot/internal/alert"
	"github.com/your-org/flow-signal-bot/internal/config"
	"github.com/your-org/flow-signal-bot/internal/dbwriter"
	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/exchange/binance"
	"github.com/your-org/flow-signal-bot/internal/exchange/paper"
	"github.com/your-org/flow-signal-bot/internal/exchange/replay"
	"github.com/your-org/flow-signal-bot/internal/http/handler"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/metrics"
	"github.com/your-org/flow-signal-bot/internal/order"
	"github.com/your-org/flow-signal-bot/internal/pipeline"
	"github.com/your-org/flow-signal-bot/internal/report"
	signalpkg "github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	replayFile := flag.String("replay", "", "Replay market events from a CSV file instead of connecting live")
	migrationsDir := flag.String("migrations", "db/schema", "Path to the SQL migrations directory")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()
	logger.Info("Flow Signal Bot starting...")
	logger.Infof("Loaded configuration from: %s", *configPath)
	logger.Infof("Target symbols: %v", cfg.Symbols)

	replayMode := *replayFile != ""
	testMode := bool(cfg.TestMode) || replayMode

	// --- Result sink ---
	var sink report.Sink
	if cfg.Report.DumpFile != "" {
		csvSink, err := report.NewCSVSink(cfg.Report.DumpFile, logger.Zap())
		if err != nil {
			logger.Fatalf("Failed to open dump file: %v", err)
		}
		sink = csvSink
	} else {
		sink = report.NewLogSink(logger.Zap())
	}
	defer sink.Close()

	// --- TimescaleDB writer (optional) ---
	var dbWriter *dbwriter.Writer
	if cfg.DBWriter.BatchSize > 0 && cfg.DatabaseURL() != "" {
		if err := dbwriter.RunMigrations(*migrationsDir, cfg.DatabaseURL(), logger.Zap()); err != nil {
			logger.Fatalf("Failed to run database migrations: %v", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
		if err != nil {
			logger.Fatalf("Failed to create database pool: %v", err)
		}
		dbWriter = dbwriter.NewWriter(pool, dbwriter.Config{
			BatchSize:            cfg.DBWriter.BatchSize,
			WriteIntervalSeconds: cfg.DBWriter.WriteIntervalSeconds,
		}, logger.Zap())
	} else {
		dbWriter = dbwriter.NewWriter(nil, dbwriter.Config{}, logger.Zap())
	}
	defer dbWriter.Close()

	// --- Order gateway ---
	var gateway exchange.OrderGateway
	var paperGateway *paper.Gateway
	if testMode {
		paperGateway = paper.NewGateway("USDT", cfg.TestBalance)
		gateway = paperGateway
		logger.Info("Test mode enabled, using paper order gateway.")
	} else {
		gateway = binance.NewGateway(cfg.APIKey, cfg.APISecret)
	}

	// --- Signal engine and listeners ---
	stats := signalpkg.NewStats()
	engine := signalpkg.NewEngine(signalpkg.EngineConfig{
		TakeProfit: cfg.Order.TakeProfit,
		StopLoss:   cfg.Order.StopLoss,
	}, exchange.NewGatewayPriceSource(gateway, 0), stats)

	recorder := report.NewSignalRecorder(sink)
	engine.AddListener(recorder)
	engine.AddListener(alert.NewSignalNotifier(alert.LogNotifier{}))
	engine.AddListener(&dbSignalListener{writer: dbWriter})

	var manager *order.Manager
	if cfg.Order.Volume > 0 {
		manager = order.NewManager(order.Config{
			Volume:               cfg.Order.Volume,
			MaxActivePerSymbol:   cfg.Order.MaxActivePerSymbol,
			TakeProfit:           cfg.Order.TakeProfit,
			StopLoss:             cfg.Order.StopLoss,
			ProfitBoundary:       cfg.Order.ProfitBoundary,
			LossBoundary:         cfg.Order.LossBoundary,
			CloseOnFavorableMove: bool(cfg.Order.CloseOnFavorableMove),
		}, gateway)
		engine.AddListener(manager)
	}

	// --- Pipeline ---
	pipe := pipeline.New(pipeline.Config{
		Symbols:         cfg.Symbols,
		WindowSize:      cfg.Window.Size,
		SubwindowCount:  cfg.Window.SubwindowCount,
		OrderbookDepth:  cfg.Window.OrderbookDepth,
		EntityEveryN:    cfg.Window.EntityEveryN,
		EntityInterval:  time.Duration(cfg.Window.EntityIntervalMs) * time.Millisecond,
		TradeBufferSize: cfg.Window.TradeBufferSize,
		Thresholds: market.Thresholds{
			BuyVolumesPct:      cfg.Thresholds.BuyVolumesPct,
			SellVolumesPct:     cfg.Thresholds.SellVolumesPct,
			UpPriceChangePct:   cfg.Thresholds.UpPriceChangePct,
			DownPriceChangePct: cfg.Thresholds.DownPriceChangePct,
		},
	}, engine, sink)
	pipe.Start(ctx)

	// --- Feed ---
	var feed exchange.Feed
	if replayMode {
		feed = replay.NewFeed(*replayFile)
		logger.Infof("Replay mode: reading events from %s", *replayFile)
	} else {
		feed = binance.NewFeed()
	}

	lastPrices := &sync.Map{}
	if err := feed.SubscribeTrades(cfg.Symbols, func(symbol string, trades []market.Trade) {
		dbWriter.SaveTrades(trades)
		pipe.OnTrades(symbol, trades)
	}); err != nil {
		logger.Fatalf("Failed to subscribe to trades: %v", err)
	}
	if err := feed.SubscribeOrderbook(cfg.Symbols, cfg.Window.OrderbookDepth, pipe.OnBook); err != nil {
		logger.Fatalf("Failed to subscribe to orderbook: %v", err)
	}
	if err := feed.SubscribeTicker(cfg.Symbols, func(symbol string, price float64, at time.Time) {
		lastPrices.Store(symbol, price)
		if paperGateway != nil {
			paperGateway.SetPrice(symbol, price)
		}
		engine.OnPrice(symbol, price, at)
		if manager != nil {
			manager.OnTickerUpdate(symbol, price)
		}
	}); err != nil {
		logger.Fatalf("Failed to subscribe to ticker: %v", err)
	}

	// --- Graceful shutdown setup ---
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// --- HTTP server (skipped in replay mode) ---
	if !replayMode {
		mux := http.NewServeMux()
		mux.Handle("/health", handler.NewHealthHandler())
		mux.Handle("/stats", handler.NewStatsHandler(stats))
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			logger.Infof("HTTP server starting on %s", cfg.HTTPAddr)
			if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
				logger.Fatalf("HTTP server failed: %v", err)
			}
		}()
	}

	// --- Periodic stats reporter ---
	reporter := report.NewReporter(stats, sink, dbWriter, time.Duration(cfg.Report.IntervalSeconds)*time.Second)
	go reporter.Run(ctx)

	// --- Feed loop ---
	feedDone := make(chan error, 1)
	go func() { feedDone <- feed.Run(ctx) }()

	var managerDone <-chan struct{}
	if manager != nil {
		managerDone = manager.Done()
	} else {
		managerDone = make(chan struct{}) // never closes
	}

	select {
	case sig := <-sigs:
		logger.Infof("Received signal: %s, initiating shutdown...", sig)
	case <-managerDone:
		logger.Info("Order manager finished after boundary dismissal, shutting down...")
	case err := <-feedDone:
		if err != nil && ctx.Err() == nil {
			logger.Errorf("Feed exited with error: %v", err)
		}
		now := time.Now().UTC()
		engine.CloseAll(now)
		if manager != nil {
			manager.CloseAll(func(symbol string) float64 {
				if v, ok := lastPrices.Load(symbol); ok {
					return v.(float64)
				}
				return 0
			})
		}
	}

	cancel()
	_ = feed.Close()
	pipe.Wait()
	reporter.Report(time.Now().UTC())

	if summary, err := report.Summarize(recorder.ClosedSignals()); err != nil {
		logger.Warnf("No run summary: %v", err)
	} else {
		logger.Infof("Run summary: %s", summary)
	}
	logger.Info("Flow Signal Bot shut down gracefully.")
}

// dbSignalListener persists closed signals.
type dbSignalListener struct {
	writer *dbwriter.Writer
}

func (l *dbSignalListener) OnSignalOpened(*signalpkg.MarketSignal) {}

func (l *dbSignalListener) OnSignalClosed(s *signalpkg.MarketSignal) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if err := l.writer.SaveSignal(ctx, s); err != nil {
		logger.Warnf("Failed to persist closed signal for %s: %v", s.Symbol, err)
	}
}
