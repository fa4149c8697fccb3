package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/config"
	"github.com/mamadbah2/freshstock/internal/metrics"
	"github.com/mamadbah2/freshstock/internal/notify"
	"github.com/mamadbah2/freshstock/internal/repository"
	"github.com/mamadbah2/freshstock/internal/repository/memory"
	"github.com/mamadbah2/freshstock/internal/repository/mongodb"
	"github.com/mamadbah2/freshstock/internal/repository/sheets"
	"github.com/mamadbah2/freshstock/internal/scheduler"
	"github.com/mamadbah2/freshstock/internal/server/handlers"
	"github.com/mamadbah2/freshstock/internal/server/router"
	"github.com/mamadbah2/freshstock/internal/service/forecast"
	inventorysvc "github.com/mamadbah2/freshstock/internal/service/inventory"
	"github.com/mamadbah2/freshstock/internal/service/ledger"
	"github.com/mamadbah2/freshstock/internal/service/replenishment"
	reportingsvc "github.com/mamadbah2/freshstock/internal/service/reporting"
	"github.com/mamadbah2/freshstock/internal/service/transactions"
	whatsappclient "github.com/mamadbah2/freshstock/pkg/clients/whatsapp"
	"github.com/mamadbah2/freshstock/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()

	store, closeStore, err := openStore(ctx, cfg.MongoDB, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init store", zap.Error(err))
	}
	defer closeStore()

	var dataset *sheets.Dataset
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		dataset = sheets.NewDataset(sheetsRepo, cfg.Sheets, baseLogger.Named("repo.dataset"))
	}

	batches, err := store.LoadBatches(ctx)
	if err != nil {
		baseLogger.Fatal("failed to load batches", zap.Error(err))
	}
	stock := ledger.New(baseLogger.Named("svc.ledger"))
	stock.Load(batches)

	history := forecast.NewStoreHistory(store, store)
	if dataset != nil {
		samples, err := dataset.HistorySamples(ctx)
		if err != nil {
			baseLogger.Warn("seed history unavailable, forecasting from recorded sales only", zap.Error(err))
		} else {
			history.SetSeed(samples)
		}
	}
	engine := forecast.NewEngine(forecast.Config{
		Settings: forecast.Settings{
			MinSamples:         cfg.Forecast.MinSamples,
			SaturationSamples:  cfg.Forecast.SaturationSamples,
			FallbackConfidence: cfg.Forecast.FallbackConfidence,
			BaseDemand:         cfg.Forecast.BaseDemand,
		},
		RetrainEvery: cfg.Forecast.RetrainEvery,
	}, history, baseLogger.Named("svc.forecast"), forecast.WithMetrics(collector))
	defer engine.Close()
	if err := engine.TrainAll(ctx); err != nil {
		baseLogger.Warn("initial training incomplete", zap.Error(err))
	}

	notifiers := []notify.Notifier{notify.NewLogNotifier(baseLogger.Named("notify.log"))}
	if cfg.WhatsApp.Enabled() {
		notifiers = append(notifiers, notify.NewWhatsAppNotifier(whatsappclient.NewClient(cfg.WhatsApp), cfg.WhatsApp.AlertRecipient))
		baseLogger.Info("whatsapp alerts enabled")
	}
	if cfg.Kafka.Enabled() {
		kafka, err := notify.NewKafkaNotifier(cfg.Kafka, baseLogger.Named("notify.kafka"))
		if err != nil {
			baseLogger.Fatal("failed to init kafka producer", zap.Error(err))
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				baseLogger.Error("failed to close kafka producer", zap.Error(err))
			}
		}()
		notifiers = append(notifiers, kafka)
		baseLogger.Info("kafka signal publishing enabled", zap.String("topic", cfg.Kafka.Topic))
	}
	dispatcher := notify.NewDispatcher(cfg.Alerts.SignalBuffer, notifiers, baseLogger.Named("notify"), notify.WithMetrics(collector))

	planner := replenishment.NewPlanner(replenishment.Config{
		RiskHorizon:            cfg.Replenishment.RiskHorizon,
		DefaultRestockQuantity: cfg.Replenishment.DefaultRestockQuantity,
	}, store, store, store, stock, engine, baseLogger.Named("svc.replenishment"),
		replenishment.WithEmitter(dispatcher),
		replenishment.WithMetrics(collector))

	procOpts := []transactions.Option{
		transactions.WithObserver(engine),
		transactions.WithEmitter(dispatcher),
		transactions.WithMetrics(collector),
	}
	if cfg.Replenishment.PlanOnSale {
		procOpts = append(procOpts, transactions.WithReplenisher(planner))
	}
	processor := transactions.NewProcessor(store, store, stock, baseLogger.Named("svc.transactions"), procOpts...)

	inventory := inventorysvc.NewService(store, stock, processor, engine, planner, baseLogger.Named("svc.inventory"),
		inventorysvc.WithEmitter(dispatcher))

	reportOpts := []reportingsvc.Option{reportingsvc.WithRiskWindow(cfg.Alerts.ExpiryWindowDays)}
	if dataset != nil {
		reportOpts = append(reportOpts, reportingsvc.WithSink(dataset))
	}
	reporting := reportingsvc.NewService(store, stock, baseLogger.Named("svc.reporting"), reportOpts...)

	sched, err := scheduler.NewScheduler(cfg.Scheduler, inventory, reporting, collector, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	engineHTTP := router.New(
		handlers.NewInventoryHandler(inventory, cfg.Alerts.ExpiryWindowDays, baseLogger.Named("handlers.inventory")),
		handlers.NewAnalyticsHandler(reporting, baseLogger.Named("handlers.analytics")),
		collector.Handler(),
		baseLogger.Named("router"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engineHTTP,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	if err := dispatcher.Close(shutdownCtx); err != nil {
		baseLogger.Error("signal dispatcher did not drain", zap.Error(err), zap.Int64("dropped", dispatcher.Dropped()))
	}
}

// openStore connects to MongoDB when configured and falls back to the
// in-memory store otherwise. Both start with the default supplier directory.
func openStore(ctx context.Context, cfg config.MongoDBConfig, base *zap.Logger) (repository.Store, func(), error) {
	if !cfg.Enabled() {
		base.Warn("MONGODB_URI not set, using in-memory store")
		return memory.NewSeededStore(), func() {}, nil
	}

	repo, err := mongodb.NewMongoDBRepository(ctx, cfg.URI, cfg.DBName, base.Named("repo.mongodb"))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := repo.Close(context.Background()); err != nil {
			base.Error("failed to close mongodb connection", zap.Error(err))
		}
	}

	existing, err := repo.ListSuppliers(ctx)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("list suppliers: %w", err)
	}
	if len(existing) == 0 {
		for i, sup := range memory.DefaultSuppliers {
			sup.ID = fmt.Sprintf("SUP-%02d", i+1)
			if err := repo.UpsertSupplier(ctx, sup); err != nil {
				closeFn()
				return nil, nil, fmt.Errorf("seed supplier %s: %w", sup.Name, err)
			}
		}
		base.Info("supplier directory seeded", zap.Int("suppliers", len(memory.DefaultSuppliers)))
	}
	return repo, closeFn, nil
}
