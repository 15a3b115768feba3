package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"callbingo/internal/amqp"
	"callbingo/internal/backend"
	"callbingo/internal/cli"
	"callbingo/internal/effects"
	applog "callbingo/internal/log"
	"callbingo/internal/sheets"
	gsheet "callbingo/internal/sheets/google"
	"callbingo/internal/sheets/memory"
	"callbingo/internal/state"
	"callbingo/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting bingo-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker",
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var mirror sheets.Mirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		mirror = memory.New()
		logger.Info("Google Sheets disabled, mirroring ledger in memory")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEffectsQueue, cfg.AMQPLedgerQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ledgerSync := worker.NewLedgerSyncWorker(mirror)
	relay := worker.NewEffectsRelay(effects.NewLogSink(logger.WithComponent(applog.ComponentEffects).Logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeLedgerSync(gctx, ledgerSync.HandleLedgerSync)
	})
	g.Go(func() error {
		return client.ConsumeEffects(gctx, relay.HandleEffect)
	})

	// The reconciler needs the shared ledger; a memory backend is private
	// to the server process.
	if cfg.DataBackend != string(backend.MemoryBackend) {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			logger.Error("Invalid backend configuration", applog.FieldError, err)
			os.Exit(1)
		}
		store, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateStore(ctx, bcfg)
		if err != nil {
			logger.Error("Failed to open ledger store", applog.FieldError, err)
			os.Exit(1)
		}
		defer store.Close()

		reconciler := worker.NewReconciler(state.NewRepository(store.Store), mirror,
			worker.ReconcilerConfig{Interval: cfg.ReconcileInterval})
		g.Go(func() error {
			if err := reconciler.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return reconciler.Stop(stopCtx)
		})
	} else {
		logger.Info("Reconciler disabled for the memory backend")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
