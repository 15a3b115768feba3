package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"callbingo/internal/amqp"
	"callbingo/internal/backend"
	"callbingo/internal/cache"
	"callbingo/internal/cli"
	"callbingo/internal/core"
	"callbingo/internal/effects"
	apphttp "callbingo/internal/http"
	applog "callbingo/internal/log"
	"callbingo/internal/services"
	"callbingo/internal/state"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	logger.Info("Starting bingo server", "port", cfg.Port, "backend", cfg.DataBackend)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateStore(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()
	repo := state.NewRepository(store.Store)

	sink := effects.Fanout{effects.NewLogSink(logger.WithComponent(applog.ComponentEffects).Logger)}
	var publisher services.LedgerPublisher
	readiness := map[string]apphttp.ReadinessCheck{
		"store": func(ctx context.Context) error {
			_, _, err := store.Store.Get(ctx, state.KeyLedger)
			return err
		},
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEffectsQueue, cfg.AMQPLedgerQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync",
				applog.FieldError, err,
				applog.FieldComponent, applog.ComponentAMQP)
		} else {
			defer client.Close()
			sink = append(sink, client)
			publisher = client
			readiness["amqp"] = client.Ping
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"effects_queue", cfg.AMQPEffectsQueue,
				"ledger_queue", cfg.AMQPLedgerQueue)
		}
	}

	standings := cache.NewLRUCache[core.Standings](16, cfg.StandingsCacheTTL)
	caches := cache.NewManager()
	caches.Register(standings)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	seed := uint64(time.Now().UnixNano())
	game := services.NewGameService(cfg.Game.Phrases, cfg.Game.CenterPhrase, rand.New(rand.NewPCG(seed, seed>>1|1)), sink)
	goal := services.NewGoalService(repo, cfg.Game.Quotes, rand.New(rand.NewPCG(seed^0x9e3779b97f4a7c15, seed)), sink)
	ledger := services.NewLedgerService(repo, cfg.Game.InitialFunds, publisher, standings)
	svc := apphttp.Services{Game: game, Ledger: ledger, Goal: goal}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StandingsCache:     standings,
		ReadinessChecks:    readiness,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
