// Package main is the entry point for the sub-ledger background worker.
// It relays cost corrections from the outbox and verifies balances against replay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"spcledger/internal/app"
	"spcledger/internal/core/entity"
	"spcledger/internal/infrastructure/storage/postgres"
	"spcledger/pkg/config"
	"spcledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting spcledger worker", "backend", cfg.App.Backend)

	container, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer container.Close()

	companies, err := app.ParseCompanies(cfg.Verify.Companies)
	if err != nil {
		log.Fatalw("invalid verify.companies", "error", err)
	}
	verifier := app.NewVerifier(container.Quantity, companies, cfg.Verify.AutoRepair, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		verifier.Run(gctx, cfg.Verify.Interval)
		return nil
	})

	if container.TxManager != nil {
		relayLog := log.WithComponent("outbox")
		handler := postgres.NewCorrectionHandler(container.Codec, func(ctx context.Context, c entity.CostCorrection) error {
			// Posted by hand from the log until the journal engine accepts corrections.
			relayLog.Infow("cost correction",
				"company_id", c.CompanyID,
				"journal_entry_id", c.JournalEntryID,
				"material_account_id", c.MaterialAccountID,
				"expense_account_id", c.ExpenseAccountID,
				"amount", c.CorrectionAmount.StringFixed(2),
				"description", c.Description,
			)
			return nil
		})
		relay := postgres.NewOutboxRelay(container.TxManager, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries, handler)

		g.Go(func() error {
			relay.Run(gctx, cfg.Outbox.PollInterval)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			container.Pool.LogStats(context.Background())
			return nil
		})
	} else {
		log.Infow("memory backend: outbox relay disabled")
	}

	if err := g.Wait(); err != nil {
		log.Errorw("worker stopped with error", "error", err)
	}
	log.Info("worker stopped")
}
