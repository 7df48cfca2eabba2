// Package app wires storage, services and background jobs from configuration.
package app

import (
	"context"
	"fmt"

	"spcledger/internal/core/tx"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/domain/reports"
	"spcledger/internal/infrastructure/metrics"
	"spcledger/internal/infrastructure/storage/memory"
	"spcledger/internal/infrastructure/storage/postgres"
	"spcledger/internal/infrastructure/storage/postgres/ledger_repo"
	"spcledger/internal/infrastructure/storage/postgres/migrations"
	"spcledger/internal/infrastructure/storage/postgres/register_repo"
	"spcledger/internal/infrastructure/storage/postgres/report_repo"
	"spcledger/pkg/config"
	"spcledger/pkg/logger"
)

// Container holds the wired dependencies of one process.
type Container struct {
	Config  *config.Config
	Metrics *metrics.Recorder

	Quantity *quantity.Service
	Reports  *reports.Service

	// Postgres backend only
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Codec     *postgres.PayloadCodec

	// Memory backend only
	Memory *memory.Store

	closers []func()
}

// New builds a container for cfg.App.Backend.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	threshold, err := types.NewMoneyFromString(cfg.Ledger.CorrectionThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse ledger.correction_threshold: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Metrics: metrics.New(),
	}

	switch cfg.App.Backend {
	case config.BackendMemory:
		c.Memory = memory.New()
		c.wire(c.Memory, c.Memory, c.Memory, c.Memory, c.Memory, threshold)
		log.Infow("using in-memory storage")
		return c, nil

	case config.BackendPostgres:
		if err := c.openPostgres(ctx, log); err != nil {
			c.Close()
			return nil, err
		}
		journal := ledger_repo.NewJournalRepo(c.TxManager)
		c.wire(
			register_repo.NewQuantityRepo(c.TxManager),
			report_repo.NewReportRepo(c.TxManager),
			journal,
			journal,
			postgres.NewOutboxPublisher(c.TxManager, c.Codec),
			threshold,
		)
		return c, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.App.Backend)
	}
}

func (c *Container) openPostgres(ctx context.Context, log *logger.Logger) error {
	cfg := c.Config.Database

	if cfg.AutoMigrate {
		m, err := migrations.New(cfg.URL, log.Desugar())
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		err = m.Up()
		_ = m.Close()
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.URL).Override(cfg.MaxConns, cfg.MinConns, cfg.MaxConnLifetime)
	poolCfg.ApplicationName = c.Config.App.Name

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	c.Pool = pool
	c.closers = append(c.closers, pool.Close)
	c.Metrics.Registry().MustRegister(metrics.NewPoolCollector(pool))

	codec, err := postgres.NewPayloadCodec(c.Config.Outbox.CompressThreshold)
	if err != nil {
		return fmt.Errorf("create payload codec: %w", err)
	}
	c.Codec = codec
	c.closers = append(c.closers, codec.Close)

	c.TxManager = postgres.NewTxManager(pool, cfg.StatementTimeout)
	log.Infow("connected to database",
		"max_conns", poolCfg.MaxConns,
		"statement_timeout", cfg.StatementTimeout,
	)
	return nil
}

func (c *Container) wire(
	repo quantity.Repository,
	reportRepo reports.Repository,
	lines ledger.EntryLineReader,
	accounts ledger.AccountReader,
	sink ledger.CorrectionSink,
	threshold types.Money,
) {
	var txm tx.Manager
	if c.TxManager != nil {
		txm = c.TxManager
	} else {
		txm = c.Memory
	}

	c.Quantity = quantity.NewService(repo, txm, lines, accounts,
		quantity.WithCorrectionSink(sink),
		quantity.WithMetrics(c.Metrics),
		quantity.WithCorrectionThreshold(threshold),
	)
	c.Reports = reports.NewService(reportRepo, accounts, txm, reports.OpeningMode(c.Config.Ledger.TurnoverOpening))
}

// Pinger checks that the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pinger returns the readiness check of the backend, or nil for memory.
func (c *Container) Pinger() Pinger {
	if c.TxManager == nil {
		return nil
	}
	return c.TxManager
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
