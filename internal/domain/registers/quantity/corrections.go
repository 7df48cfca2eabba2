package quantity

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/pkg/logger"
)

// Snapshot is the replayed (or stored) position of an account at a date.
type Snapshot struct {
	CompanyID id.ID      `json:"companyId"`
	AccountID id.ID      `json:"accountId"`
	AsOf      *time.Time `json:"asOf,omitempty"`
	Position
	MovementCount int  `json:"movementCount"`
	FromBalance   bool `json:"fromBalance"`
}

// AverageCostAsOf replays the account's movements dated on or before date.
// Without a date it returns the live balance.
func (s *Service) AverageCostAsOf(ctx context.Context, key entity.AccountKey, date *time.Time) (Snapshot, error) {
	if date == nil {
		balance, err := s.GetBalance(ctx, key)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{
			CompanyID:   key.CompanyID,
			AccountID:   key.AccountID,
			Position:    PositionOf(balance),
			FromBalance: true,
		}, nil
	}

	asOf := types.DateOnly(*date)
	filter := ForKey(key)
	filter.ToDate = &asOf

	var movements []entity.QuantityMovement
	err := s.readOnly(ctx, func(ctx context.Context) error {
		var err error
		movements, err = s.repo.ListMovements(ctx, filter)
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("list movements: %w", err)
	}

	started := time.Now()
	pos := Replay(movements)
	s.metrics.ObserveReplay(time.Since(started))

	return Snapshot{
		CompanyID:     key.CompanyID,
		AccountID:     key.AccountID,
		AsOf:          &asOf,
		Position:      pos,
		MovementCount: len(movements),
	}, nil
}

// CheckRetroactiveCorrections compares the stored average cost of every issue
// dated after newEntryDate with the average cost a replay gives at the issue's
// date. Only differences above the correction threshold are reported.
// The check is read-only; an empty result means no correction is warranted.
func (s *Service) CheckRetroactiveCorrections(ctx context.Context, key entity.AccountKey, newEntryDate time.Time) ([]entity.CostCorrection, error) {
	var corrections []entity.CostCorrection
	err := s.readOnly(ctx, func(ctx context.Context) error {
		var err error
		corrections, err = s.detectCorrections(ctx, key, newEntryDate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return corrections, nil
}

// DetectAndPublish runs CheckRetroactiveCorrections and hands the result to the
// configured CorrectionSink.
func (s *Service) DetectAndPublish(ctx context.Context, key entity.AccountKey, newEntryDate time.Time) ([]entity.CostCorrection, error) {
	var corrections []entity.CostCorrection
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		corrections, err = s.detectCorrections(ctx, key, newEntryDate)
		if err != nil {
			return err
		}
		if len(corrections) == 0 {
			return nil
		}
		return s.sink.PublishCorrections(ctx, corrections)
	})
	if err != nil {
		return nil, fmt.Errorf("detect and publish corrections: %w", err)
	}
	if len(corrections) > 0 {
		s.metrics.CorrectionsDetected(len(corrections))
	}
	return corrections, nil
}

func (s *Service) detectCorrections(ctx context.Context, key entity.AccountKey, newEntryDate time.Time) ([]entity.CostCorrection, error) {
	ctx, span := tracer.Start(ctx, "quantity.detect_corrections")
	defer span.End()

	since := types.DateOnly(newEntryDate)

	// The replay needs every movement up to the latest downstream issue, i.e. all of them.
	movements, err := s.repo.ListMovements(ctx, ForKey(key))
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	timeline := BuildTimeline(movements)
	lines := newLineCache(s.lines)

	var corrections []entity.CostCorrection
	for i := range movements {
		m := &movements[i]
		if m.Type != entity.MovementIssue || !m.MovementDate.After(since) {
			continue
		}

		newAvg := timeline.AsOf(m.MovementDate).AverageCost
		diff := newAvg.Sub(m.AverageCostAtTime).Mul(m.Quantity)
		if !types.ExceedsThreshold(diff, s.correctionThreshold) {
			continue
		}

		c := entity.CostCorrection{
			MovementID:        m.ID,
			CompanyID:         m.CompanyID,
			JournalEntryID:    m.JournalEntryID,
			MaterialAccountID: m.AccountID,
			MovementDate:      m.MovementDate,
			Quantity:          m.Quantity,
			OldAverageCost:    m.AverageCostAtTime,
			NewAverageCost:    newAvg,
			CorrectionAmount:  types.RoundAmount(diff),
		}
		c.ExpenseAccountID = lines.expenseAccount(ctx, m)
		c.Description = fmt.Sprintf("Average cost correction for issue of %s on %s: %s -> %s",
			m.Quantity.String(),
			m.MovementDate.Format(time.DateOnly),
			m.AverageCostAtTime.StringFixed(types.UnitPricePlaces),
			newAvg.StringFixed(types.UnitPricePlaces),
		)
		corrections = append(corrections, c)
	}

	span.SetAttributes(
		attribute.Int("movements", len(movements)),
		attribute.Int("corrections", len(corrections)),
	)
	if len(corrections) > 0 {
		logger.Info(ctx, "retroactive cost corrections detected",
			"account_id", key.AccountID,
			"since", since.Format(time.DateOnly),
			"count", len(corrections),
		)
	}
	return corrections, nil
}

// lineCache resolves expense counterparts, reading each journal entry once.
type lineCache struct {
	reader  ledger.EntryLineReader
	entries map[id.ID][]ledger.EntryLine
}

func newLineCache(reader ledger.EntryLineReader) *lineCache {
	return &lineCache{reader: reader, entries: make(map[id.ID][]ledger.EntryLine)}
}

// expenseAccount returns the paired expense account of an issue, or nil when
// the journal entry has no matching debit line or cannot be read.
func (c *lineCache) expenseAccount(ctx context.Context, m *entity.QuantityMovement) *id.ID {
	lines, ok := c.entries[m.JournalEntryID]
	if !ok {
		var err error
		lines, err = c.reader.ListEntryLines(ctx, m.JournalEntryID)
		if err != nil {
			logger.Warn(ctx, "cannot resolve expense account for correction",
				"journal_entry_id", m.JournalEntryID,
				"error", err,
			)
			lines = nil
		}
		c.entries[m.JournalEntryID] = lines
	}

	line := ledger.FindExpenseLine(lines, m.EntryLineID, m.AccountID, m.TotalAmount)
	if line == nil {
		return nil
	}
	accountID := line.AccountID
	return &accountID
}
