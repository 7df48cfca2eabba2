package quantity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/tx"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/pkg/logger"
)

var tracer = otel.Tracer("spcledger/quantity")

// Outcome of processing one entry line.
type Outcome string

const (
	OutcomeAppended         Outcome = "APPENDED"
	OutcomeAlreadyProcessed Outcome = "ALREADY_PROCESSED"
	OutcomeNotApplicable    Outcome = "NOT_APPLICABLE"
)

// SkipReason explains a NOT_APPLICABLE outcome.
type SkipReason string

const (
	ReasonLineNotFound       SkipReason = "entry_line_not_found"
	ReasonNoQuantity         SkipReason = "no_quantity"
	ReasonAccountNotFound    SkipReason = "account_not_found"
	ReasonNotQuantityTracked SkipReason = "account_not_quantity_tracked"
)

// Result of ProcessEntryLine.
type Result struct {
	Outcome     Outcome                  `json:"outcome"`
	Reason      SkipReason               `json:"reason,omitempty"`
	EntryLineID id.ID                    `json:"entryLineId"`
	Movement    *entity.QuantityMovement `json:"movement,omitempty"`
	Balance     *entity.QuantityBalance  `json:"balance,omitempty"`
	BackDated   bool                     `json:"backDated"`
	Corrections []entity.CostCorrection  `json:"corrections,omitempty"`
}

// Service provides business operations of the quantity register.
type Service struct {
	repo     Repository
	txm      tx.Manager
	lines    ledger.EntryLineReader
	accounts ledger.AccountReader
	sink     ledger.CorrectionSink
	metrics  Metrics

	correctionThreshold types.Money
}

// Option configures a Service.
type Option func(*Service)

// WithCorrectionSink publishes corrections found after back-dated movements.
func WithCorrectionSink(sink ledger.CorrectionSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCorrectionThreshold overrides the minimum reported correction (default 0.01).
func WithCorrectionThreshold(threshold types.Money) Option {
	return func(s *Service) { s.correctionThreshold = threshold }
}

// NewService creates a new quantity register service.
func NewService(
	repo Repository,
	txm tx.Manager,
	lines ledger.EntryLineReader,
	accounts ledger.AccountReader,
	opts ...Option,
) *Service {
	s := &Service{
		repo:                repo,
		txm:                 txm,
		lines:               lines,
		accounts:            accounts,
		sink:                ledger.NopSink{},
		metrics:             nopMetrics{},
		correctionThreshold: types.CorrectionThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) notApplicable(ctx context.Context, lineID id.ID, reason SkipReason) Result {
	s.metrics.LineSkipped(reason)
	logger.Debug(ctx, "entry line not applicable to quantity register",
		"entry_line_id", lineID,
		"reason", reason,
	)
	return Result{Outcome: OutcomeNotApplicable, Reason: reason, EntryLineID: lineID}
}

// ProcessEntryLine turns a posted entry line into a movement and updates the
// account balance. Re-submitting a processed line returns the existing movement.
// Lines without quantity, on accounts that do not track quantities, or that
// cannot be found are NOT_APPLICABLE, not errors. A back-dated line is costed
// at its place in replay order and the account is then rebuilt by replay.
func (s *Service) ProcessEntryLine(ctx context.Context, lineID id.ID) (Result, error) {
	line, err := s.lines.GetEntryLine(ctx, lineID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return s.notApplicable(ctx, lineID, ReasonLineNotFound), nil
		}
		return Result{}, fmt.Errorf("get entry line: %w", err)
	}
	if !line.HasQuantity() {
		return s.notApplicable(ctx, lineID, ReasonNoQuantity), nil
	}

	account, err := s.accounts.GetAccount(ctx, line.AccountID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return s.notApplicable(ctx, lineID, ReasonAccountNotFound), nil
		}
		return Result{}, fmt.Errorf("get account: %w", err)
	}
	if !account.SupportsQuantities {
		return s.notApplicable(ctx, lineID, ReasonNotQuantityTracked), nil
	}

	qty := types.RoundQuantity(*line.Quantity)
	if qty.IsZero() {
		// below the register's quantity precision
		return s.notApplicable(ctx, lineID, ReasonNoQuantity), nil
	}
	if !qty.IsPositive() {
		return Result{}, apperror.NewInvalidQuantity(lineID, line.Quantity.String())
	}

	key := entity.AccountKey{CompanyID: line.CompanyID, AccountID: line.AccountID}
	var res Result

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockAccount(ctx, key); err != nil {
			return fmt.Errorf("lock account %s: %w", key, err)
		}

		existing, err := s.repo.GetMovementByEntryLine(ctx, lineID)
		if err == nil {
			res = Result{Outcome: OutcomeAlreadyProcessed, EntryLineID: lineID, Movement: existing}
			return nil
		}
		if !apperror.IsNotFound(err) {
			return fmt.Errorf("check existing movement: %w", err)
		}

		balance, err := s.loadBalanceForUpdate(ctx, key)
		if err != nil {
			return err
		}

		date := types.DateOnly(line.MovementDate)
		backDated := balance.LastMovementDate != nil && date.Before(*balance.LastMovementDate)

		// A back-dated movement is costed at its own place in replay order.
		base := PositionOf(balance)
		if backDated {
			if base, err = s.positionAt(ctx, key, date); err != nil {
				return err
			}
		}

		movement, next := s.appendMovement(ctx, line, qty, base)
		if err := s.repo.CreateMovement(ctx, movement); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		if backDated {
			if balance, err = s.recalculate(ctx, key); err != nil {
				return err
			}
		} else {
			applyToBalance(balance, movement, next)
			if err := s.repo.SaveBalance(ctx, balance); err != nil {
				return fmt.Errorf("save balance: %w", err)
			}
		}

		res = Result{
			Outcome:     OutcomeAppended,
			EntryLineID: lineID,
			Movement:    movement,
			Balance:     balance,
			BackDated:   backDated,
		}

		if backDated {
			corrections, err := s.detectCorrections(ctx, key, movement.MovementDate)
			if err != nil {
				return fmt.Errorf("check retroactive corrections: %w", err)
			}
			if len(corrections) > 0 {
				if err := s.sink.PublishCorrections(ctx, corrections); err != nil {
					return fmt.Errorf("publish corrections: %w", err)
				}
			}
			res.Corrections = corrections
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	switch res.Outcome {
	case OutcomeAlreadyProcessed:
		s.metrics.IdempotentHit()
		logger.Debug(ctx, "entry line already processed",
			"entry_line_id", lineID,
			"movement_id", res.Movement.ID,
		)
	case OutcomeAppended:
		s.metrics.MovementAppended(res.Movement.Type)
		if n := len(res.Corrections); n > 0 {
			s.metrics.CorrectionsDetected(n)
		}
		logger.Info(ctx, "quantity movement appended",
			"movement_id", res.Movement.ID,
			"account_id", key.AccountID,
			"type", res.Movement.Type,
			"quantity", res.Movement.Quantity.String(),
			"amount", res.Movement.TotalAmount.String(),
			"balance_quantity", res.Balance.CurrentQuantity.String(),
			"average_cost", res.Balance.CurrentAverageCost.String(),
			"back_dated", res.BackDated,
			"corrections", len(res.Corrections),
		)
	}

	return res, nil
}

// positionAt replays the movements of key dated on or before date. A movement
// appended with that date sorts after all of them.
func (s *Service) positionAt(ctx context.Context, key entity.AccountKey, date time.Time) (Position, error) {
	filter := ForKey(key)
	filter.ToDate = &date
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return Position{}, fmt.Errorf("list movements: %w", err)
	}
	return Replay(movements), nil
}

// appendMovement builds the movement for line on top of base and returns it
// together with the position after it.
func (s *Service) appendMovement(
	ctx context.Context,
	line *ledger.EntryLine,
	qty types.Quantity,
	base Position,
) (*entity.QuantityMovement, Position) {
	movementType := line.MovementType()
	next, value := base.Apply(movementType, qty, line.Amount())

	if movementType == entity.MovementIssue {
		if !types.AmountsEqual(value, line.Amount()) {
			logger.Warn(ctx, "issue line amount differs from average cost valuation",
				"entry_line_id", line.ID,
				"line_amount", line.Amount().String(),
				"issue_value", value.String(),
			)
		}
		if next.Quantity.IsNegative() {
			s.metrics.OverIssue()
			logger.Warn(ctx, "over-issue: quantity below zero",
				"entry_line_id", line.ID,
				"account_id", line.AccountID,
				"quantity", next.Quantity.String(),
			)
		}
	}

	return &entity.QuantityMovement{
		ID:                   id.New(),
		CompanyID:            line.CompanyID,
		AccountID:            line.AccountID,
		EntryLineID:          line.ID,
		JournalEntryID:       line.JournalEntryID,
		MovementDate:         types.DateOnly(line.MovementDate),
		Type:                 movementType,
		Quantity:             qty,
		UnitPrice:            types.UnitPrice(value, qty),
		TotalAmount:          value,
		BalanceAfterQuantity: next.Quantity,
		BalanceAfterAmount:   next.Amount,
		AverageCostAtTime:    next.AverageCost,
		CreatedAt:            time.Now().UTC(),
	}, next
}

// applyToBalance moves the balance to next; m is last in replay order.
func applyToBalance(b *entity.QuantityBalance, m *entity.QuantityMovement, next Position) {
	b.CurrentQuantity = next.Quantity
	b.CurrentAmount = next.Amount
	b.CurrentAverageCost = next.AverageCost
	date := m.MovementDate
	movementID := m.ID
	b.LastMovementDate = &date
	b.LastMovementID = &movementID
	b.UpdatedAt = time.Now().UTC()
}

func (s *Service) loadBalanceForUpdate(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	balance, err := s.repo.GetBalanceForUpdate(ctx, key)
	if err == nil {
		return balance, nil
	}
	if apperror.IsNotFound(err) {
		b := entity.NewQuantityBalance(key)
		return &b, nil
	}
	return nil, fmt.Errorf("get balance for update: %w", err)
}

// ProcessJournalEntry processes every line of a posted journal entry in line order.
func (s *Service) ProcessJournalEntry(ctx context.Context, journalEntryID id.ID) ([]Result, error) {
	lines, err := s.lines.ListEntryLines(ctx, journalEntryID)
	if err != nil {
		return nil, fmt.Errorf("list entry lines: %w", err)
	}

	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		res, err := s.ProcessEntryLine(ctx, line.ID)
		if err != nil {
			return results, fmt.Errorf("process entry line %s: %w", line.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// DeleteMovementsByJournalEntryID removes the movements of an unposted journal
// entry and rebuilds every affected balance from the remaining movements.
// Deletion and rebuild of all affected accounts commit as one unit.
func (s *Service) DeleteMovementsByJournalEntryID(ctx context.Context, journalEntryID id.ID) ([]entity.AccountKey, error) {
	var affected []entity.AccountKey

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		locked := make(map[entity.AccountKey]bool)

		// A line of the same entry may be processed concurrently on an account
		// we have not locked yet; re-read until the key set is stable.
		for {
			movements, err := s.repo.GetMovementsByJournalEntry(ctx, journalEntryID)
			if err != nil {
				return fmt.Errorf("get movements by journal entry: %w", err)
			}
			pending := pendingKeys(movements, locked)
			if len(pending) == 0 {
				break
			}
			for _, key := range pending {
				if err := s.repo.LockAccount(ctx, key); err != nil {
					return fmt.Errorf("lock account %s: %w", key, err)
				}
				locked[key] = true
			}
		}

		affected = make([]entity.AccountKey, 0, len(locked))
		for key := range locked {
			affected = append(affected, key)
		}
		sortKeys(affected)

		for _, key := range affected {
			n, err := s.repo.DeleteMovementsByJournalEntry(ctx, journalEntryID, key)
			if err != nil {
				return fmt.Errorf("delete movements on %s: %w", key, err)
			}
			if _, err := s.recalculate(ctx, key); err != nil {
				return err
			}
			logger.Info(ctx, "deleted quantity movements",
				"journal_entry_id", journalEntryID,
				"account_id", key.AccountID,
				"count", n,
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return affected, nil
}

func pendingKeys(movements []entity.QuantityMovement, locked map[entity.AccountKey]bool) []entity.AccountKey {
	seen := make(map[entity.AccountKey]bool)
	var keys []entity.AccountKey
	for i := range movements {
		key := movements[i].Key()
		if locked[key] || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	sortKeys(keys)
	return keys
}

// sortKeys gives lock acquisition a global order.
func sortKeys(keys []entity.AccountKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}

// RecalculateBalance restores the balance row of key from a full replay of its movements.
func (s *Service) RecalculateBalance(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	var balance *entity.QuantityBalance
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockAccount(ctx, key); err != nil {
			return fmt.Errorf("lock account %s: %w", key, err)
		}
		var err error
		balance, err = s.recalculate(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// recalculate rebuilds the balance of key and the running totals of its
// movements from a replay. The caller holds the account lock.
func (s *Service) recalculate(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	ctx, span := tracer.Start(ctx, "quantity.recalculate")
	defer span.End()

	started := time.Now()
	movements, err := s.repo.ListMovements(ctx, ForKey(key))
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	pos := ZeroPosition()
	rewritten := 0
	for i := range movements {
		m := &movements[i]
		pos = pos.ApplyMovement(m)
		if m.BalanceAfterQuantity.Equal(pos.Quantity) && m.BalanceAfterAmount.Equal(pos.Amount) {
			continue
		}
		// AverageCostAtTime keeps the cost the issue was booked at.
		m.BalanceAfterQuantity = pos.Quantity
		m.BalanceAfterAmount = pos.Amount
		if err := s.repo.UpdateRunningTotals(ctx, m); err != nil {
			return nil, fmt.Errorf("update running totals of %s: %w", m.ID, err)
		}
		rewritten++
	}
	s.metrics.ObserveReplay(time.Since(started))
	span.SetAttributes(
		attribute.Int("movements", len(movements)),
		attribute.Int("rewritten", rewritten),
	)

	current, err := s.repo.GetBalanceForUpdate(ctx, key)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("get balance for update: %w", err)
	}
	if current == nil && len(movements) == 0 {
		// Never had a movement: nothing to materialize.
		b := entity.NewQuantityBalance(key)
		return &b, nil
	}

	balance := entity.NewQuantityBalance(key)
	balance.CurrentQuantity = pos.Quantity
	balance.CurrentAmount = pos.Amount
	balance.CurrentAverageCost = pos.AverageCost
	if n := len(movements); n > 0 {
		last := movements[n-1]
		balance.LastMovementDate = &last.MovementDate
		balance.LastMovementID = &last.ID
	}
	balance.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveBalance(ctx, &balance); err != nil {
		return nil, fmt.Errorf("save balance: %w", err)
	}
	s.metrics.BalanceRecalculated()

	logger.Info(ctx, "balance recalculated from movements",
		"account_id", key.AccountID,
		"movements", len(movements),
		"rewritten", rewritten,
		"quantity", pos.Quantity.String(),
		"amount", pos.Amount.String(),
		"average_cost", pos.AverageCost.String(),
	)
	return &balance, nil
}

// GetBalance returns the balance of key; an account without movements has a (0, 0, 0) balance.
func (s *Service) GetBalance(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	balance, err := s.repo.GetBalance(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			b := entity.NewQuantityBalance(key)
			return &b, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ListBalances returns the company's balances.
func (s *Service) ListBalances(ctx context.Context, companyID id.ID, filter BalanceFilter) ([]entity.QuantityBalance, error) {
	balances, err := s.repo.ListBalances(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}

// ListMovements returns movement history in replay order.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]entity.QuantityMovement, error) {
	if id.IsNil(filter.CompanyID) {
		return nil, apperror.NewMissingCompany()
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, apperror.NewInvalidInput("type", "expected RECEIPT or ISSUE")
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

func (s *Service) readOnly(ctx context.Context, fn tx.Func) error {
	return tx.Snapshot(ctx, s.txm, fn)
}
