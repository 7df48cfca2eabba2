package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/id"
	"spcledger/internal/core/tx"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/pkg/logger"
)

// Service provides report generation operations.
type Service struct {
	repo     Repository
	accounts ledger.AccountReader
	txm      tx.Manager
	opening  OpeningMode
}

// NewService creates a new reports service. opening is the default opening
// mode; an empty value selects OpeningFromSnapshot.
func NewService(repo Repository, accounts ledger.AccountReader, txm tx.Manager, opening OpeningMode) *Service {
	if !opening.Valid() {
		opening = OpeningFromSnapshot
	}
	return &Service{repo: repo, accounts: accounts, txm: txm, opening: opening}
}

// QuantityTurnover builds the opening / receipts / issues / closing report per
// account for [FromDate, ToDate]. Accounts with a non-zero opening balance are
// included even without activity. Rows are sorted by account code.
//
// Opening and closing are the replayed positions at the period bounds. Issues
// are valued in replay order, so a back-dated receipt shows up in the issue
// amounts of the period instead of as a gap between closing and the next opening.
func (s *Service) QuantityTurnover(ctx context.Context, filter TurnoverFilter) (*TurnoverReport, error) {
	if id.IsNil(filter.CompanyID) {
		return nil, apperror.NewMissingCompany()
	}
	if filter.FromDate.IsZero() || filter.ToDate.IsZero() {
		return nil, apperror.NewInvalidPeriod("fromDate and toDate are required")
	}
	from := types.DateOnly(filter.FromDate)
	to := types.DateOnly(filter.ToDate)
	if from.After(to) {
		return nil, apperror.NewInvalidPeriod("fromDate must not be after toDate")
	}
	mode := filter.Opening
	if mode == "" {
		mode = s.opening
	}
	if !mode.Valid() {
		return nil, apperror.NewInvalidInput("opening", "expected snapshot or replay")
	}

	var (
		openings  []OpeningSnapshot
		closings  []OpeningSnapshot
		turnovers []PeriodTurnover
	)
	err := s.readOnly(ctx, func(ctx context.Context) error {
		var err error
		openings, closings, err = s.bounds(ctx, mode, filter.CompanyID, from, to, filter.AccountIDs)
		if err != nil {
			return err
		}
		turnovers, err = s.repo.GetPeriodTurnover(ctx, filter.CompanyID, from, to, filter.AccountIDs)
		if err != nil {
			return fmt.Errorf("get period turnover: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := mergeRows(openings, closings, turnovers)
	if err := s.describeAccounts(ctx, filter.CompanyID, rows); err != nil {
		return nil, err
	}
	sortRows(rows)

	report := &TurnoverReport{
		CompanyID: filter.CompanyID,
		FromDate:  from,
		ToDate:    to,
		Opening:   mode,
		Rows:      rows,
		Totals:    totals(rows),
	}

	logger.Debug(ctx, "quantity turnover generated",
		"from", from,
		"to", to,
		"rows", len(rows),
		"opening", mode,
	)
	return report, nil
}

// bounds returns the positions carried into the period and out of it.
func (s *Service) bounds(ctx context.Context, mode OpeningMode, companyID id.ID, from, to time.Time, accountIDs []id.ID) (openings, closings []OpeningSnapshot, err error) {
	after := to.AddDate(0, 0, 1)

	if mode == OpeningFromSnapshot {
		openings, err = s.repo.GetOpeningSnapshots(ctx, companyID, from, accountIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("get opening snapshots: %w", err)
		}
		closings, err = s.repo.GetOpeningSnapshots(ctx, companyID, after, accountIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("get closing snapshots: %w", err)
		}
		return openings, closings, nil
	}

	movements, err := s.repo.ListMovementsBefore(ctx, companyID, after, accountIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list movements up to period end: %w", err)
	}

	opening := make(map[id.ID]quantity.Position)
	closing := make(map[id.ID]quantity.Position)
	var order []id.ID
	for i := range movements {
		m := &movements[i]
		pos, ok := closing[m.AccountID]
		if !ok {
			pos = quantity.ZeroPosition()
			order = append(order, m.AccountID)
		}
		pos = pos.ApplyMovement(m)
		closing[m.AccountID] = pos
		if m.MovementDate.Before(from) {
			opening[m.AccountID] = pos
		}
	}

	for _, accountID := range order {
		if pos, ok := opening[accountID]; ok {
			openings = append(openings, snapshotOf(accountID, pos))
		}
		closings = append(closings, snapshotOf(accountID, closing[accountID]))
	}
	return openings, closings, nil
}

func snapshotOf(accountID id.ID, pos quantity.Position) OpeningSnapshot {
	return OpeningSnapshot{AccountID: accountID, Quantity: pos.Quantity, Amount: pos.Amount}
}

func mergeRows(openings, closings []OpeningSnapshot, turnovers []PeriodTurnover) []TurnoverRow {
	opening := make(map[id.ID]OpeningSnapshot, len(openings))
	for _, o := range openings {
		opening[o.AccountID] = o
	}
	closing := make(map[id.ID]OpeningSnapshot, len(closings))
	for _, c := range closings {
		closing[c.AccountID] = c
	}

	byAccount := make(map[id.ID]*TurnoverRow)
	row := func(accountID id.ID) *TurnoverRow {
		if r, ok := byAccount[accountID]; ok {
			return r
		}
		r := &TurnoverRow{
			AccountID:         accountID,
			OpeningQuantity:   types.Zero(),
			OpeningAmount:     types.Zero(),
			ReceiptQuantity:   types.Zero(),
			ReceiptAmount:     types.Zero(),
			IssueQuantity:     types.Zero(),
			IssueAmount:       types.Zero(),
			BookedIssueAmount: types.Zero(),
		}
		if o, ok := opening[accountID]; ok {
			r.OpeningQuantity = o.Quantity
			r.OpeningAmount = o.Amount
		}
		byAccount[accountID] = r
		return r
	}

	for _, o := range openings {
		if !o.Quantity.IsZero() || !o.Amount.IsZero() {
			row(o.AccountID)
		}
	}
	for _, t := range turnovers {
		r := row(t.AccountID)
		r.ReceiptQuantity = t.ReceiptQuantity
		r.ReceiptAmount = t.ReceiptAmount
		r.IssueQuantity = t.IssueQuantity
		r.BookedIssueAmount = t.IssueAmount
	}

	rows := make([]TurnoverRow, 0, len(byAccount))
	for accountID, r := range byAccount {
		// every row has a movement on or before the period end
		c := closing[accountID]
		r.ClosingQuantity = c.Quantity
		r.ClosingAmount = c.Amount
		r.IssueAmount = r.OpeningAmount.Add(r.ReceiptAmount).Sub(r.ClosingAmount)
		rows = append(rows, *r)
	}
	return rows
}

func (s *Service) describeAccounts(ctx context.Context, companyID id.ID, rows []TurnoverRow) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]id.ID, len(rows))
	for i := range rows {
		ids[i] = rows[i].AccountID
	}

	accounts, err := s.accounts.ListAccounts(ctx, companyID, ids)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	byID := make(map[id.ID]ledger.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	for i := range rows {
		if a, ok := byID[rows[i].AccountID]; ok {
			rows[i].AccountCode = a.Code
			rows[i].AccountName = a.Name
		}
	}
	return nil
}

func sortRows(rows []TurnoverRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AccountCode != rows[j].AccountCode {
			return rows[i].AccountCode < rows[j].AccountCode
		}
		return id.Compare(rows[i].AccountID, rows[j].AccountID) < 0
	})
}

func totals(rows []TurnoverRow) TurnoverTotals {
	t := TurnoverTotals{
		OpeningAmount: types.Zero(),
		ReceiptAmount: types.Zero(),
		IssueAmount:   types.Zero(),
		ClosingAmount: types.Zero(),
	}
	for _, r := range rows {
		t.OpeningAmount = t.OpeningAmount.Add(r.OpeningAmount)
		t.ReceiptAmount = t.ReceiptAmount.Add(r.ReceiptAmount)
		t.IssueAmount = t.IssueAmount.Add(r.IssueAmount)
		t.ClosingAmount = t.ClosingAmount.Add(r.ClosingAmount)
	}
	return t
}

func (s *Service) readOnly(ctx context.Context, fn tx.Func) error {
	return tx.Snapshot(ctx, s.txm, fn)
}
