package memory

import (
	"context"
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/reports"
)

func accountSet(ids []id.ID) func(id.ID) bool {
	if len(ids) == 0 {
		return func(id.ID) bool { return true }
	}
	set := make(map[id.ID]bool, len(ids))
	for _, a := range ids {
		set[a] = true
	}
	return func(a id.ID) bool { return set[a] }
}

// GetOpeningSnapshots implements reports.Repository.
func (s *Store) GetOpeningSnapshots(ctx context.Context, companyID id.ID, before time.Time, accountIDs []id.ID) ([]reports.OpeningSnapshot, error) {
	inSet := accountSet(accountIDs)
	movements := s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return m.CompanyID == companyID && inSet(m.AccountID) && m.MovementDate.Before(before)
	})

	// movements are in replay order, so the last one seen per account wins
	last := make(map[id.ID]entity.QuantityMovement)
	var order []id.ID
	for _, m := range movements {
		if _, ok := last[m.AccountID]; !ok {
			order = append(order, m.AccountID)
		}
		last[m.AccountID] = m
	}

	out := make([]reports.OpeningSnapshot, 0, len(order))
	for _, accountID := range order {
		m := last[accountID]
		out = append(out, reports.OpeningSnapshot{
			AccountID: accountID,
			Quantity:  m.BalanceAfterQuantity,
			Amount:    m.BalanceAfterAmount,
		})
	}
	return out, nil
}

// GetPeriodTurnover implements reports.Repository.
func (s *Store) GetPeriodTurnover(ctx context.Context, companyID id.ID, from, to time.Time, accountIDs []id.ID) ([]reports.PeriodTurnover, error) {
	inSet := accountSet(accountIDs)
	movements := s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return m.CompanyID == companyID && inSet(m.AccountID) &&
			!m.MovementDate.Before(from) && !m.MovementDate.After(to)
	})

	sums := make(map[id.ID]*reports.PeriodTurnover)
	var order []id.ID
	for _, m := range movements {
		t, ok := sums[m.AccountID]
		if !ok {
			t = &reports.PeriodTurnover{
				AccountID:       m.AccountID,
				ReceiptQuantity: types.Zero(),
				ReceiptAmount:   types.Zero(),
				IssueQuantity:   types.Zero(),
				IssueAmount:     types.Zero(),
			}
			sums[m.AccountID] = t
			order = append(order, m.AccountID)
		}
		if m.Type == entity.MovementReceipt {
			t.ReceiptQuantity = t.ReceiptQuantity.Add(m.Quantity)
			t.ReceiptAmount = t.ReceiptAmount.Add(m.TotalAmount)
		} else {
			t.IssueQuantity = t.IssueQuantity.Add(m.Quantity)
			t.IssueAmount = t.IssueAmount.Add(m.TotalAmount)
		}
	}

	out := make([]reports.PeriodTurnover, 0, len(order))
	for _, accountID := range order {
		out = append(out, *sums[accountID])
	}
	return out, nil
}

// ListMovementsBefore implements reports.Repository.
func (s *Store) ListMovementsBefore(ctx context.Context, companyID id.ID, before time.Time, accountIDs []id.ID) ([]entity.QuantityMovement, error) {
	inSet := accountSet(accountIDs)
	return s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return m.CompanyID == companyID && inSet(m.AccountID) && m.MovementDate.Before(before)
	}), nil
}

var _ reports.Repository = (*Store)(nil)
