package memory

import (
	"context"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/registers/quantity"
)

// CreateMovement stages a movement insert.
func (s *Store) CreateMovement(ctx context.Context, m *entity.QuantityMovement) error {
	if err := m.Validate(); err != nil {
		return apperror.NewValidation(err.Error())
	}
	if _, err := s.GetMovementByEntryLine(ctx, m.EntryLineID); err == nil {
		return apperror.NewConcurrentModification("quantity_movement", m.EntryLineID)
	}
	return s.write(ctx, func(t *txState) error {
		t.inserted[m.ID] = *m
		return nil
	})
}

// GetMovementByEntryLine implements quantity.Repository.
func (s *Store) GetMovementByEntryLine(ctx context.Context, entryLineID id.ID) (*entity.QuantityMovement, error) {
	found := s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return m.EntryLineID == entryLineID
	})
	if len(found) == 0 {
		return nil, apperror.NewNotFound("quantity_movement", entryLineID)
	}
	return &found[0], nil
}

// GetMovementsByJournalEntry implements quantity.Repository.
func (s *Store) GetMovementsByJournalEntry(ctx context.Context, journalEntryID id.ID) ([]entity.QuantityMovement, error) {
	return s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return m.JournalEntryID == journalEntryID
	}), nil
}

// DeleteMovementsByJournalEntry implements quantity.Repository.
func (s *Store) DeleteMovementsByJournalEntry(ctx context.Context, journalEntryID id.ID, key entity.AccountKey) (int64, error) {
	victims := s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return m.JournalEntryID == journalEntryID && m.Key() == key
	})
	err := s.write(ctx, func(t *txState) error {
		for _, m := range victims {
			if _, staged := t.inserted[m.ID]; staged {
				delete(t.inserted, m.ID)
				continue
			}
			t.deleted[m.ID] = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(victims)), nil
}

// UpdateRunningTotals stages a replacement of the stored movement.
func (s *Store) UpdateRunningTotals(ctx context.Context, m *entity.QuantityMovement) error {
	found := s.selectMovements(ctx, func(stored *entity.QuantityMovement) bool {
		return stored.ID == m.ID
	})
	if len(found) == 0 {
		return apperror.NewNotFound("quantity_movement", m.ID)
	}
	updated := found[0]
	updated.BalanceAfterQuantity = m.BalanceAfterQuantity
	updated.BalanceAfterAmount = m.BalanceAfterAmount
	return s.write(ctx, func(t *txState) error {
		if _, staged := t.inserted[m.ID]; !staged {
			t.deleted[m.ID] = true
		}
		t.inserted[m.ID] = updated
		return nil
	})
}

// ListMovements implements quantity.Repository.
func (s *Store) ListMovements(ctx context.Context, filter quantity.MovementFilter) ([]entity.QuantityMovement, error) {
	found := s.selectMovements(ctx, func(m *entity.QuantityMovement) bool {
		return matchMovement(m, filter)
	})
	return paginate(found, filter.Offset, filter.Limit), nil
}

func matchMovement(m *entity.QuantityMovement, f quantity.MovementFilter) bool {
	switch {
	case m.CompanyID != f.CompanyID:
		return false
	case f.AccountID != nil && m.AccountID != *f.AccountID:
		return false
	case f.Type != nil && m.Type != *f.Type:
		return false
	case f.FromDate != nil && m.MovementDate.Before(*f.FromDate):
		return false
	case f.ToDate != nil && m.MovementDate.After(*f.ToDate):
		return false
	case f.AfterDate != nil && !m.MovementDate.After(*f.AfterDate):
		return false
	case f.BeforeDate != nil && !m.MovementDate.Before(*f.BeforeDate):
		return false
	}
	return true
}

func paginate(ms []entity.QuantityMovement, offset, limit int) []entity.QuantityMovement {
	if offset > 0 {
		if offset >= len(ms) {
			return nil
		}
		ms = ms[offset:]
	}
	if limit > 0 && limit < len(ms) {
		ms = ms[:limit]
	}
	return ms
}

// selectMovements returns matching movements as seen by the caller's
// transaction, in replay order.
func (s *Store) selectMovements(ctx context.Context, match func(m *entity.QuantityMovement) bool) []entity.QuantityMovement {
	t := getTx(ctx)
	var out []entity.QuantityMovement

	s.mu.RLock()
	for movementID, m := range s.movements {
		if t != nil && t.deleted[movementID] {
			continue
		}
		if match(&m) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	if t != nil {
		for _, m := range t.inserted {
			if match(&m) {
				out = append(out, m)
			}
		}
	}

	quantity.SortMovements(out)
	return out
}

// GetBalance implements quantity.Repository.
func (s *Store) GetBalance(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	if t := getTx(ctx); t != nil {
		if b, ok := t.balances[key]; ok {
			return cloneBalance(b), nil
		}
	}
	s.mu.RLock()
	b, ok := s.balances[key]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.NewNotFound("quantity_balance", key.String())
	}
	return cloneBalance(b), nil
}

// GetBalanceForUpdate relies on the account lock taken by the caller.
func (s *Store) GetBalanceForUpdate(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	return s.GetBalance(ctx, key)
}

// SaveBalance implements quantity.Repository.
func (s *Store) SaveBalance(ctx context.Context, b *entity.QuantityBalance) error {
	saved := *cloneBalance(*b)
	return s.write(ctx, func(t *txState) error {
		t.balances[b.Key()] = saved
		return nil
	})
}

// ListBalances implements quantity.Repository.
func (s *Store) ListBalances(ctx context.Context, companyID id.ID, filter quantity.BalanceFilter) ([]entity.QuantityBalance, error) {
	merged := make(map[entity.AccountKey]entity.QuantityBalance)

	s.mu.RLock()
	for key, b := range s.balances {
		if key.CompanyID == companyID {
			merged[key] = b
		}
	}
	s.mu.RUnlock()
	if t := getTx(ctx); t != nil {
		for key, b := range t.balances {
			if key.CompanyID == companyID {
				merged[key] = b
			}
		}
	}

	var accounts map[id.ID]bool
	if len(filter.AccountIDs) > 0 {
		accounts = make(map[id.ID]bool, len(filter.AccountIDs))
		for _, a := range filter.AccountIDs {
			accounts[a] = true
		}
	}

	out := make([]entity.QuantityBalance, 0, len(merged))
	for key, b := range merged {
		if accounts != nil && !accounts[key.AccountID] {
			continue
		}
		if filter.ExcludeZero && b.CurrentQuantity.IsZero() && b.CurrentAmount.IsZero() {
			continue
		}
		out = append(out, *cloneBalance(b))
	}
	sortBalances(out)
	return out, nil
}

// ListAccountKeys implements quantity.Repository.
func (s *Store) ListAccountKeys(ctx context.Context, companyID id.ID) ([]entity.AccountKey, error) {
	seen := make(map[entity.AccountKey]bool)
	var keys []entity.AccountKey
	add := func(key entity.AccountKey) {
		if key.CompanyID == companyID && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	s.mu.RLock()
	for key := range s.balances {
		add(key)
	}
	s.mu.RUnlock()

	for _, m := range s.selectMovements(ctx, func(m *entity.QuantityMovement) bool { return m.CompanyID == companyID }) {
		add(m.Key())
	}
	sortKeys(keys)
	return keys, nil
}

func cloneBalance(b entity.QuantityBalance) *entity.QuantityBalance {
	if b.LastMovementDate != nil {
		d := *b.LastMovementDate
		b.LastMovementDate = &d
	}
	if b.LastMovementID != nil {
		movementID := *b.LastMovementID
		b.LastMovementID = &movementID
	}
	return &b
}

var _ quantity.Repository = (*Store)(nil)
