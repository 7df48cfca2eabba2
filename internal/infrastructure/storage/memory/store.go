// Package memory provides an in-memory implementation of the sub-ledger storage:
// the quantity register, the report repository, the journal readers and the
// transaction manager. Writes are staged per transaction and applied atomically
// on commit; per-account serialization uses a key lock held until commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/keylock"
	"spcledger/internal/core/tx"
	"spcledger/internal/domain/ledger"
)

// ErrNoTransaction is returned by LockAccount outside a write transaction.
var ErrNoTransaction = errors.New("memory: account lock requires a write transaction")

// Store holds committed state. The zero value is not usable; call New.
type Store struct {
	// commitMu lets read-only transactions see no commit in between their reads
	commitMu sync.RWMutex
	mu       sync.RWMutex
	locks    *keylock.Locker

	movements   map[id.ID]entity.QuantityMovement
	byEntryLine map[id.ID]id.ID
	balances    map[entity.AccountKey]entity.QuantityBalance
	corrections []entity.CostCorrection

	journalMu sync.RWMutex
	accounts  map[id.ID]ledger.Account
	lines     map[id.ID]ledger.EntryLine
}

// New creates an empty store.
func New() *Store {
	return &Store{
		locks:       keylock.New(),
		movements:   make(map[id.ID]entity.QuantityMovement),
		byEntryLine: make(map[id.ID]id.ID),
		balances:    make(map[entity.AccountKey]entity.QuantityBalance),
		accounts:    make(map[id.ID]ledger.Account),
		lines:       make(map[id.ID]ledger.EntryLine),
	}
}

type txKey struct{}

type txState struct {
	readOnly    bool
	inserted    map[id.ID]entity.QuantityMovement
	deleted     map[id.ID]bool
	balances    map[entity.AccountKey]entity.QuantityBalance
	corrections []entity.CostCorrection
	held        map[entity.AccountKey]bool
	unlocks     []func()
}

func newTxState() *txState {
	return &txState{
		inserted: make(map[id.ID]entity.QuantityMovement),
		deleted:  make(map[id.ID]bool),
		balances: make(map[entity.AccountKey]entity.QuantityBalance),
		held:     make(map[entity.AccountKey]bool),
	}
}

func (t *txState) release() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	t.unlocks = nil
}

func getTx(ctx context.Context) *txState {
	if t, ok := ctx.Value(txKey{}).(*txState); ok {
		return t
	}
	return nil
}

// RunInTransaction executes fn in a transaction. Nested calls reuse the outer one.
// Staged writes are discarded when fn returns an error.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t := getTx(ctx); t != nil {
		if t.readOnly {
			return errors.New("memory: write transaction inside read-only transaction")
		}
		return fn(ctx)
	}

	t := newTxState()
	defer t.release()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	return s.commit(t)
}

// ReadOnly executes fn with no commit interleaving its reads.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, &txState{readOnly: true}))
}

func (s *Store) commit(t *txState) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range t.inserted {
		if existing, ok := s.byEntryLine[m.EntryLineID]; ok && !t.deleted[existing] {
			return apperror.NewConcurrentModification("quantity_movement", m.EntryLineID)
		}
	}

	for movementID := range t.deleted {
		if m, ok := s.movements[movementID]; ok {
			delete(s.byEntryLine, m.EntryLineID)
			delete(s.movements, movementID)
		}
	}
	for movementID, m := range t.inserted {
		s.movements[movementID] = m
		s.byEntryLine[m.EntryLineID] = movementID
	}
	for key, b := range t.balances {
		s.balances[key] = b
	}
	s.corrections = append(s.corrections, t.corrections...)
	return nil
}

// write runs fn against the caller's transaction, or an implicit one-statement transaction.
func (s *Store) write(ctx context.Context, fn func(t *txState) error) error {
	t := getTx(ctx)
	if t != nil {
		if t.readOnly {
			return errors.New("memory: write in read-only transaction")
		}
		return fn(t)
	}
	t = newTxState()
	defer t.release()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

// LockAccount takes the key lock until the surrounding transaction ends.
// Locking a key already held by the transaction is a no-op.
func (s *Store) LockAccount(ctx context.Context, key entity.AccountKey) error {
	t := getTx(ctx)
	if t == nil || t.readOnly {
		return ErrNoTransaction
	}
	if t.held[key] {
		return nil
	}
	t.unlocks = append(t.unlocks, s.locks.Lock(key.String()))
	t.held[key] = true
	return nil
}

// PublishCorrections records corrections with the transaction.
func (s *Store) PublishCorrections(ctx context.Context, corrections []entity.CostCorrection) error {
	return s.write(ctx, func(t *txState) error {
		t.corrections = append(t.corrections, corrections...)
		return nil
	})
}

// Corrections returns every correction published so far.
func (s *Store) Corrections() []entity.CostCorrection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.CostCorrection, len(s.corrections))
	copy(out, s.corrections)
	return out
}

var (
	_ tx.ReadOnlyManager    = (*Store)(nil)
	_ ledger.CorrectionSink = (*Store)(nil)
)
