package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/registers/quantity"
)

func testMovement(key entity.AccountKey, date time.Time) *entity.QuantityMovement {
	return &entity.QuantityMovement{
		ID:             id.New(),
		CompanyID:      key.CompanyID,
		AccountID:      key.AccountID,
		EntryLineID:    id.New(),
		JournalEntryID: id.New(),
		MovementDate:   date,
		Type:           entity.MovementReceipt,
		Quantity:       types.MustQuantity("10"),
		TotalAmount:    types.MustMoney("100"),
	}
}

func testKey() entity.AccountKey {
	return entity.AccountKey{CompanyID: id.New(), AccountID: id.New()}
}

func TestRunInTransaction_RollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.LockAccount(ctx, key))
		require.NoError(t, s.CreateMovement(ctx, testMovement(key, time.Now())))
		b := entity.NewQuantityBalance(key)
		require.NoError(t, s.SaveBalance(ctx, &b))

		// staged writes are visible inside the transaction
		found, err := s.ListMovements(ctx, quantity.ForKey(key))
		require.NoError(t, err)
		assert.Len(t, found, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	found, err := s.ListMovements(ctx, quantity.ForKey(key))
	require.NoError(t, err)
	assert.Empty(t, found)
	_, err = s.GetBalance(ctx, key)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, 0, s.locks.Len(), "locks must be released on rollback")
}

func TestRunInTransaction_StagedWritesInvisibleOutside(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.CreateMovement(ctx, testMovement(key, time.Now())); err != nil {
				return err
			}
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside
	found, err := s.ListMovements(ctx, quantity.ForKey(key))
	require.NoError(t, err)
	assert.Empty(t, found)

	close(release)
	require.NoError(t, <-done)
	found, err = s.ListMovements(ctx, quantity.ForKey(key))
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestLockAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	assert.ErrorIs(t, s.LockAccount(ctx, key), ErrNoTransaction)

	err := s.ReadOnly(ctx, func(ctx context.Context) error {
		return s.LockAccount(ctx, key)
	})
	assert.ErrorIs(t, err, ErrNoTransaction)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.LockAccount(ctx, key))
		// reentrant within the same transaction
		require.NoError(t, s.LockAccount(ctx, key))
		assert.Equal(t, 1, s.locks.Len())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.locks.Len())
}

func TestCommit_DuplicateEntryLineConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()
	first := testMovement(key, time.Now())
	second := testMovement(key, time.Now())
	second.EntryLineID = first.EntryLineID

	started := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.CreateMovement(ctx, first); err != nil {
				return err
			}
			close(started)
			<-proceed
			return nil
		})
	}()

	<-started
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.CreateMovement(ctx, second)
	})
	require.NoError(t, err)

	close(proceed)
	err = <-done
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))

	found, err := s.ListMovements(ctx, quantity.ForKey(key))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, second.ID, found[0].ID)
}

func TestListMovements_ReplayOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	late := testMovement(key, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	early := testMovement(key, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sameDay := testMovement(key, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	for _, m := range []*entity.QuantityMovement{late, early, sameDay} {
		require.NoError(t, s.CreateMovement(ctx, m))
	}

	found, err := s.ListMovements(ctx, quantity.ForKey(key))
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, []id.ID{early.ID, late.ID, sameDay.ID}, []id.ID{found[0].ID, found[1].ID, found[2].ID})
}

func TestUpdateRunningTotals(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	m := testMovement(key, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	m.AverageCostAtTime = types.MustMoney("11")
	require.NoError(t, s.CreateMovement(ctx, m))

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.LockAccount(ctx, key))
		update := *m
		update.BalanceAfterQuantity = types.MustQuantity("140")
		update.BalanceAfterAmount = types.MustMoney("1435")
		update.AverageCostAtTime = types.MustMoney("99")
		require.NoError(t, s.UpdateRunningTotals(ctx, &update))

		found, err := s.ListMovements(ctx, quantity.ForKey(key))
		require.NoError(t, err)
		assert.Len(t, found, 1, "the update must not duplicate the movement")
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetMovementByEntryLine(ctx, m.EntryLineID)
	require.NoError(t, err)
	assert.True(t, types.MustQuantity("140").Equal(got.BalanceAfterQuantity))
	assert.True(t, types.MustMoney("1435").Equal(got.BalanceAfterAmount))
	assert.True(t, types.MustMoney("11").Equal(got.AverageCostAtTime), "booked cost is kept")

	missing := testMovement(key, time.Now())
	assert.True(t, apperror.IsNotFound(s.UpdateRunningTotals(ctx, missing)))
}

func TestListBalances_Filters(t *testing.T) {
	s := New()
	ctx := context.Background()
	company := id.New()

	active := entity.NewQuantityBalance(entity.AccountKey{CompanyID: company, AccountID: id.New()})
	active.CurrentQuantity = types.MustQuantity("5")
	active.CurrentAmount = types.MustMoney("50")
	active.CurrentAverageCost = types.MustMoney("10")
	empty := entity.NewQuantityBalance(entity.AccountKey{CompanyID: company, AccountID: id.New()})
	other := entity.NewQuantityBalance(testKey())
	for _, b := range []*entity.QuantityBalance{&active, &empty, &other} {
		require.NoError(t, s.SaveBalance(ctx, b))
	}

	all, err := s.ListBalances(ctx, company, quantity.BalanceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	nonZero, err := s.ListBalances(ctx, company, quantity.BalanceFilter{ExcludeZero: true})
	require.NoError(t, err)
	require.Len(t, nonZero, 1)
	assert.Equal(t, active.AccountID, nonZero[0].AccountID)

	picked, err := s.ListBalances(ctx, company, quantity.BalanceFilter{AccountIDs: []id.ID{empty.AccountID}})
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, empty.AccountID, picked[0].AccountID)
}
