// Package quantity provides the weighted-average-cost quantity register:
// an append-only movement ledger per (company, account), the materialized
// balance it feeds, and replay over the ledger.
package quantity

import (
	"context"
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
)

// Repository defines storage operations of the quantity register.
// Every write must run inside a transaction that holds LockAccount for the key.
type Repository interface {
	// Locking

	// LockAccount serializes writers of one (company, account) key until the
	// surrounding transaction ends. Different keys never contend.
	LockAccount(ctx context.Context, key entity.AccountKey) error

	// Movement operations

	// CreateMovement appends a movement. A second movement for the same entry
	// line fails with apperror ConcurrentModification.
	CreateMovement(ctx context.Context, m *entity.QuantityMovement) error

	// GetMovementByEntryLine returns the movement created from an entry line or apperror NotFound.
	GetMovementByEntryLine(ctx context.Context, entryLineID id.ID) (*entity.QuantityMovement, error)

	// GetMovementsByJournalEntry returns all movements created from one journal entry.
	GetMovementsByJournalEntry(ctx context.Context, journalEntryID id.ID) ([]entity.QuantityMovement, error)

	// DeleteMovementsByJournalEntry removes the journal entry's movements on one account.
	DeleteMovementsByJournalEntry(ctx context.Context, journalEntryID id.ID, key entity.AccountKey) (int64, error)

	// UpdateRunningTotals rewrites BalanceAfterQuantity and BalanceAfterAmount of
	// a stored movement. AverageCostAtTime stays as recorded.
	UpdateRunningTotals(ctx context.Context, m *entity.QuantityMovement) error

	// ListMovements returns movements in replay order (movementDate, id).
	ListMovements(ctx context.Context, filter MovementFilter) ([]entity.QuantityMovement, error)

	// Balance operations

	// GetBalance returns the balance row or apperror NotFound.
	GetBalance(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error)

	// GetBalanceForUpdate returns the balance row locked for update, or apperror NotFound.
	GetBalanceForUpdate(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error)

	// SaveBalance inserts or replaces the balance row.
	SaveBalance(ctx context.Context, b *entity.QuantityBalance) error

	// ListBalances returns the company's balance rows ordered by account id.
	ListBalances(ctx context.Context, companyID id.ID, filter BalanceFilter) ([]entity.QuantityBalance, error)

	// ListAccountKeys returns every key that has a balance row or a movement.
	ListAccountKeys(ctx context.Context, companyID id.ID) ([]entity.AccountKey, error)
}

// MovementFilter for movement queries. Dates compare on movement_date.
type MovementFilter struct {
	CompanyID id.ID
	AccountID *id.ID
	Type      *entity.MovementType

	FromDate   *time.Time // movement_date >= FromDate
	ToDate     *time.Time // movement_date <= ToDate
	AfterDate  *time.Time // movement_date > AfterDate
	BeforeDate *time.Time // movement_date < BeforeDate

	Limit  int
	Offset int
}

// ForKey returns an unbounded filter over one account.
func ForKey(key entity.AccountKey) MovementFilter {
	accountID := key.AccountID
	return MovementFilter{CompanyID: key.CompanyID, AccountID: &accountID}
}

// BalanceFilter for balance queries.
type BalanceFilter struct {
	AccountIDs  []id.ID
	ExcludeZero bool
}
