package reports

import (
	"context"
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
)

// Repository defines report data access over the movement ledger.
// An empty accountIDs slice means all accounts of the company.
type Repository interface {
	// GetOpeningSnapshots returns the running totals of the last movement
	// strictly before date, one row per account that has such a movement.
	GetOpeningSnapshots(ctx context.Context, companyID id.ID, before time.Time, accountIDs []id.ID) ([]OpeningSnapshot, error)

	// GetPeriodTurnover sums receipts and issues per account for movements dated within [from, to].
	GetPeriodTurnover(ctx context.Context, companyID id.ID, from, to time.Time, accountIDs []id.ID) ([]PeriodTurnover, error)

	// ListMovementsBefore returns movements dated strictly before date in replay order.
	ListMovementsBefore(ctx context.Context, companyID id.ID, before time.Time, accountIDs []id.ID) ([]entity.QuantityMovement, error)
}
