// Package entity provides core ledger entities.
package entity

import (
	"fmt"
	"time"

	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

// MovementType defines movement direction in the quantity register.
type MovementType string

const (
	// MovementReceipt increases quantity (debit side) and recomputes average cost
	MovementReceipt MovementType = "RECEIPT"
	// MovementIssue decreases quantity (credit side) at the current average cost
	MovementIssue MovementType = "ISSUE"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return t == MovementReceipt || t == MovementIssue
}

// AccountKey identifies the unit of contention: one balance per (company, account).
type AccountKey struct {
	CompanyID id.ID `db:"company_id" json:"companyId"`
	AccountID id.ID `db:"account_id" json:"accountId"`
}

// String returns the canonical "company:account" form used for lock keys.
func (k AccountKey) String() string {
	return k.CompanyID.String() + ":" + k.AccountID.String()
}

// QuantityMovement is one inventory event derived from a posted entry line.
// Movements are only deleted together with their journal entry. The running
// totals are the one part rewritten: when a back-dated movement or a deletion
// shifts the replay, later movements get the replayed totals.
type QuantityMovement struct {
	ID        id.ID `db:"id" json:"id"`
	CompanyID id.ID `db:"company_id" json:"companyId"`
	AccountID id.ID `db:"account_id" json:"accountId"`

	// Weak references into the double-entry journal
	EntryLineID    id.ID `db:"entry_line_id" json:"entryLineId"`
	JournalEntryID id.ID `db:"journal_entry_id" json:"journalEntryId"`

	MovementDate time.Time    `db:"movement_date" json:"movementDate"`
	Type         MovementType `db:"movement_type" json:"type"`

	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`
	TotalAmount types.Money    `db:"total_amount" json:"totalAmount"`

	// Running totals in replay order; AverageCostAtTime is the cost the
	// movement was booked at and is never rewritten.
	BalanceAfterQuantity types.Quantity `db:"balance_after_quantity" json:"balanceAfterQuantity"`
	BalanceAfterAmount   types.Money    `db:"balance_after_amount" json:"balanceAfterAmount"`
	AverageCostAtTime    types.Money    `db:"average_cost_at_time" json:"averageCostAtTime"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Key returns the (company, account) key of the movement.
func (m *QuantityMovement) Key() AccountKey {
	return AccountKey{CompanyID: m.CompanyID, AccountID: m.AccountID}
}

// Validate checks the movement's own invariants.
func (m *QuantityMovement) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("unknown movement type %q", m.Type)
	}
	if !m.Quantity.IsPositive() {
		return fmt.Errorf("movement quantity must be positive, got %s", m.Quantity)
	}
	if id.IsNil(m.EntryLineID) {
		return fmt.Errorf("movement has no entry line")
	}
	return nil
}

// SignedQuantity returns quantity with sign based on movement type.
// Receipt = positive, Issue = negative.
func (m *QuantityMovement) SignedQuantity() types.Quantity {
	if m.Type == MovementIssue {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// SignedAmount returns total amount with sign based on movement type.
func (m *QuantityMovement) SignedAmount() types.Money {
	if m.Type == MovementIssue {
		return m.TotalAmount.Neg()
	}
	return m.TotalAmount
}

// Before reports whether m precedes other in replay order (movementDate, id).
func (m *QuantityMovement) Before(other *QuantityMovement) bool {
	if !m.MovementDate.Equal(other.MovementDate) {
		return m.MovementDate.Before(other.MovementDate)
	}
	return id.Compare(m.ID, other.ID) < 0
}

// QuantityBalance is the materialized running position of one account.
// It holds nothing that a replay of the account's movements cannot rebuild.
type QuantityBalance struct {
	CompanyID id.ID `db:"company_id" json:"companyId"`
	AccountID id.ID `db:"account_id" json:"accountId"`

	CurrentQuantity    types.Quantity `db:"current_quantity" json:"currentQuantity"`
	CurrentAmount      types.Money    `db:"current_amount" json:"currentAmount"`
	CurrentAverageCost types.Money    `db:"current_average_cost" json:"currentAverageCost"`

	LastMovementDate *time.Time `db:"last_movement_date" json:"lastMovementDate,omitempty"`
	LastMovementID   *id.ID     `db:"last_movement_id" json:"lastMovementId,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewQuantityBalance returns the empty (0, 0, 0) balance for key.
func NewQuantityBalance(key AccountKey) QuantityBalance {
	return QuantityBalance{
		CompanyID:          key.CompanyID,
		AccountID:          key.AccountID,
		CurrentQuantity:    types.Zero(),
		CurrentAmount:      types.Zero(),
		CurrentAverageCost: types.Zero(),
	}
}

// Key returns the (company, account) key of the balance.
func (b *QuantityBalance) Key() AccountKey {
	return AccountKey{CompanyID: b.CompanyID, AccountID: b.AccountID}
}

// IsEmpty reports whether the balance has never seen a movement (or lost all of them).
func (b *QuantityBalance) IsEmpty() bool {
	return b.LastMovementID == nil
}

// Consistent checks amount ≈ quantity × average cost, and amount ≈ 0 when quantity is zero.
func (b *QuantityBalance) Consistent() bool {
	if b.CurrentQuantity.IsZero() {
		return b.CurrentAmount.Abs().LessThanOrEqual(types.AmountEpsilon)
	}
	if !b.CurrentQuantity.IsPositive() {
		// Over-issued stock carries a zero average cost; nothing to compare.
		return b.CurrentAverageCost.IsZero()
	}
	expected := b.CurrentQuantity.Mul(b.CurrentAverageCost)
	return b.CurrentAmount.Sub(expected).Abs().LessThanOrEqual(types.BalanceTolerance(b.CurrentQuantity))
}

// CostCorrection describes an issue whose stored average cost is stale after a
// back-dated receipt. It is advisory and never persisted by the sub-ledger.
type CostCorrection struct {
	MovementID        id.ID          `json:"movementId"`
	CompanyID         id.ID          `json:"companyId"`
	JournalEntryID    id.ID          `json:"journalEntryId"`
	MaterialAccountID id.ID          `json:"materialAccountId"`
	ExpenseAccountID  *id.ID         `json:"expenseAccountId,omitempty"`
	MovementDate      time.Time      `json:"movementDate"`
	Quantity          types.Quantity `json:"quantity"`
	OldAverageCost    types.Money    `json:"oldAverageCost"`
	NewAverageCost    types.Money    `json:"newAverageCost"`
	CorrectionAmount  types.Money    `json:"correctionAmount"`
	Description       string         `json:"description"`
}
