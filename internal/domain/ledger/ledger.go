// Package ledger defines the boundary to the external double-entry journal engine.
// The sub-ledger reads posted entry lines and account reference data through
// these interfaces and hands detected cost corrections back through CorrectionSink.
package ledger

import (
	"context"
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

// EntryLine is a posted journal line as seen by the sub-ledger.
type EntryLine struct {
	ID             id.ID           `db:"id" json:"id"`
	CompanyID      id.ID           `db:"company_id" json:"companyId"`
	JournalEntryID id.ID           `db:"journal_entry_id" json:"journalEntryId"`
	AccountID      id.ID           `db:"account_id" json:"accountId"`
	DebitAmount    types.Money     `db:"debit_amount" json:"debitAmount"`
	CreditAmount   types.Money     `db:"credit_amount" json:"creditAmount"`
	Quantity       *types.Quantity `db:"quantity" json:"quantity,omitempty"`
	UnitOfMeasure  *string         `db:"unit_of_measure" json:"unitOfMeasure,omitempty"`
	MovementDate   time.Time       `db:"movement_date" json:"movementDate"`
	LineNumber     int             `db:"line_number" json:"lineNumber"`
}

// HasQuantity reports whether the line carries a non-zero quantity.
func (l *EntryLine) HasQuantity() bool {
	return l.Quantity != nil && !l.Quantity.IsZero()
}

// IsDebit reports whether the debit side is the non-zero one.
func (l *EntryLine) IsDebit() bool {
	return !l.DebitAmount.IsZero()
}

// Amount returns the non-zero side of the line.
func (l *EntryLine) Amount() types.Money {
	if l.IsDebit() {
		return l.DebitAmount
	}
	return l.CreditAmount
}

// MovementType classifies the line: debit is a receipt, credit is an issue.
func (l *EntryLine) MovementType() entity.MovementType {
	if l.IsDebit() {
		return entity.MovementReceipt
	}
	return entity.MovementIssue
}

// Account is the read-only reference data the sub-ledger needs about an account.
type Account struct {
	ID                 id.ID  `db:"id" json:"id"`
	CompanyID          id.ID  `db:"company_id" json:"companyId"`
	Code               string `db:"code" json:"code"`
	Name               string `db:"name" json:"name"`
	SupportsQuantities bool   `db:"supports_quantities" json:"supportsQuantities"`
}

// EntryLineReader reads posted lines from the journal engine.
type EntryLineReader interface {
	// GetEntryLine returns the line or apperror NotFound.
	GetEntryLine(ctx context.Context, lineID id.ID) (*EntryLine, error)

	// ListEntryLines returns every line of a journal entry ordered by line number.
	ListEntryLines(ctx context.Context, journalEntryID id.ID) ([]EntryLine, error)
}

// AccountReader reads the chart of accounts.
type AccountReader interface {
	// GetAccount returns the account or apperror NotFound.
	GetAccount(ctx context.Context, accountID id.ID) (*Account, error)

	// ListAccounts returns the accounts with the given ids that belong to the company.
	// Unknown ids are skipped.
	ListAccounts(ctx context.Context, companyID id.ID, ids []id.ID) ([]Account, error)
}

// CorrectionSink receives advisory cost corrections for the journal engine to post.
type CorrectionSink interface {
	PublishCorrections(ctx context.Context, corrections []entity.CostCorrection) error
}

// NopSink discards corrections.
type NopSink struct{}

// PublishCorrections implements CorrectionSink.
func (NopSink) PublishCorrections(context.Context, []entity.CostCorrection) error { return nil }

// FindExpenseLine returns the counterpart debit line of an issue: a debit on a
// different account whose amount equals the issue total at cent precision.
// Returns nil if none matches.
func FindExpenseLine(lines []EntryLine, issueLineID, materialAccountID id.ID, total types.Money) *EntryLine {
	for i := range lines {
		l := &lines[i]
		if l.ID == issueLineID || l.AccountID == materialAccountID {
			continue
		}
		if l.IsDebit() && types.RoundAmount(l.DebitAmount).Equal(types.RoundAmount(total)) {
			return l
		}
	}
	return nil
}
