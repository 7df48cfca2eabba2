// Package reports provides the quantity turnover report.
package reports

import (
	"time"

	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

// OpeningMode selects how opening balances are obtained.
type OpeningMode string

const (
	// OpeningFromSnapshot reads balanceAfter* of the last movement before each period bound.
	OpeningFromSnapshot OpeningMode = "snapshot"
	// OpeningFromReplay replays all movements up to the period end.
	OpeningFromReplay OpeningMode = "replay"
)

// Valid reports whether m is a known mode.
func (m OpeningMode) Valid() bool {
	return m == OpeningFromSnapshot || m == OpeningFromReplay
}

// OpeningSnapshot is the running position carried into a period.
type OpeningSnapshot struct {
	AccountID id.ID          `db:"account_id"`
	Quantity  types.Quantity `db:"balance_after_quantity"`
	Amount    types.Money    `db:"balance_after_amount"`
}

// PeriodTurnover holds the per-account sums of one period.
type PeriodTurnover struct {
	AccountID       id.ID          `db:"account_id"`
	ReceiptQuantity types.Quantity `db:"receipt_quantity"`
	ReceiptAmount   types.Money    `db:"receipt_amount"`
	IssueQuantity   types.Quantity `db:"issue_quantity"`
	IssueAmount     types.Money    `db:"issue_amount"`
}

// TurnoverFilter defines the quantity turnover report request.
type TurnoverFilter struct {
	CompanyID id.ID

	// Period (required, inclusive)
	FromDate time.Time
	ToDate   time.Time

	// Optional account restriction
	AccountIDs []id.ID

	// Opening defaults to OpeningFromSnapshot
	Opening OpeningMode
}

// TurnoverRow is one account of the report.
type TurnoverRow struct {
	AccountID   id.ID  `json:"accountId"`
	AccountCode string `json:"accountCode"`
	AccountName string `json:"accountName"`

	OpeningQuantity types.Quantity `json:"openingQuantity"`
	OpeningAmount   types.Money    `json:"openingAmount"`
	ReceiptQuantity types.Quantity `json:"receiptQuantity"`
	ReceiptAmount   types.Money    `json:"receiptAmount"`
	IssueQuantity   types.Quantity `json:"issueQuantity"`
	// IssueAmount values issues in replay order; BookedIssueAmount is what they
	// were booked at. The difference is the pending average-cost correction.
	IssueAmount       types.Money    `json:"issueAmount"`
	BookedIssueAmount types.Money    `json:"bookedIssueAmount"`
	ClosingQuantity   types.Quantity `json:"closingQuantity"`
	ClosingAmount     types.Money    `json:"closingAmount"`
}

// TurnoverTotals sums every column of the report.
type TurnoverTotals struct {
	OpeningAmount types.Money `json:"openingAmount"`
	ReceiptAmount types.Money `json:"receiptAmount"`
	IssueAmount   types.Money `json:"issueAmount"`
	ClosingAmount types.Money `json:"closingAmount"`
}

// TurnoverReport is the quantity turnover report (оборотна ведомост).
type TurnoverReport struct {
	CompanyID id.ID          `json:"companyId"`
	FromDate  time.Time      `json:"fromDate"`
	ToDate    time.Time      `json:"toDate"`
	Opening   OpeningMode    `json:"opening"`
	Rows      []TurnoverRow  `json:"rows"`
	Totals    TurnoverTotals `json:"totals"`
}
