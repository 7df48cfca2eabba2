package dto

import (
	"spcledger/internal/core/types"
	"spcledger/internal/domain/reports"
)

// TurnoverReportRequest holds query parameters of the quantity turnover report.
type TurnoverReportRequest struct {
	FromDate   string   `form:"fromDate" binding:"required"`
	ToDate     string   `form:"toDate" binding:"required"`
	AccountIDs []string `form:"accountId"`
	Opening    string   `form:"opening" binding:"omitempty,oneof=snapshot replay"`
}

// TurnoverRowResponse is one account of the turnover report.
type TurnoverRowResponse struct {
	AccountID       string `json:"accountId"`
	AccountCode     string `json:"accountCode"`
	AccountName     string `json:"accountName"`
	OpeningQuantity string `json:"openingQuantity"`
	OpeningAmount   string `json:"openingAmount"`
	ReceiptQuantity string `json:"receiptQuantity"`
	ReceiptAmount   string `json:"receiptAmount"`
	IssueQuantity   string `json:"issueQuantity"`
	IssueAmount     string `json:"issueAmount"`
	BookedIssue     string `json:"bookedIssueAmount"`
	ClosingQuantity string `json:"closingQuantity"`
	ClosingAmount   string `json:"closingAmount"`
}

// TurnoverTotalsResponse sums the amount columns.
type TurnoverTotalsResponse struct {
	OpeningAmount string `json:"openingAmount"`
	ReceiptAmount string `json:"receiptAmount"`
	IssueAmount   string `json:"issueAmount"`
	ClosingAmount string `json:"closingAmount"`
}

// TurnoverReportResponse is the quantity turnover report.
type TurnoverReportResponse struct {
	CompanyID string                 `json:"companyId"`
	FromDate  string                 `json:"fromDate"`
	ToDate    string                 `json:"toDate"`
	Opening   string                 `json:"opening"`
	Rows      []TurnoverRowResponse  `json:"rows"`
	Totals    TurnoverTotalsResponse `json:"totals"`
}

func amount(m types.Money) string { return m.StringFixed(types.AmountPlaces) }

// FromTurnoverReport converts domain report to response DTO.
func FromTurnoverReport(r *reports.TurnoverReport) TurnoverReportResponse {
	resp := TurnoverReportResponse{
		CompanyID: r.CompanyID.String(),
		FromDate:  formatDate(r.FromDate),
		ToDate:    formatDate(r.ToDate),
		Opening:   string(r.Opening),
		Rows:      make([]TurnoverRowResponse, len(r.Rows)),
		Totals: TurnoverTotalsResponse{
			OpeningAmount: amount(r.Totals.OpeningAmount),
			ReceiptAmount: amount(r.Totals.ReceiptAmount),
			IssueAmount:   amount(r.Totals.IssueAmount),
			ClosingAmount: amount(r.Totals.ClosingAmount),
		},
	}
	for i, row := range r.Rows {
		resp.Rows[i] = TurnoverRowResponse{
			AccountID:       row.AccountID.String(),
			AccountCode:     row.AccountCode,
			AccountName:     row.AccountName,
			OpeningQuantity: row.OpeningQuantity.String(),
			OpeningAmount:   amount(row.OpeningAmount),
			ReceiptQuantity: row.ReceiptQuantity.String(),
			ReceiptAmount:   amount(row.ReceiptAmount),
			IssueQuantity:   row.IssueQuantity.String(),
			IssueAmount:     amount(row.IssueAmount),
			BookedIssue:     amount(row.BookedIssueAmount),
			ClosingQuantity: row.ClosingQuantity.String(),
			ClosingAmount:   amount(row.ClosingAmount),
		}
	}
	return resp
}
