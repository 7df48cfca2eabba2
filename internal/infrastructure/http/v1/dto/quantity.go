package dto

import (
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/registers/quantity"
)

// Amounts are rendered with AmountPlaces, average costs with UnitPricePlaces
// and quantities as stored.

// MovementResponse represents a quantity movement in API responses.
type MovementResponse struct {
	ID             string `json:"id"`
	CompanyID      string `json:"companyId"`
	AccountID      string `json:"accountId"`
	EntryLineID    string `json:"entryLineId"`
	JournalEntryID string `json:"journalEntryId"`
	MovementDate   string `json:"movementDate"`
	Type           string `json:"type"`

	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalAmount string `json:"totalAmount"`

	BalanceAfterQuantity string `json:"balanceAfterQuantity"`
	BalanceAfterAmount   string `json:"balanceAfterAmount"`
	AverageCostAtTime    string `json:"averageCostAtTime"`

	CreatedAt time.Time `json:"createdAt"`
}

// FromMovement converts entity to response DTO.
func FromMovement(m *entity.QuantityMovement) MovementResponse {
	return MovementResponse{
		ID:                   m.ID.String(),
		CompanyID:            m.CompanyID.String(),
		AccountID:            m.AccountID.String(),
		EntryLineID:          m.EntryLineID.String(),
		JournalEntryID:       m.JournalEntryID.String(),
		MovementDate:         formatDate(m.MovementDate),
		Type:                 string(m.Type),
		Quantity:             m.Quantity.String(),
		UnitPrice:            m.UnitPrice.StringFixed(types.UnitPricePlaces),
		TotalAmount:          m.TotalAmount.StringFixed(types.AmountPlaces),
		BalanceAfterQuantity: m.BalanceAfterQuantity.String(),
		BalanceAfterAmount:   m.BalanceAfterAmount.StringFixed(types.AmountPlaces),
		AverageCostAtTime:    m.AverageCostAtTime.StringFixed(types.UnitPricePlaces),
		CreatedAt:            m.CreatedAt,
	}
}

// FromMovements converts a slice of movements.
func FromMovements(ms []entity.QuantityMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i := range ms {
		out[i] = FromMovement(&ms[i])
	}
	return out
}

// BalanceResponse represents an account balance in API responses.
type BalanceResponse struct {
	CompanyID          string     `json:"companyId"`
	AccountID          string     `json:"accountId"`
	CurrentQuantity    string     `json:"currentQuantity"`
	CurrentAmount      string     `json:"currentAmount"`
	CurrentAverageCost string     `json:"currentAverageCost"`
	LastMovementDate   *string    `json:"lastMovementDate,omitempty"`
	LastMovementID     *string    `json:"lastMovementId,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// FromBalance converts entity to response DTO.
func FromBalance(b *entity.QuantityBalance) BalanceResponse {
	resp := BalanceResponse{
		CompanyID:          b.CompanyID.String(),
		AccountID:          b.AccountID.String(),
		CurrentQuantity:    b.CurrentQuantity.String(),
		CurrentAmount:      b.CurrentAmount.StringFixed(types.AmountPlaces),
		CurrentAverageCost: b.CurrentAverageCost.StringFixed(types.UnitPricePlaces),
		LastMovementDate:   formatDatePtr(b.LastMovementDate),
		LastMovementID:     idPtr(b.LastMovementID),
	}
	// An account without movements has never been written.
	if !b.UpdatedAt.IsZero() {
		updated := b.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

// FromBalances converts a slice of balances.
func FromBalances(bs []entity.QuantityBalance) []BalanceResponse {
	out := make([]BalanceResponse, len(bs))
	for i := range bs {
		out[i] = FromBalance(&bs[i])
	}
	return out
}

// CorrectionResponse represents an advisory cost correction.
type CorrectionResponse struct {
	MovementID        string  `json:"movementId"`
	JournalEntryID    string  `json:"journalEntryId"`
	MaterialAccountID string  `json:"materialAccountId"`
	ExpenseAccountID  *string `json:"expenseAccountId"`
	MovementDate      string  `json:"movementDate"`
	Quantity          string  `json:"quantity"`
	OldAverageCost    string  `json:"oldAverageCost"`
	NewAverageCost    string  `json:"newAverageCost"`
	CorrectionAmount  string  `json:"correctionAmount"`
	Description       string  `json:"description"`
}

// FromCorrections converts detected corrections.
func FromCorrections(cs []entity.CostCorrection) []CorrectionResponse {
	out := make([]CorrectionResponse, len(cs))
	for i, c := range cs {
		out[i] = CorrectionResponse{
			MovementID:        c.MovementID.String(),
			JournalEntryID:    c.JournalEntryID.String(),
			MaterialAccountID: c.MaterialAccountID.String(),
			ExpenseAccountID:  idPtr(c.ExpenseAccountID),
			MovementDate:      formatDate(c.MovementDate),
			Quantity:          c.Quantity.String(),
			OldAverageCost:    c.OldAverageCost.StringFixed(types.UnitPricePlaces),
			NewAverageCost:    c.NewAverageCost.StringFixed(types.UnitPricePlaces),
			CorrectionAmount:  c.CorrectionAmount.StringFixed(types.AmountPlaces),
			Description:       c.Description,
		}
	}
	return out
}

// ProcessResultResponse is the outcome of processing one entry line.
type ProcessResultResponse struct {
	Outcome     string               `json:"outcome"`
	Reason      string               `json:"reason,omitempty"`
	EntryLineID string               `json:"entryLineId"`
	Movement    *MovementResponse    `json:"movement,omitempty"`
	Balance     *BalanceResponse     `json:"balance,omitempty"`
	BackDated   bool                 `json:"backDated"`
	Corrections []CorrectionResponse `json:"corrections,omitempty"`
}

// FromResult converts a processing result.
func FromResult(r quantity.Result) ProcessResultResponse {
	resp := ProcessResultResponse{
		Outcome:     string(r.Outcome),
		Reason:      string(r.Reason),
		EntryLineID: r.EntryLineID.String(),
		BackDated:   r.BackDated,
	}
	if r.Movement != nil {
		m := FromMovement(r.Movement)
		resp.Movement = &m
	}
	if r.Balance != nil {
		b := FromBalance(r.Balance)
		resp.Balance = &b
	}
	if len(r.Corrections) > 0 {
		resp.Corrections = FromCorrections(r.Corrections)
	}
	return resp
}

// FromResults converts the results of a journal entry.
func FromResults(rs []quantity.Result) []ProcessResultResponse {
	out := make([]ProcessResultResponse, len(rs))
	for i, r := range rs {
		out[i] = FromResult(r)
	}
	return out
}

// PositionResponse is a running (quantity, amount, average cost) triple.
type PositionResponse struct {
	Quantity    string `json:"quantity"`
	Amount      string `json:"amount"`
	AverageCost string `json:"averageCost"`
}

// FromPosition converts a replay position.
func FromPosition(p quantity.Position) PositionResponse {
	return PositionResponse{
		Quantity:    p.Quantity.String(),
		Amount:      p.Amount.StringFixed(types.AmountPlaces),
		AverageCost: p.AverageCost.StringFixed(types.UnitPricePlaces),
	}
}

// AverageCostResponse answers "what was the average cost on date X".
type AverageCostResponse struct {
	AccountID string  `json:"accountId"`
	AsOf      *string `json:"asOf,omitempty"`
	PositionResponse
	MovementCount int  `json:"movementCount"`
	FromBalance   bool `json:"fromBalance"`
}

// FromSnapshot converts an as-of snapshot.
func FromSnapshot(s quantity.Snapshot) AverageCostResponse {
	return AverageCostResponse{
		AccountID:        s.AccountID.String(),
		AsOf:             formatDatePtr(s.AsOf),
		PositionResponse: FromPosition(s.Position),
		MovementCount:    s.MovementCount,
		FromBalance:      s.FromBalance,
	}
}

// DriftResponse reports a balance that disagrees with replay.
type DriftResponse struct {
	AccountID  string           `json:"accountId"`
	Stored     PositionResponse `json:"stored"`
	Replayed   PositionResponse `json:"replayed"`
	Consistent bool             `json:"consistent"`
}

// FromDrifts converts verification drifts.
func FromDrifts(ds []quantity.Drift) []DriftResponse {
	out := make([]DriftResponse, len(ds))
	for i, d := range ds {
		out[i] = DriftResponse{
			AccountID:  d.Key.AccountID.String(),
			Stored:     FromPosition(d.Stored),
			Replayed:   FromPosition(d.Replayed),
			Consistent: d.Consistent,
		}
	}
	return out
}

// DeleteMovementsResponse lists the accounts whose balances were recalculated.
type DeleteMovementsResponse struct {
	JournalEntryID       string   `json:"journalEntryId"`
	RecalculatedAccounts []string `json:"recalculatedAccounts"`
}

// MovementListRequest holds query parameters of GET /quantity/movements.
type MovementListRequest struct {
	AccountID string `form:"accountId"`
	Type      string `form:"type"`
	FromDate  string `form:"fromDate"`
	ToDate    string `form:"toDate"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
}

// BalanceListRequest holds query parameters of GET /quantity/balances.
type BalanceListRequest struct {
	AccountIDs  []string `form:"accountId"`
	ExcludeZero bool     `form:"excludeZero"`
}
