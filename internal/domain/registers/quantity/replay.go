package quantity

import (
	"sort"
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/types"
)

// Position is the running state of the moving average for one account.
type Position struct {
	Quantity    types.Quantity `json:"quantity"`
	Amount      types.Money    `json:"amount"`
	AverageCost types.Money    `json:"averageCost"`
}

// ZeroPosition is the state before the first movement.
func ZeroPosition() Position {
	return Position{Quantity: types.Zero(), Amount: types.Zero(), AverageCost: types.Zero()}
}

// PositionOf returns the running state stored in a balance row.
func PositionOf(b *entity.QuantityBalance) Position {
	return Position{
		Quantity:    b.CurrentQuantity,
		Amount:      b.CurrentAmount,
		AverageCost: b.CurrentAverageCost,
	}
}

// Apply folds one movement into the position and returns the new position and
// the movement value.
//
// Receipt: quantity and amount grow by the receipt, average cost is recomputed
// and rounded to UnitPricePlaces.
// Issue: value is the current average cost × quantity, unrounded, so that
// amount - quantity × average cost stays constant across issues. An issue that
// empties the account is valued at the remaining amount.
// Whenever quantity drops to zero or below the average cost resets to zero.
func (p Position) Apply(t entity.MovementType, qty types.Quantity, receiptAmount types.Money) (Position, types.Money) {
	var next Position
	var value types.Money

	switch t {
	case entity.MovementReceipt:
		value = receiptAmount
		next.Quantity = p.Quantity.Add(qty)
		next.Amount = p.Amount.Add(value)
		next.AverageCost = types.UnitPrice(next.Amount, next.Quantity)
	default:
		value = p.AverageCost.Mul(qty)
		next.Quantity = p.Quantity.Sub(qty)
		if next.Quantity.IsZero() {
			// the last unit takes whatever amount is left
			value = p.Amount
		}
		next.Amount = p.Amount.Sub(value)
		next.AverageCost = p.AverageCost
	}

	if !next.Quantity.IsPositive() {
		next.AverageCost = types.Zero()
	}
	return next, value
}

// ApplyMovement folds a stored movement. Issues are revalued at the replayed
// average cost; receipts keep their recorded amount.
func (p Position) ApplyMovement(m *entity.QuantityMovement) Position {
	next, _ := p.Apply(m.Type, m.Quantity, m.TotalAmount)
	return next
}

// Equal compares two positions within the amount tolerance.
func (p Position) Equal(other Position) bool {
	return p.Quantity.Equal(other.Quantity) &&
		types.AmountsEqual(p.Amount, other.Amount) &&
		p.AverageCost.Sub(other.AverageCost).Abs().LessThanOrEqual(types.AmountEpsilon)
}

// SortMovements orders movements by (movementDate, id) in place.
func SortMovements(ms []entity.QuantityMovement) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Before(&ms[j])
	})
}

// Replay folds movements, which must already be in replay order, from (0, 0, 0).
func Replay(ms []entity.QuantityMovement) Position {
	pos := ZeroPosition()
	for i := range ms {
		pos = pos.ApplyMovement(&ms[i])
	}
	return pos
}

// Timeline holds the position at the end of every business date of a replay.
type Timeline struct {
	dates     []time.Time
	positions []Position
}

// BuildTimeline replays movements (in replay order) and records the position
// after the last movement of each date.
func BuildTimeline(ms []entity.QuantityMovement) Timeline {
	var tl Timeline
	pos := ZeroPosition()
	for i := range ms {
		pos = pos.ApplyMovement(&ms[i])
		last := i == len(ms)-1 || !ms[i+1].MovementDate.Equal(ms[i].MovementDate)
		if last {
			tl.dates = append(tl.dates, ms[i].MovementDate)
			tl.positions = append(tl.positions, pos)
		}
	}
	return tl
}

// AsOf returns the position including every movement dated on or before date.
func (tl Timeline) AsOf(date time.Time) Position {
	// first index with dates[i] > date
	i := sort.Search(len(tl.dates), func(i int) bool {
		return tl.dates[i].After(date)
	})
	if i == 0 {
		return ZeroPosition()
	}
	return tl.positions[i-1]
}

// Len returns the number of distinct dates in the timeline.
func (tl Timeline) Len() int {
	return len(tl.dates)
}
