// Package types provides numeric types and rounding rules of the sub-ledger.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a physical quantity in the account's unit of measure.
type Quantity = decimal.Decimal

// Scales used when values are persisted or compared.
const (
	QuantityPlaces  int32 = 6
	UnitPricePlaces int32 = 6
	AmountPlaces    int32 = 2
)

var (
	// CorrectionThreshold is the minimum absolute correction worth reporting.
	CorrectionThreshold = decimal.New(1, -2)

	// AmountEpsilon is the tolerance for amount comparisons.
	AmountEpsilon = decimal.New(1, -2)

	// quantityTolerance scales AmountEpsilon with the quantity held, since
	// average cost is stored with UnitPricePlaces digits.
	quantityTolerance = decimal.New(1, -int32(UnitPricePlaces))
)

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MustQuantity is MustMoney for quantities.
func MustQuantity(s string) Quantity {
	return MustMoney(s)
}

// Zero returns zero value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// RoundAmount rounds a monetary amount half-up to AmountPlaces.
func RoundAmount(m Money) Money {
	return m.Round(AmountPlaces)
}

// RoundUnitPrice rounds a per-unit price half-up to UnitPricePlaces.
func RoundUnitPrice(m Money) Money {
	return m.Round(UnitPricePlaces)
}

// RoundQuantity normalizes a quantity to QuantityPlaces.
func RoundQuantity(q Quantity) Quantity {
	return q.Round(QuantityPlaces)
}

// UnitPrice returns amount / quantity rounded to UnitPricePlaces,
// or zero when quantity is not positive.
func UnitPrice(amount Money, qty Quantity) Money {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return RoundUnitPrice(amount.Div(qty))
}

// AmountsEqual reports whether two amounts differ by no more than AmountEpsilon.
func AmountsEqual(a, b Money) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountEpsilon)
}

// BalanceTolerance is the allowed gap between amount and quantity × average cost.
func BalanceTolerance(qty Quantity) Money {
	return AmountEpsilon.Add(qty.Abs().Mul(quantityTolerance))
}

// ExceedsThreshold reports whether |m| is strictly greater than CorrectionThreshold.
func ExceedsThreshold(m Money, threshold Money) bool {
	return m.Abs().GreaterThan(threshold)
}

// DateOnly truncates t to a UTC calendar date.
// Movements are ordered by business date, never by time of day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD) or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}
