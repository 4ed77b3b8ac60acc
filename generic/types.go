/*
Package generic provides the domain-agnostic building blocks of the loyalty engine.

PURPOSE:
  Quantities, time windows and locking primitives that the loyalty package
  composes into rules, balances and purchase records. Nothing in here knows
  about fuel, clients or redemption tiers.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (points, liters, currency)
  - Unit: What an Amount counts

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64
  2. Type Safety: the unit travels with the value so points are not added to money

USAGE:
  earned := generic.Liters(decimal.NewFromInt(40)).Value.Mul(rate)
  balance := generic.Points(decimal.Zero).Add(generic.Points(earned))

SEE ALSO:
  - time.go: Period boundaries used by reports
  - keyed.go: Per-key mutual exclusion used by the ledger
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitPoints   Unit = "points"
	UnitLiters   Unit = "liters"
	UnitCurrency Unit = "currency"
)

func Points(v decimal.Decimal) Amount { return Amount{Value: v, Unit: UnitPoints} }
func Liters(v decimal.Decimal) Amount { return Amount{Value: v, Unit: UnitLiters} }
func Money(v decimal.Decimal) Amount  { return Amount{Value: v, Unit: UnitCurrency} }

// ParseAmount parses user input into an Amount.
func ParseAmount(s string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse %s amount %q: %w", unit, s, err)
	}
	return Amount{Value: d, Unit: unit}, nil
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Unit == b.Unit && a.Value.Equal(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }
