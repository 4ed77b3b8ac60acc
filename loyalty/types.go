/*
Package loyalty implements the fuel-station loyalty accrual and redemption engine.

PURPOSE:
  Clients earn points on every fuel purchase according to the active points
  rule, and may trade points for a fixed discount by redeeming a tier from the
  redemption catalog. This package owns the rules, the catalog, the balance
  ledger, the purchase engine and the reporting queries.

COMPONENTS:
  Registry:  Time-bounded points-per-liter rules, exactly one active (rules.go)
  Catalog:   Redemption thresholds ordered by point cost (thresholds.go)
  Ledger:    Client point balances, signed deltas applied atomically (ledger.go)
  Engine:    One fuel purchase end to end (engine.go)
  Reports:   Read-only range queries over recorded purchases (reports.go)

  Supporting: client registry (clients.go), loyalty cards (cards.go),
  stations and operators (identity.go), role checks (access.go).

KEY INVARIANTS:
  1. At most one PointsRule has IsActive = true at any instant
  2. A client's balance never goes negative through an engine-applied delta
  3. A FuelTransaction is written exactly once per purchase and never changed
  4. A purchase mutates the balance at most once, together with its record

PERSISTENCE:
  Everything goes through the TxStore interface (store.go). Implementations:
  - loyalty/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - generic/: Amount, Period and KeyedMutex primitives
  - api/: HTTP surface over this package
*/
package loyalty

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RuleID string
type ThresholdID string
type ClientID string
type CardID string
type StationID string
type OperatorID string
type TransactionID string

// =============================================================================
// POINTS RULE - Liters to points conversion rate
// =============================================================================

// PointsRule converts liters purchased into points. Rules are versioned:
// activating a new rule closes the previous one (IsActive=false, ValidTo=now)
// and the new rule gets the next Version.
type PointsRule struct {
	ID             RuleID
	PointsPerLiter decimal.Decimal
	ValidFrom      time.Time
	ValidTo        *time.Time // nil = open ended
	IsActive       bool
	Version        int
	CreatedAt      time.Time
}

// PointsFor returns the points earned for the given liters.
func (r PointsRule) PointsFor(liters decimal.Decimal) generic.Amount {
	return generic.Points(liters.Mul(r.PointsPerLiter))
}

// =============================================================================
// REDEMPTION THRESHOLD - Point cost to discount tier
// =============================================================================

type RedemptionThreshold struct {
	ID             ThresholdID
	PointsRequired generic.Amount // UnitPoints
	MonetaryValue  generic.Amount // UnitCurrency
	Description    string
	CreatedAt      time.Time
}

// =============================================================================
// CLIENT ACCOUNT - Canonical owner of the point balance
// =============================================================================

type ClientAccount struct {
	ID           ClientID
	Phone        string
	LastName     string
	FirstName    string
	RegisteredAt time.Time
	Balance      generic.Amount // UnitPoints

	// Version increments on every balance write; stores use it as the
	// compare-and-swap token for UpdateBalance.
	Version int
}

// =============================================================================
// LOYALTY CARD - Identification only, carries no balance
// =============================================================================

type LoyaltyCard struct {
	ID       CardID
	Number   string // six digits, unique
	ClientID ClientID
	Active   bool
	IssuedAt time.Time
}

// =============================================================================
// STATIONS AND OPERATORS
// =============================================================================

type Station struct {
	ID        StationID
	Name      string
	Address   string
	City      string
	CreatedAt time.Time
}

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleStationEmployee Role = "station_employee"
	RoleClientWeb       Role = "client_web"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStationEmployee, RoleClientWeb:
		return true
	}
	return false
}

// Operator is a back-office user. Station employees are bound to a station.
// Deactivated operators keep their history but can no longer act.
type Operator struct {
	ID        OperatorID
	Username  string
	Role      Role
	StationID StationID // empty unless Role is RoleStationEmployee
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// FUEL TRANSACTION - Immutable purchase record
// =============================================================================

type FuelTransaction struct {
	ID             TransactionID
	ClientID       ClientID
	StationID      StationID
	OperatorID     OperatorID
	RuleID         RuleID
	ThresholdID    ThresholdID // empty when no redemption
	Timestamp      time.Time
	Liters         generic.Amount // UnitLiters
	GrossAmount    generic.Amount // UnitCurrency
	Discount       generic.Amount // UnitCurrency
	NetAmount      generic.Amount // UnitCurrency, Gross - Discount
	PointsEarned   generic.Amount // UnitPoints
	PointsRedeemed generic.Amount // UnitPoints
}

// NetPoints is the signed balance change this purchase applied.
func (t FuelTransaction) NetPoints() generic.Amount {
	return t.PointsEarned.Sub(t.PointsRedeemed)
}
