/*
store.go - Persistence interfaces for the loyalty engine

PURPOSE:
  Defines the boundary between the engine and the database. Each concern has
  a narrow interface; Store composes them and TxStore adds all-or-nothing
  transactions.

LOOKUP CONVENTION:
  Single-record lookups return (nil, nil) when the record does not exist.
  Turning that into a NotFoundError is the caller's job, since only the caller
  knows which entity the request named.

APPEND-ONLY RECORDS:
  Fuel transactions and redemption thresholds have no update or delete
  methods. Rules are closed (CloseRule), never edited otherwise.

BALANCE WRITES:
  UpdateBalance is a compare-and-swap on ClientAccount.Version. A store
  returns ErrConcurrentModification if the version moved, so a lost race is
  reported, never silently overwritten.

TRANSACTIONS:
  WithTx runs fn against a Store bound to one database transaction. If fn
  returns an error every write made through that Store is rolled back. Code
  running inside fn must only use the Store it was handed.

IMPLEMENTATIONS:
  - loyalty/store/memory.go: In-memory with snapshot rollback
  - store/sqlite/sqlite.go: SQLite via database/sql
*/
package loyalty

import (
	"context"
	"time"

	"github.com/warp/loyalty-engine/generic"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

type RuleStore interface {
	// ActiveRule returns the rule with IsActive = true, or nil.
	ActiveRule(ctx context.Context) (*PointsRule, error)
	Rule(ctx context.Context, id RuleID) (*PointsRule, error)
	// Rules returns every rule ordered by Version ascending.
	Rules(ctx context.Context) ([]PointsRule, error)
	// LatestRuleVersion returns the highest Version stored, 0 if none.
	LatestRuleVersion(ctx context.Context) (int, error)
	InsertRule(ctx context.Context, rule PointsRule) error
	// CloseRule marks the rule inactive and sets its ValidTo.
	CloseRule(ctx context.Context, id RuleID, at time.Time) error
}

type ThresholdStore interface {
	InsertThreshold(ctx context.Context, t RedemptionThreshold) error
	Threshold(ctx context.Context, id ThresholdID) (*RedemptionThreshold, error)
	// Thresholds returns the whole catalog ordered by PointsRequired ascending.
	Thresholds(ctx context.Context) ([]RedemptionThreshold, error)
}

type AccountStore interface {
	// InsertClient fails with a DuplicateError if the phone is taken.
	InsertClient(ctx context.Context, c ClientAccount) error
	Client(ctx context.Context, id ClientID) (*ClientAccount, error)
	ClientByPhone(ctx context.Context, phone string) (*ClientAccount, error)
	Clients(ctx context.Context) ([]ClientAccount, error)
	// UpdateBalance writes balance if the stored version equals
	// expectedVersion, and bumps the version.
	UpdateBalance(ctx context.Context, id ClientID, expectedVersion int, balance generic.Amount) error
}

type CardStore interface {
	// InsertCard fails with a DuplicateError if the number or client already
	// has a card.
	InsertCard(ctx context.Context, card LoyaltyCard) error
	CardByNumber(ctx context.Context, number string) (*LoyaltyCard, error)
	CardByClient(ctx context.Context, clientID ClientID) (*LoyaltyCard, error)
	SetCardActive(ctx context.Context, id CardID, active bool) error
}

type IdentityStore interface {
	InsertStation(ctx context.Context, s Station) error
	Station(ctx context.Context, id StationID) (*Station, error)
	Stations(ctx context.Context) ([]Station, error)
	InsertOperator(ctx context.Context, o Operator) error
	Operator(ctx context.Context, id OperatorID) (*Operator, error)
	Operators(ctx context.Context) ([]Operator, error)
	// SetOperatorActive fails with a NotFoundError for an unknown operator.
	SetOperatorActive(ctx context.Context, id OperatorID, active bool) error
}

type TransactionStore interface {
	AppendTransaction(ctx context.Context, tx FuelTransaction) error
	Transaction(ctx context.Context, id TransactionID) (*FuelTransaction, error)
	// TransactionsByClient returns the client's purchases by timestamp.
	TransactionsByClient(ctx context.Context, clientID ClientID) ([]FuelTransaction, error)
	// TransactionsBetween returns purchases with from <= Timestamp <= to.
	TransactionsBetween(ctx context.Context, from, to time.Time) ([]FuelTransaction, error)
}

// Store is everything the engine persists.
type Store interface {
	RuleStore
	ThresholdStore
	AccountStore
	CardStore
	IdentityStore
	TransactionStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
