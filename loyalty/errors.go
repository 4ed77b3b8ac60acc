/*
errors.go - Error taxonomy for the loyalty engine

ERROR CATEGORIES:
  1. Lookup errors       - ErrNotFound (client, station, operator, rule, ...)
  2. Validation errors   - ErrInvalidArgument, ErrDuplicate, ErrCardInactive,
                           ErrOperatorInactive
  3. Business conflicts  - ErrNoActiveRule, ErrNoEligibleThreshold, ErrInsufficientBalance
  4. Store errors        - ErrConcurrentModification

USAGE:
  Structured errors unwrap to their sentinel, so callers branch with errors.Is
  and dig out details with errors.As:

    var nf *loyalty.NotFoundError
    if errors.As(err, &nf) {
        log.Printf("missing %s %s", nf.Kind, nf.ID)
    }

  Nothing in this package retries. Errors propagate to the caller unchanged.
*/
package loyalty

import (
	"errors"
	"fmt"

	"github.com/warp/loyalty-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound        = errors.New("loyalty: not found")
	ErrInvalidArgument = errors.New("loyalty: invalid argument")
	ErrDuplicate       = errors.New("loyalty: duplicate")
	ErrCardInactive    = errors.New("loyalty: card inactive")

	ErrOperatorInactive = errors.New("loyalty: operator inactive")

	// ErrNoActiveRule is fatal for the purchase that hit it. There is no
	// fallback rate.
	ErrNoActiveRule = errors.New("loyalty: no active points rule")

	// ErrNoEligibleThreshold aborts the whole purchase: redemption is all or
	// nothing, never silently skipped.
	ErrNoEligibleThreshold = errors.New("loyalty: no eligible redemption threshold")

	ErrInsufficientBalance = errors.New("loyalty: insufficient balance")

	// ErrConcurrentModification is returned by stores when a balance
	// compare-and-swap loses.
	ErrConcurrentModification = errors.New("loyalty: concurrent modification")

	ErrForbidden = errors.New("loyalty: forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EntityKind names what a NotFoundError was looking for.
type EntityKind string

const (
	KindClient      EntityKind = "client"
	KindStation     EntityKind = "station"
	KindOperator    EntityKind = "operator"
	KindRule        EntityKind = "points rule"
	KindThreshold   EntityKind = "redemption threshold"
	KindCard        EntityKind = "loyalty card"
	KindTransaction EntityKind = "transaction"
)

type NotFoundError struct {
	Kind EntityKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind EntityKind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

func invalid(field, reason string) error {
	return &InvalidArgumentError{Field: field, Reason: reason}
}

type DuplicateError struct {
	Kind  EntityKind
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// InsufficientBalanceError reports a delta that would push a balance below zero.
type InsufficientBalanceError struct {
	ClientID  ClientID
	Available generic.Amount
	Delta     generic.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for client %s: available %v, delta %v",
		e.ClientID, e.Available.Value, e.Delta.Value)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

type NoEligibleThresholdError struct {
	ClientID ClientID
	Balance  generic.Amount
}

func (e *NoEligibleThresholdError) Error() string {
	return fmt.Sprintf("no redemption threshold affordable for client %s with balance %v",
		e.ClientID, e.Balance.Value)
}

func (e *NoEligibleThresholdError) Unwrap() error { return ErrNoEligibleThreshold }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the request itself was malformed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsConflict returns true if the request was well formed but the current
// state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoActiveRule) ||
		errors.Is(err, ErrNoEligibleThreshold) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrCardInactive) ||
		errors.Is(err, ErrOperatorInactive) ||
		errors.Is(err, ErrConcurrentModification)
}
