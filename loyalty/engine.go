/*
engine.go - Purchase-transaction engine

PURPOSE:
  Turns one fuel purchase into points earned, an optional redemption, one
  balance mutation and one immutable FuelTransaction. Also wires the other
  components (registry, catalog, ledger, reports, identities) around a
  shared store, clock and lock table.

RECORD PURCHASE FLOW:
  1. Validate liters > 0 and gross > 0
  2. Resolve station and operator (cached), then the client
  3. Load the active rule           -> ErrNoActiveRule if none
  4. earned = liters * pointsPerLiter
  5. If redemption requested: best affordable tier for the CURRENT balance
     (before earned points)          -> ErrNoEligibleThreshold if none
     discount = min(tier value, gross)
  6. Apply ONE delta (earned - redeemed) through the ledger
  7. Append the FuelTransaction

  Steps 2-7 run inside one store transaction while holding the client's lock,
  so two purchases for the same client never interleave their
  read-balance/apply-delta, and a failed record write rolls the balance back.
  Purchases for different clients only contend on the store itself.

EXAMPLE:
  engine, _ := loyalty.NewEngine(store)
  tx, err := engine.RecordPurchase(ctx, loyalty.PurchaseRequest{
      ClientID: "c-1", StationID: "s-1", OperatorID: "op-1",
      Liters: decimal.NewFromInt(40), GrossAmount: decimal.RequireFromString("65.00"),
  })
  // tx.PointsEarned = 60 points with a 1.5 pts/l rule

SEE ALSO:
  - ledger.go: Balance delta primitive
  - thresholds.go: SelectBestAffordable
*/
package loyalty

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
)

// =============================================================================
// OBSERVER - Hooks for metrics
// =============================================================================

// Observer is notified of engine outcomes. Implementations must be cheap and
// must not call back into the engine.
type Observer interface {
	PurchaseRecorded(tx FuelTransaction)
	PurchaseRejected(err error)
	RuleActivated(rule PointsRule)
	BalanceAdjusted(account ClientAccount, delta generic.Amount)
}

type nopObserver struct{}

func (nopObserver) PurchaseRecorded(FuelTransaction)              {}
func (nopObserver) PurchaseRejected(error)                        {}
func (nopObserver) RuleActivated(PointsRule)                      {}
func (nopObserver) BalanceAdjusted(ClientAccount, generic.Amount) {}

// =============================================================================
// OPTIONS
// =============================================================================

type Option func(*deps)

// WithClock overrides time.Now. Tests use it to pin timestamps.
func WithClock(clock func() time.Time) Option {
	return func(d *deps) { d.clock = clock }
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(d *deps) { d.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) { d.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(d *deps) { d.observer = o }
}

// WithIdentityCacheSize bounds the station/operator lookup cache.
func WithIdentityCacheSize(n int) Option {
	return func(d *deps) { d.identityCacheSize = n }
}

// deps is shared by every component built by NewEngine.
type deps struct {
	store             TxStore
	clock             func() time.Time
	newID             func() string
	logger            *slog.Logger
	observer          Observer
	locks             *generic.KeyedMutex
	identityCacheSize int
}

func (d *deps) now() time.Time { return d.clock().UTC() }

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	*deps

	Rules      *Registry
	Catalog    *Catalog
	Ledger     *Ledger
	Reports    *Reports
	Clients    *ClientRegistry
	Cards      *CardRegistry
	Identities *IdentityRegistry
}

// NewEngine builds the engine and all of its components over store.
func NewEngine(store TxStore, opts ...Option) (*Engine, error) {
	d := &deps{
		store:             store,
		clock:             time.Now,
		newID:             uuid.NewString,
		logger:            slog.Default(),
		observer:          nopObserver{},
		locks:             generic.NewKeyedMutex(),
		identityCacheSize: 1024,
	}
	for _, opt := range opts {
		opt(d)
	}

	identities, err := newIdentityRegistry(d)
	if err != nil {
		return nil, err
	}

	return &Engine{
		deps:       d,
		Rules:      &Registry{deps: d},
		Catalog:    &Catalog{deps: d},
		Ledger:     &Ledger{deps: d},
		Reports:    &Reports{deps: d},
		Clients:    &ClientRegistry{deps: d},
		Cards:      &CardRegistry{deps: d},
		Identities: identities,
	}, nil
}

// PurchaseRequest is one fuel purchase as rung up by a station operator.
type PurchaseRequest struct {
	ClientID      ClientID
	StationID     StationID
	OperatorID    OperatorID
	Liters        decimal.Decimal
	GrossAmount   decimal.Decimal
	UseRedemption bool
}

func (r PurchaseRequest) validate() error {
	if !r.Liters.IsPositive() {
		return invalid("liters", "must be greater than zero")
	}
	if !r.GrossAmount.IsPositive() {
		return invalid("gross amount", "must be greater than zero")
	}
	return nil
}

// RecordPurchase records one fuel purchase. It is all or nothing: on error no
// balance changes and no transaction record exists.
func (e *Engine) RecordPurchase(ctx context.Context, req PurchaseRequest) (FuelTransaction, error) {
	tx, err := e.recordPurchase(ctx, req)
	if err != nil {
		e.observer.PurchaseRejected(err)
		e.logger.Warn("purchase rejected",
			slog.String("client_id", string(req.ClientID)),
			slog.String("station_id", string(req.StationID)),
			slog.Bool("use_redemption", req.UseRedemption),
			slog.Any("error", err),
		)
		return FuelTransaction{}, err
	}

	e.observer.PurchaseRecorded(tx)
	e.logger.Info("purchase recorded",
		slog.String("transaction_id", string(tx.ID)),
		slog.String("client_id", string(tx.ClientID)),
		slog.String("liters", tx.Liters.Value.String()),
		slog.String("points_earned", tx.PointsEarned.Value.String()),
		slog.String("points_redeemed", tx.PointsRedeemed.Value.String()),
		slog.String("net_amount", tx.NetAmount.Value.String()),
	)
	return tx, nil
}

func (e *Engine) recordPurchase(ctx context.Context, req PurchaseRequest) (FuelTransaction, error) {
	if err := req.validate(); err != nil {
		return FuelTransaction{}, err
	}
	if _, err := e.Identities.Station(ctx, req.StationID); err != nil {
		return FuelTransaction{}, err
	}
	op, err := e.Identities.Operator(ctx, req.OperatorID)
	if err != nil {
		return FuelTransaction{}, err
	}
	if !op.Active {
		return FuelTransaction{}, ErrOperatorInactive
	}

	unlock := e.locks.Lock(string(req.ClientID))
	defer unlock()

	var recorded FuelTransaction
	err = e.store.WithTx(ctx, func(s Store) error {
		client, err := s.Client(ctx, req.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return notFound(KindClient, string(req.ClientID))
		}

		rule, err := activeRule(ctx, s)
		if err != nil {
			return err
		}
		earned := rule.PointsFor(req.Liters)

		gross := generic.Money(req.GrossAmount)
		redeemed := generic.Points(decimal.Zero)
		discount := generic.Money(decimal.Zero)
		var thresholdID ThresholdID

		if req.UseRedemption {
			thresholds, err := s.Thresholds(ctx)
			if err != nil {
				return err
			}
			best, ok := SelectBestAffordable(thresholds, client.Balance)
			if !ok {
				return &NoEligibleThresholdError{ClientID: client.ID, Balance: client.Balance}
			}
			redeemed = best.PointsRequired
			discount = best.MonetaryValue.Min(gross)
			thresholdID = best.ID
		}

		tx := FuelTransaction{
			ID:             TransactionID(e.newID()),
			ClientID:       client.ID,
			StationID:      req.StationID,
			OperatorID:     req.OperatorID,
			RuleID:         rule.ID,
			ThresholdID:    thresholdID,
			Timestamp:      e.now(),
			Liters:         generic.Liters(req.Liters),
			GrossAmount:    gross,
			Discount:       discount,
			NetAmount:      gross.Sub(discount),
			PointsEarned:   earned,
			PointsRedeemed: redeemed,
		}
		if _, err := applyDelta(ctx, s, client, tx.NetPoints()); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		recorded = tx
		return nil
	})
	return recorded, err
}

// Transaction returns a recorded purchase.
func (e *Engine) Transaction(ctx context.Context, id TransactionID) (FuelTransaction, error) {
	tx, err := e.store.Transaction(ctx, id)
	if err != nil {
		return FuelTransaction{}, err
	}
	if tx == nil {
		return FuelTransaction{}, notFound(KindTransaction, string(id))
	}
	return *tx, nil
}

// ClientTransactions returns the purchase history of an existing client.
func (e *Engine) ClientTransactions(ctx context.Context, clientID ClientID) ([]FuelTransaction, error) {
	if _, err := e.Clients.Client(ctx, clientID); err != nil {
		return nil, err
	}
	return e.store.TransactionsByClient(ctx, clientID)
}

// RejectionReason classifies a purchase error for metrics labels.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoActiveRule):
		return "no_active_rule"
	case errors.Is(err, ErrNoEligibleThreshold):
		return "no_eligible_threshold"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrCardInactive):
		return "card_inactive"
	case errors.Is(err, ErrOperatorInactive):
		return "operator_inactive"
	default:
		return "internal"
	}
}
