/*
rules.go - Points-rule registry

PURPOSE:
  Stores the points-per-liter rules. Exactly one rule is active at a time;
  earlier rules stay on record with a closed validity interval so the rate
  behind any past purchase can be audited (FuelTransaction.RuleID).

ACTIVATION:
  SetActiveRule with MakeActive = true, in ONE store transaction:
    1. Close the current active rule (IsActive=false, ValidTo=now)
    2. Insert the new rule with IsActive=true and Version = latest+1
  Concurrent readers see either the old rule or the new one, never zero or
  two. SQLite additionally enforces the single active rule with a partial
  unique index.

  With MakeActive = false the rule is recorded as history only and the
  current active rule is untouched.
*/
package loyalty

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Registry manages points rules.
type Registry struct {
	*deps
}

// RuleRequest describes a new rule. A zero ValidFrom means now.
type RuleRequest struct {
	PointsPerLiter decimal.Decimal
	ValidFrom      time.Time
	ValidTo        *time.Time
	MakeActive     bool
}

func (r RuleRequest) validate() error {
	if !r.PointsPerLiter.IsPositive() {
		return invalid("points per liter", "must be greater than zero")
	}
	if r.ValidTo != nil && !r.ValidFrom.IsZero() && !r.ValidTo.After(r.ValidFrom) {
		return invalid("valid to", "must be after valid from")
	}
	return nil
}

// ActiveRule returns the rule currently in force, or ErrNoActiveRule.
func (r *Registry) ActiveRule(ctx context.Context) (PointsRule, error) {
	return activeRule(ctx, r.store)
}

func activeRule(ctx context.Context, s RuleStore) (PointsRule, error) {
	rule, err := s.ActiveRule(ctx)
	if err != nil {
		return PointsRule{}, err
	}
	if rule == nil {
		return PointsRule{}, ErrNoActiveRule
	}
	return *rule, nil
}

// SetActiveRule records a new rule and, when req.MakeActive is set, makes it
// the single active rule.
func (r *Registry) SetActiveRule(ctx context.Context, req RuleRequest) (PointsRule, error) {
	if err := req.validate(); err != nil {
		return PointsRule{}, err
	}

	now := r.now()
	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = now
	}
	if req.ValidTo != nil && !req.ValidTo.After(validFrom) {
		return PointsRule{}, invalid("valid to", "must be after valid from")
	}

	var (
		created PointsRule
		closed  *PointsRule
	)
	err := r.store.WithTx(ctx, func(s Store) error {
		version, err := s.LatestRuleVersion(ctx)
		if err != nil {
			return err
		}

		if req.MakeActive {
			current, err := s.ActiveRule(ctx)
			if err != nil {
				return err
			}
			if current != nil {
				if err := s.CloseRule(ctx, current.ID, now); err != nil {
					return err
				}
				closed = current
			}
		}

		created = PointsRule{
			ID:             RuleID(r.newID()),
			PointsPerLiter: req.PointsPerLiter,
			ValidFrom:      validFrom.UTC(),
			ValidTo:        utcPtr(req.ValidTo),
			IsActive:       req.MakeActive,
			Version:        version + 1,
			CreatedAt:      now,
		}
		return s.InsertRule(ctx, created)
	})
	if err != nil {
		return PointsRule{}, err
	}

	if created.IsActive {
		attrs := []any{
			slog.String("rule_id", string(created.ID)),
			slog.String("points_per_liter", created.PointsPerLiter.String()),
			slog.Int("version", created.Version),
		}
		if closed != nil {
			attrs = append(attrs, slog.String("replaced_rule_id", string(closed.ID)))
		}
		r.logger.Info("points rule activated", attrs...)
		r.observer.RuleActivated(created)
	}
	return created, nil
}

// Rule returns one rule by ID.
func (r *Registry) Rule(ctx context.Context, id RuleID) (PointsRule, error) {
	rule, err := r.store.Rule(ctx, id)
	if err != nil {
		return PointsRule{}, err
	}
	if rule == nil {
		return PointsRule{}, notFound(KindRule, string(id))
	}
	return *rule, nil
}

// Rules returns the full rule history, oldest version first.
func (r *Registry) Rules(ctx context.Context) ([]PointsRule, error) {
	return r.store.Rules(ctx)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
