/*
thresholds.go - Redemption-threshold catalog

PURPOSE:
  Stores the redemption tiers (point cost -> monetary discount) and picks the
  tier a client can use.

SELECTION:
  Among tiers with PointsRequired <= balance, the one with the LARGEST
  PointsRequired wins: the richest tier the client can afford right now, not
  the cheapest one and not the highest discount regardless of cost.

  Ties on PointsRequired are broken by highest MonetaryValue, then earliest
  CreatedAt, then smallest ID, so the choice is deterministic.

ORDERING:
  List always returns tiers ascending by PointsRequired (ties in the same
  order as the selection tie-break).
*/
package loyalty

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
)

// Catalog manages redemption thresholds.
type Catalog struct {
	*deps
}

// Add inserts a new tier. Several tiers may share the same point cost.
func (c *Catalog) Add(ctx context.Context, pointsRequired, monetaryValue decimal.Decimal, description string) (RedemptionThreshold, error) {
	if !pointsRequired.IsPositive() {
		return RedemptionThreshold{}, invalid("points required", "must be greater than zero")
	}
	if !monetaryValue.IsPositive() {
		return RedemptionThreshold{}, invalid("monetary value", "must be greater than zero")
	}

	t := RedemptionThreshold{
		ID:             ThresholdID(c.newID()),
		PointsRequired: generic.Points(pointsRequired),
		MonetaryValue:  generic.Money(monetaryValue),
		Description:    description,
		CreatedAt:      c.now(),
	}
	if err := c.store.InsertThreshold(ctx, t); err != nil {
		return RedemptionThreshold{}, err
	}
	return t, nil
}

// List returns the catalog ordered ascending by PointsRequired.
func (c *Catalog) List(ctx context.Context) ([]RedemptionThreshold, error) {
	ts, err := c.store.Thresholds(ctx)
	if err != nil {
		return nil, err
	}
	sortThresholds(ts)
	return ts, nil
}

// Threshold returns one tier by ID.
func (c *Catalog) Threshold(ctx context.Context, id ThresholdID) (RedemptionThreshold, error) {
	t, err := c.store.Threshold(ctx, id)
	if err != nil {
		return RedemptionThreshold{}, err
	}
	if t == nil {
		return RedemptionThreshold{}, notFound(KindThreshold, string(id))
	}
	return *t, nil
}

// BestAffordable returns the tier a client with the given balance would
// redeem. ok is false when no tier is affordable.
func (c *Catalog) BestAffordable(ctx context.Context, balance generic.Amount) (t RedemptionThreshold, ok bool, err error) {
	ts, err := c.store.Thresholds(ctx)
	if err != nil {
		return RedemptionThreshold{}, false, err
	}
	t, ok = SelectBestAffordable(ts, balance)
	return t, ok, nil
}

// SelectBestAffordable picks the affordable tier with the largest
// PointsRequired. It does not modify ts.
func SelectBestAffordable(ts []RedemptionThreshold, balance generic.Amount) (RedemptionThreshold, bool) {
	var (
		best  RedemptionThreshold
		found bool
	)
	for _, t := range ts {
		if t.PointsRequired.Value.GreaterThan(balance.Value) {
			continue
		}
		if !found || outranks(t, best) {
			best, found = t, true
		}
	}
	return best, found
}

// outranks reports whether a should be redeemed in preference to b.
func outranks(a, b RedemptionThreshold) bool {
	if c := a.PointsRequired.Value.Cmp(b.PointsRequired.Value); c != 0 {
		return c > 0
	}
	return tieBreakLess(a, b)
}

// tieBreakLess orders tiers that cost the same number of points.
func tieBreakLess(a, b RedemptionThreshold) bool {
	if c := a.MonetaryValue.Value.Cmp(b.MonetaryValue.Value); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortThresholds(ts []RedemptionThreshold) {
	sort.SliceStable(ts, func(i, j int) bool {
		if c := ts[i].PointsRequired.Value.Cmp(ts[j].PointsRequired.Value); c != 0 {
			return c < 0
		}
		return tieBreakLess(ts[i], ts[j])
	})
}
