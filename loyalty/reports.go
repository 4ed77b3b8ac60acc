/*
reports.go - Read-only purchase reports

PURPOSE:
  Range filters over recorded FuelTransactions. Every report covers whole
  days: from the start of the first day to the end of the last day, both
  inclusive. Results are ordered by Timestamp, then ID.

PERIODS:
  Daily(date)            the calendar day of date
  Range(first, last)     first day .. last day
  Weekly(date)           Monday .. Sunday of date's week
  Monthly(year, month)   the calendar month, UTC
  Annual(year)           the calendar year, UTC

  Reports never write and take no client locks. A report computed while
  purchases are being recorded may or may not include them.
*/
package loyalty

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
)

type Reports struct {
	*deps
}

// Report is the set of purchases in a period plus their totals.
type Report struct {
	Period       generic.Period
	Transactions []FuelTransaction
	Summary      Summary
}

// Summary totals a set of purchases.
type Summary struct {
	Count          int
	Liters         generic.Amount
	GrossAmount    generic.Amount
	Discount       generic.Amount
	NetAmount      generic.Amount
	PointsEarned   generic.Amount
	PointsRedeemed generic.Amount
	Redemptions    int
}

// Summarize totals txs.
func Summarize(txs []FuelTransaction) Summary {
	s := Summary{
		Count:          len(txs),
		Liters:         generic.Liters(decimal.Zero),
		GrossAmount:    generic.Money(decimal.Zero),
		Discount:       generic.Money(decimal.Zero),
		NetAmount:      generic.Money(decimal.Zero),
		PointsEarned:   generic.Points(decimal.Zero),
		PointsRedeemed: generic.Points(decimal.Zero),
	}
	for _, tx := range txs {
		s.Liters = s.Liters.Add(tx.Liters)
		s.GrossAmount = s.GrossAmount.Add(tx.GrossAmount)
		s.Discount = s.Discount.Add(tx.Discount)
		s.NetAmount = s.NetAmount.Add(tx.NetAmount)
		s.PointsEarned = s.PointsEarned.Add(tx.PointsEarned)
		s.PointsRedeemed = s.PointsRedeemed.Add(tx.PointsRedeemed)
		if tx.ThresholdID != "" {
			s.Redemptions++
		}
	}
	return s
}

func (r *Reports) Daily(ctx context.Context, date time.Time) (Report, error) {
	return r.period(ctx, generic.Day(date))
}

// Range covers first through last, whole days. Fails if last is before first.
func (r *Reports) Range(ctx context.Context, first, last time.Time) (Report, error) {
	p, err := generic.Days(first, last)
	if err != nil {
		return Report{}, invalid("period", err.Error())
	}
	return r.period(ctx, p)
}

func (r *Reports) Weekly(ctx context.Context, date time.Time) (Report, error) {
	return r.period(ctx, generic.Week(date))
}

func (r *Reports) Monthly(ctx context.Context, year int, month time.Month) (Report, error) {
	if month < time.January || month > time.December {
		return Report{}, invalid("month", "must be between 1 and 12")
	}
	return r.period(ctx, generic.Month(year, month))
}

func (r *Reports) Annual(ctx context.Context, year int) (Report, error) {
	if year < 1 {
		return Report{}, invalid("year", "must be positive")
	}
	return r.period(ctx, generic.Year(year))
}

func (r *Reports) period(ctx context.Context, p generic.Period) (Report, error) {
	txs, err := r.store.TransactionsBetween(ctx, p.Start.UTC(), p.End.UTC())
	if err != nil {
		return Report{}, err
	}
	sortTransactions(txs)
	return Report{Period: p, Transactions: txs, Summary: Summarize(txs)}, nil
}

func sortTransactions(txs []FuelTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}
