package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/generic"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var t0 = time.Date(2024, time.March, 14, 9, 30, 15, 123456789, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedRefs inserts the rows a fuel transaction references.
func seedRefs(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertRule(ctx, loyalty.PointsRule{
		ID: "r-1", PointsPerLiter: d("1.5"), ValidFrom: t0, IsActive: true, Version: 1, CreatedAt: t0,
	}))
	require.NoError(t, s.InsertThreshold(ctx, loyalty.RedemptionThreshold{
		ID: "th-100", PointsRequired: generic.Points(d("100")), MonetaryValue: generic.Money(d("5")),
		Description: "5 off", CreatedAt: t0,
	}))
	require.NoError(t, s.InsertClient(ctx, loyalty.ClientAccount{
		ID: "c-1", Phone: "0811234567", LastName: "Dupont", FirstName: "Jean",
		RegisteredAt: t0, Balance: generic.Points(decimal.Zero),
	}))
	require.NoError(t, s.InsertStation(ctx, loyalty.Station{ID: "st-1", Name: "TotalEnergies Kinshasa", CreatedAt: t0}))
	require.NoError(t, s.InsertOperator(ctx, loyalty.Operator{
		ID: "op-1", Username: "agent1", Role: loyalty.RoleStationEmployee, StationID: "st-1", CreatedAt: t0,
	}))
}

func purchase(id string, at time.Time) loyalty.FuelTransaction {
	return loyalty.FuelTransaction{
		ID:             loyalty.TransactionID(id),
		ClientID:       "c-1",
		StationID:      "st-1",
		OperatorID:     "op-1",
		RuleID:         "r-1",
		ThresholdID:    "th-100",
		Timestamp:      at,
		Liters:         generic.Liters(d("20")),
		GrossAmount:    generic.Money(d("32.50")),
		Discount:       generic.Money(d("5")),
		NetAmount:      generic.Money(d("27.50")),
		PointsEarned:   generic.Points(d("30")),
		PointsRedeemed: generic.Points(d("100")),
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_Transaction_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()

	// WHEN
	require.NoError(t, s.AppendTransaction(ctx, purchase("tx-1", t0)))
	got, err := s.Transaction(ctx, "tx-1")

	// THEN: decimals and nanoseconds survive
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Timestamp.Equal(t0))
	assert.Equal(t, loyalty.ThresholdID("th-100"), got.ThresholdID)
	assert.True(t, got.GrossAmount.Value.Equal(d("32.5")))
	assert.Equal(t, generic.UnitCurrency, got.NetAmount.Unit)
	assert.True(t, got.PointsRedeemed.Value.Equal(d("100")))

	missing, err := s.Transaction(ctx, "tx-9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Transaction_WithoutRedemption_StoresEmptyThreshold(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()

	tx := purchase("tx-1", t0)
	tx.ThresholdID = ""
	require.NoError(t, s.AppendTransaction(ctx, tx))

	got, err := s.Transaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, got.ThresholdID)
}

func TestStore_Transaction_UnknownClient_ForeignKeyRejects(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)

	tx := purchase("tx-1", t0)
	tx.ClientID = "c-9"

	assert.Error(t, s.AppendTransaction(context.Background(), tx))
}

func TestStore_TransactionsBetween_Inclusive(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()

	start := generic.StartOfDay(t0)
	end := generic.EndOfDay(t0)
	for id, at := range map[string]time.Time{
		"before": start.Add(-time.Nanosecond),
		"first":  start,
		"last":   end,
		"after":  end.Add(time.Nanosecond),
	} {
		require.NoError(t, s.AppendTransaction(ctx, purchase(id, at)))
	}

	txs, err := s.TransactionsBetween(ctx, start, end)

	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, loyalty.TransactionID("first"), txs[0].ID)
	assert.Equal(t, loyalty.TransactionID("last"), txs[1].ID)

	byClient, err := s.TransactionsByClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, byClient, 4)
}

func TestStore_Rules_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	end := t0.Add(48 * time.Hour)

	require.NoError(t, s.InsertRule(ctx, loyalty.PointsRule{
		ID: "r-1", PointsPerLiter: d("1.25"), ValidFrom: t0, ValidTo: &end, Version: 1, CreatedAt: t0,
	}))

	got, err := s.Rule(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, got.ValidTo)
	assert.True(t, got.ValidTo.Equal(end))
	assert.True(t, got.PointsPerLiter.Equal(d("1.25")))
	assert.False(t, got.IsActive)

	active, err := s.ActiveRule(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestStore_SingleActiveRule_EnforcedByIndex(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()

	second := loyalty.PointsRule{ID: "r-2", PointsPerLiter: d("2"), ValidFrom: t0, IsActive: true, Version: 2, CreatedAt: t0}
	assert.ErrorIs(t, s.InsertRule(ctx, second), loyalty.ErrDuplicate)

	require.NoError(t, s.CloseRule(ctx, "r-1", t0.Add(time.Hour)))
	require.NoError(t, s.InsertRule(ctx, second))

	active, err := s.ActiveRule(ctx)
	require.NoError(t, err)
	assert.Equal(t, loyalty.RuleID("r-2"), active.ID)

	assert.ErrorIs(t, s.CloseRule(ctx, "r-9", t0), loyalty.ErrNotFound)
}

func TestStore_UpdateBalance_CompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()

	require.NoError(t, s.UpdateBalance(ctx, "c-1", 0, generic.Points(d("60"))))

	// GIVEN: a stale version
	err := s.UpdateBalance(ctx, "c-1", 0, generic.Points(d("999")))

	// THEN
	assert.ErrorIs(t, err, loyalty.ErrConcurrentModification)
	c, err := s.Client(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Version)
	assert.True(t, c.Balance.Value.Equal(d("60")))

	assert.ErrorIs(t, s.UpdateBalance(ctx, "c-9", 0, generic.Points(d("1"))), loyalty.ErrNotFound)
}

func TestStore_UniqueColumns_ReportDuplicates(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()

	err := s.InsertClient(ctx, loyalty.ClientAccount{
		ID: "c-2", Phone: "0811234567", LastName: "X", FirstName: "Y", RegisteredAt: t0,
		Balance: generic.Points(decimal.Zero),
	})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)

	err = s.InsertStation(ctx, loyalty.Station{ID: "st-2", Name: "TotalEnergies Kinshasa", CreatedAt: t0})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)

	err = s.InsertOperator(ctx, loyalty.Operator{ID: "op-2", Username: "agent1", Role: loyalty.RoleAdmin, CreatedAt: t0})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)

	require.NoError(t, s.InsertCard(ctx, loyalty.LoyaltyCard{ID: "k-1", Number: "123456", ClientID: "c-1", Active: true, IssuedAt: t0}))
	err = s.InsertCard(ctx, loyalty.LoyaltyCard{ID: "k-2", Number: "123456", ClientID: "c-1", Active: true, IssuedAt: t0})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)
}

// =============================================================================
// TRANSACTIONS AND LIFECYCLE
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx loyalty.Store) error {
		if err := tx.UpdateBalance(ctx, "c-1", 0, generic.Points(d("60"))); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, purchase("tx-1", t0)); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	c, err := s.Client(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, c.Balance.IsZero())
	got, err := s.Transaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Reset_ClearsEverything(t *testing.T) {
	s := newTestStore(t)
	seedRefs(t, s)
	ctx := context.Background()
	require.NoError(t, s.AppendTransaction(ctx, purchase("tx-1", t0)))

	require.NoError(t, s.Reset(ctx))

	ops, err := s.Operators(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestStore_File_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.db")
	ctx := context.Background()

	s, err := sqlite.New(path)
	require.NoError(t, err)
	seedRefs(t, s)
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	require.NoError(t, reopened.Ping(ctx))

	c, err := reopened.ClientByPhone(ctx, "0811234567")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, loyalty.ClientID("c-1"), c.ID)
}

func TestNew_CreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "loyalty.db")

	s, err := sqlite.New(path)

	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_Operators_ActiveFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRefs(t, s)
	require.NoError(t, s.InsertOperator(ctx, loyalty.Operator{
		ID: "op-2", Username: "admin", Role: loyalty.RoleAdmin, Active: true, CreatedAt: t0,
	}))

	op, err := s.Operator(ctx, "op-2")
	require.NoError(t, err)
	assert.True(t, op.Active)

	require.NoError(t, s.SetOperatorActive(ctx, "op-2", false))
	op, err = s.Operator(ctx, "op-2")
	require.NoError(t, err)
	assert.False(t, op.Active)

	assert.True(t, loyalty.IsNotFound(s.SetOperatorActive(ctx, "op-9", true)))
}
