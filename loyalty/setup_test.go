package loyalty_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/loyalty/store"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Thursday 14 March 2024, 09:00 UTC.
var testDay = time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

// testClock starts at a fixed instant and moves forward one second per read,
// so consecutive writes get distinct, predictable timestamps.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var storeBackends = []struct {
	name string
	open func(t *testing.T) loyalty.TxStore
}{
	{"memory", func(t *testing.T) loyalty.TxStore {
		return store.NewMemory()
	}},
	{"sqlite", func(t *testing.T) loyalty.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// fixture is an engine with one station and one employee working there.
type fixture struct {
	store    loyalty.TxStore
	engine   *loyalty.Engine
	clock    *testClock
	station  loyalty.StationID
	operator loyalty.OperatorID
}

// forEachStore runs fn once per store backend.
func forEachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Helper()
	for _, backend := range storeBackends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			fn(t, newFixture(t, backend.open(t)))
		})
	}
}

func newFixture(t *testing.T, s loyalty.TxStore, opts ...loyalty.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &testClock{now: testDay}

	opts = append([]loyalty.Option{
		loyalty.WithClock(clock.Now),
		loyalty.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	engine, err := loyalty.NewEngine(s, opts...)
	require.NoError(t, err)

	station, err := engine.Identities.RegisterStation(ctx, loyalty.StationRequest{
		Name: "TotalEnergies Kinshasa", Address: "Av. des Huileries", City: "Kinshasa",
	})
	require.NoError(t, err)
	operator, err := engine.Identities.RegisterOperator(ctx, loyalty.OperatorRequest{
		Username: "agent1", Role: loyalty.RoleStationEmployee, StationID: station.ID,
	})
	require.NoError(t, err)

	return &fixture{
		store:    s,
		engine:   engine,
		clock:    clock,
		station:  station.ID,
		operator: operator.ID,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func (f *fixture) activateRule(t *testing.T, pointsPerLiter string) loyalty.PointsRule {
	t.Helper()
	rule, err := f.engine.Rules.SetActiveRule(context.Background(), loyalty.RuleRequest{
		PointsPerLiter: dec(pointsPerLiter),
		MakeActive:     true,
	})
	require.NoError(t, err)
	return rule
}

// addTiers loads the standard catalog: 100 -> 5, 200 -> 12, 500 -> 30.
func (f *fixture) addTiers(t *testing.T) map[string]loyalty.RedemptionThreshold {
	t.Helper()
	tiers := map[string]loyalty.RedemptionThreshold{}
	for _, tier := range [][2]string{{"100", "5"}, {"200", "12"}, {"500", "30"}} {
		th, err := f.engine.Catalog.Add(context.Background(), dec(tier[0]), dec(tier[1]), tier[1]+" off")
		require.NoError(t, err)
		tiers[tier[0]] = th
	}
	return tiers
}

// newClient registers a client holding opening points.
func (f *fixture) newClient(t *testing.T, phone, opening string) loyalty.ClientID {
	t.Helper()
	ctx := context.Background()
	c, err := f.engine.Clients.Register(ctx, loyalty.ClientRequest{Phone: phone, LastName: "Dupont", FirstName: "Jean"})
	require.NoError(t, err)
	if dec(opening).IsPositive() {
		_, err = f.engine.Ledger.ApplyDelta(ctx, c.ID, dec(opening))
		require.NoError(t, err)
	}
	return c.ID
}

func (f *fixture) purchase(client loyalty.ClientID, liters, gross string, redeem bool) (loyalty.FuelTransaction, error) {
	return f.engine.RecordPurchase(context.Background(), loyalty.PurchaseRequest{
		ClientID:      client,
		StationID:     f.station,
		OperatorID:    f.operator,
		Liters:        dec(liters),
		GrossAmount:   dec(gross),
		UseRedemption: redeem,
	})
}

func (f *fixture) balance(t *testing.T, client loyalty.ClientID) decimal.Decimal {
	t.Helper()
	b, err := f.engine.Ledger.Balance(context.Background(), client)
	require.NoError(t, err)
	return b.Value
}

func (f *fixture) history(t *testing.T, client loyalty.ClientID) []loyalty.FuelTransaction {
	t.Helper()
	txs, err := f.engine.ClientTransactions(context.Background(), client)
	require.NoError(t, err)
	return txs
}
