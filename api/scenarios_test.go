/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Rule, catalog, stations and operators exist
	- Opening balances and demo purchases add up
	- Paul's card is blocked

These tests double as an end-to-end check of the engine over SQLite.
*/
package api

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/sqlite"
)

func newScenarioEngine(t *testing.T) *loyalty.Engine {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := loyalty.NewEngine(store, loyalty.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return engine
}

func TestScenario_Demo(t *testing.T) {
	// GIVEN: an empty database
	engine := newScenarioEngine(t)
	ctx := context.Background()

	// WHEN: loading the demo
	result, err := Seed(ctx, engine, ScenarioDemo)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, ScenarioDemo, result.Scenario)
	assert.Len(t, result.Operators, 4)

	rule, err := engine.Rules.ActiveRule(ctx)
	require.NoError(t, err)
	assert.True(t, rule.PointsPerLiter.Equal(dec("1.5")))

	tiers, err := engine.Catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.True(t, tiers[0].PointsRequired.Value.Equal(dec("100")))

	balances := map[string]string{
		"0811234567": "40", // 50 + 60 - 100 + 30
		"0829876543": "120",
		"0891122334": "0",
	}
	for phone, want := range balances {
		c, err := engine.Clients.ByPhone(ctx, phone)
		require.NoError(t, err)
		assert.True(t, c.Balance.Value.Equal(dec(want)), "%s: got %s", phone, c.Balance)
	}

	jean, err := engine.Clients.ByPhone(ctx, "0811234567")
	require.NoError(t, err)
	history, err := engine.ClientTransactions(ctx, jean.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Empty(t, history[0].ThresholdID)
	assert.NotEmpty(t, history[1].ThresholdID)
	assert.True(t, history[1].NetAmount.Value.Equal(dec("27.5")))

	_, err = engine.Cards.Resolve(ctx, "345678")
	assert.ErrorIs(t, err, loyalty.ErrCardInactive)
}

func TestScenario_Empty_OnlyAdmin(t *testing.T) {
	engine := newScenarioEngine(t)
	ctx := context.Background()

	result, err := Seed(ctx, engine, ScenarioEmpty)

	require.NoError(t, err)
	assert.Len(t, result.Operators, 1)
	assert.Contains(t, result.Operators, "admin")
	_, err = engine.Rules.ActiveRule(ctx)
	assert.ErrorIs(t, err, loyalty.ErrNoActiveRule)
}

func TestSeedIfEmpty_RunsOnce(t *testing.T) {
	engine := newScenarioEngine(t)
	ctx := context.Background()

	first, err := SeedIfEmpty(ctx, engine)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := SeedIfEmpty(ctx, engine)
	require.NoError(t, err)
	assert.Nil(t, second)

	clients, err := engine.Clients.List(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 3)
}

func TestSeed_UnknownScenario(t *testing.T) {
	engine := newScenarioEngine(t)

	_, err := Seed(context.Background(), engine, "holiday-rush")

	assert.Error(t, err)
}
