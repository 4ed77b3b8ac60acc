package loyalty_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/loyalty"
)

func TestLedger_ApplyDelta_CreditAndDebit(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		client := f.newClient(t, "0811234567", "0")

		account, err := f.engine.Ledger.ApplyDelta(ctx, client, dec("75.5"))
		require.NoError(t, err)
		assertDecimal(t, "75.5", account.Balance.Value)

		account, err = f.engine.Ledger.ApplyDelta(ctx, client, dec("-75.5"))
		require.NoError(t, err)
		assertDecimal(t, "0", account.Balance.Value, "draining to exactly zero is allowed")
		assertDecimal(t, "0", f.balance(t, client))
	})
}

func TestLedger_ApplyDelta_BelowZero_Rejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// GIVEN: 30 points
		client := f.newClient(t, "0811234567", "30")

		// WHEN: 31 points are withdrawn
		_, err := f.engine.Ledger.ApplyDelta(ctx, client, dec("-31"))

		// THEN: refused, not clamped
		var insufficient *loyalty.InsufficientBalanceError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, client, insufficient.ClientID)
		assertDecimal(t, "30", insufficient.Available.Value)
		assertDecimal(t, "-31", insufficient.Delta.Value)
		assert.True(t, loyalty.IsConflict(err))
		assertDecimal(t, "30", f.balance(t, client))
	})
}

func TestLedger_UnknownClient_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.engine.Ledger.ApplyDelta(ctx, "missing", dec("10"))
		assert.True(t, loyalty.IsNotFound(err))

		_, err = f.engine.Ledger.Balance(ctx, "missing")
		assert.True(t, loyalty.IsNotFound(err))
	})
}

func TestLedger_ConcurrentDeltas_AllApplied(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		client := f.newClient(t, "0811234567", "100")

		// WHEN: 25 credits of 2 and 25 debits of 1 interleave
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := f.engine.Ledger.ApplyDelta(ctx, client, dec("2"))
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, err := f.engine.Ledger.ApplyDelta(ctx, client, dec("-1"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// THEN: 100 + 50 - 25
		assertDecimal(t, "125", f.balance(t, client))
	})
}
