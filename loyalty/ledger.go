/*
ledger.go - Client point balances

PURPOSE:
  The Ledger is the only writer of ClientAccount.Balance. It applies a signed
  delta and refuses any delta that would take the balance below zero. The
  shortfall is reported as an InsufficientBalanceError, never clamped.

ATOMICITY:
  applyDelta reads the account and writes it back with UpdateBalance, a
  compare-and-swap on the account version. Callers hold the client's lock and
  run inside a store transaction, so the read and the write see the same
  account. If another writer slips in anyway the swap fails with
  ErrConcurrentModification instead of losing an update.

USAGE:
  The purchase engine calls applyDelta inside its own transaction (one delta
  per purchase). ApplyDelta is the standalone entry point for administrative
  corrections.
*/
package loyalty

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
)

type Ledger struct {
	*deps
}

// ApplyDelta adds delta (which may be negative) to the client's balance and
// returns the updated account.
func (l *Ledger) ApplyDelta(ctx context.Context, clientID ClientID, delta decimal.Decimal) (ClientAccount, error) {
	unlock := l.locks.Lock(string(clientID))
	defer unlock()

	var updated ClientAccount
	err := l.store.WithTx(ctx, func(s Store) error {
		account, err := s.Client(ctx, clientID)
		if err != nil {
			return err
		}
		if account == nil {
			return notFound(KindClient, string(clientID))
		}
		updated, err = applyDelta(ctx, s, account, generic.Points(delta))
		return err
	})
	if err != nil {
		return ClientAccount{}, err
	}

	l.logger.Info("balance adjusted",
		slog.String("client_id", string(clientID)),
		slog.String("delta", delta.String()),
		slog.String("balance", updated.Balance.Value.String()),
	)
	l.observer.BalanceAdjusted(updated, generic.Points(delta))
	return updated, nil
}

// Balance returns the client's current balance.
func (l *Ledger) Balance(ctx context.Context, clientID ClientID) (generic.Amount, error) {
	account, err := l.store.Client(ctx, clientID)
	if err != nil {
		return generic.Amount{}, err
	}
	if account == nil {
		return generic.Amount{}, notFound(KindClient, string(clientID))
	}
	return account.Balance, nil
}

func applyDelta(ctx context.Context, s AccountStore, account *ClientAccount, delta generic.Amount) (ClientAccount, error) {
	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return ClientAccount{}, &InsufficientBalanceError{
			ClientID:  account.ID,
			Available: account.Balance,
			Delta:     delta,
		}
	}
	if err := s.UpdateBalance(ctx, account.ID, account.Version, next); err != nil {
		return ClientAccount{}, err
	}

	updated := *account
	updated.Balance = next
	updated.Version++
	return updated, nil
}
