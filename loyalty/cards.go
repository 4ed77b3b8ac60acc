package loyalty

import (
	"context"
	"log/slog"
)

// CardNumberLength is the number of digits on a loyalty card.
const CardNumberLength = 6

func newCard(d *deps, clientID ClientID, number string) (LoyaltyCard, error) {
	if !validCardNumber(number) {
		return LoyaltyCard{}, invalid("card number", "must be exactly 6 digits")
	}
	return LoyaltyCard{
		ID:       CardID(d.newID()),
		Number:   number,
		ClientID: clientID,
		Active:   true,
		IssuedAt: d.now(),
	}, nil
}

// CardRegistry issues loyalty cards. A card only identifies its client at the
// pump; points live on the ClientAccount.
type CardRegistry struct {
	*deps
}

func validCardNumber(number string) bool {
	if len(number) != CardNumberLength {
		return false
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	return true
}

// Issue gives the client a new active card. A client holds at most one card
// and numbers are unique.
func (r *CardRegistry) Issue(ctx context.Context, clientID ClientID, number string) (LoyaltyCard, error) {
	card, err := newCard(r.deps, clientID, number)
	if err != nil {
		return LoyaltyCard{}, err
	}
	err = r.store.WithTx(ctx, func(s Store) error {
		client, err := s.Client(ctx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return notFound(KindClient, string(clientID))
		}
		return s.InsertCard(ctx, card)
	})
	if err != nil {
		return LoyaltyCard{}, err
	}

	r.logger.Info("loyalty card issued",
		slog.String("client_id", string(clientID)),
		slog.String("card_id", string(card.ID)),
	)
	return card, nil
}

func (r *CardRegistry) ByNumber(ctx context.Context, number string) (LoyaltyCard, error) {
	card, err := r.store.CardByNumber(ctx, number)
	if err != nil {
		return LoyaltyCard{}, err
	}
	if card == nil {
		return LoyaltyCard{}, notFound(KindCard, number)
	}
	return *card, nil
}

func (r *CardRegistry) ForClient(ctx context.Context, clientID ClientID) (LoyaltyCard, error) {
	card, err := r.store.CardByClient(ctx, clientID)
	if err != nil {
		return LoyaltyCard{}, err
	}
	if card == nil {
		return LoyaltyCard{}, notFound(KindCard, string(clientID))
	}
	return *card, nil
}

// SetActive enables or blocks the card with the given number.
func (r *CardRegistry) SetActive(ctx context.Context, number string, active bool) (LoyaltyCard, error) {
	card, err := r.ByNumber(ctx, number)
	if err != nil {
		return LoyaltyCard{}, err
	}
	if card.Active == active {
		return card, nil
	}
	if err := r.store.SetCardActive(ctx, card.ID, active); err != nil {
		return LoyaltyCard{}, err
	}
	card.Active = active
	r.logger.Info("loyalty card status changed",
		slog.String("card_id", string(card.ID)),
		slog.Bool("active", active),
	)
	return card, nil
}

// Resolve maps a card number presented at the pump to its client. Inactive
// cards are refused with ErrCardInactive.
func (r *CardRegistry) Resolve(ctx context.Context, number string) (ClientAccount, error) {
	card, err := r.ByNumber(ctx, number)
	if err != nil {
		return ClientAccount{}, err
	}
	if !card.Active {
		return ClientAccount{}, ErrCardInactive
	}
	client, err := r.store.Client(ctx, card.ClientID)
	if err != nil {
		return ClientAccount{}, err
	}
	if client == nil {
		return ClientAccount{}, notFound(KindClient, string(card.ClientID))
	}
	return *client, nil
}
