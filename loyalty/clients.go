package loyalty

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
)

// ClientRegistry enrolls clients and looks them up. Balances are owned by the
// Ledger; a new client always starts at zero points.
type ClientRegistry struct {
	*deps
}

type ClientRequest struct {
	Phone     string
	LastName  string
	FirstName string
}

func (r ClientRequest) validate() error {
	if !validPhone(r.Phone) {
		return invalid("phone", "must be 8 to 15 digits, optionally prefixed with +")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return invalid("last name", "required")
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return invalid("first name", "required")
	}
	return nil
}

func validPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Register enrolls a new client. The phone number must be unique.
func (r *ClientRegistry) Register(ctx context.Context, req ClientRequest) (ClientAccount, error) {
	client, err := r.newClient(req)
	if err != nil {
		return ClientAccount{}, err
	}
	if err := r.store.InsertClient(ctx, client); err != nil {
		return ClientAccount{}, err
	}
	return client, nil
}

// RegisterWithCard enrolls a client and issues its card in one store
// transaction. If the card cannot be issued the client is not kept either.
func (r *ClientRegistry) RegisterWithCard(ctx context.Context, req ClientRequest, cardNumber string) (ClientAccount, LoyaltyCard, error) {
	client, err := r.newClient(req)
	if err != nil {
		return ClientAccount{}, LoyaltyCard{}, err
	}
	card, err := newCard(r.deps, client.ID, cardNumber)
	if err != nil {
		return ClientAccount{}, LoyaltyCard{}, err
	}

	err = r.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertClient(ctx, client); err != nil {
			return err
		}
		return s.InsertCard(ctx, card)
	})
	if err != nil {
		return ClientAccount{}, LoyaltyCard{}, err
	}

	r.logger.Info("client enrolled with card",
		slog.String("client_id", string(client.ID)),
		slog.String("card_id", string(card.ID)),
	)
	return client, card, nil
}

func (r *ClientRegistry) newClient(req ClientRequest) (ClientAccount, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	if err := req.validate(); err != nil {
		return ClientAccount{}, err
	}
	return ClientAccount{
		ID:           ClientID(r.newID()),
		Phone:        req.Phone,
		LastName:     strings.TrimSpace(req.LastName),
		FirstName:    strings.TrimSpace(req.FirstName),
		RegisteredAt: r.now(),
		Balance:      generic.Points(decimal.Zero),
	}, nil
}

func (r *ClientRegistry) Client(ctx context.Context, id ClientID) (ClientAccount, error) {
	c, err := r.store.Client(ctx, id)
	if err != nil {
		return ClientAccount{}, err
	}
	if c == nil {
		return ClientAccount{}, notFound(KindClient, string(id))
	}
	return *c, nil
}

func (r *ClientRegistry) ByPhone(ctx context.Context, phone string) (ClientAccount, error) {
	c, err := r.store.ClientByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return ClientAccount{}, err
	}
	if c == nil {
		return ClientAccount{}, notFound(KindClient, phone)
	}
	return *c, nil
}

// List returns every client ordered by last name, first name.
func (r *ClientRegistry) List(ctx context.Context) ([]ClientAccount, error) {
	return r.store.Clients(ctx)
}
