package loyalty_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// CLIENTS
// =============================================================================

func TestClients_Register_StartsAtZero(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		c, err := f.engine.Clients.Register(ctx, loyalty.ClientRequest{
			Phone: " +243811234567 ", LastName: "Durand", FirstName: "Marie",
		})

		require.NoError(t, err)
		assert.Equal(t, "+243811234567", c.Phone)
		assert.True(t, c.Balance.IsZero())

		byPhone, err := f.engine.Clients.ByPhone(ctx, "+243811234567")
		require.NoError(t, err)
		assert.Equal(t, c.ID, byPhone.ID)
		assert.Equal(t, "Durand", byPhone.LastName)
	})
}

func TestClients_DuplicatePhone_Rejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		f.newClient(t, "0811234567", "0")

		_, err := f.engine.Clients.Register(ctx, loyalty.ClientRequest{
			Phone: "0811234567", LastName: "Martin", FirstName: "Paul",
		})

		assert.ErrorIs(t, err, loyalty.ErrDuplicate)
		clients, err := f.engine.Clients.List(ctx)
		require.NoError(t, err)
		assert.Len(t, clients, 1)
	})
}

func TestClients_Register_Validation(t *testing.T) {
	f := newFixture(t, storeBackends[0].open(t))
	ctx := context.Background()

	tests := []struct {
		name string
		req  loyalty.ClientRequest
	}{
		{"short phone", loyalty.ClientRequest{Phone: "1234567", LastName: "A", FirstName: "B"}},
		{"letters in phone", loyalty.ClientRequest{Phone: "08112345ab", LastName: "A", FirstName: "B"}},
		{"too long phone", loyalty.ClientRequest{Phone: "1234567890123456", LastName: "A", FirstName: "B"}},
		{"missing last name", loyalty.ClientRequest{Phone: "0811234567", FirstName: "B"}},
		{"missing first name", loyalty.ClientRequest{Phone: "0811234567", LastName: "A", FirstName: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Clients.Register(ctx, tt.req)
			assert.ErrorIs(t, err, loyalty.ErrInvalidArgument)
		})
	}
}

func TestClients_List_OrderedByName(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		for _, c := range []loyalty.ClientRequest{
			{Phone: "0891122334", LastName: "Martin", FirstName: "Paul"},
			{Phone: "0811234567", LastName: "Dupont", FirstName: "Jean"},
			{Phone: "0829876543", LastName: "Durand", FirstName: "Marie"},
		} {
			_, err := f.engine.Clients.Register(ctx, c)
			require.NoError(t, err)
		}

		clients, err := f.engine.Clients.List(ctx)

		require.NoError(t, err)
		require.Len(t, clients, 3)
		assert.Equal(t, "Dupont", clients[0].LastName)
		assert.Equal(t, "Durand", clients[1].LastName)
		assert.Equal(t, "Martin", clients[2].LastName)
	})
}

// =============================================================================
// CARDS
// =============================================================================

func TestCards_IssueAndResolve(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		client := f.newClient(t, "0811234567", "50")

		card, err := f.engine.Cards.Issue(ctx, client, "123456")
		require.NoError(t, err)
		assert.True(t, card.Active)

		resolved, err := f.engine.Cards.Resolve(ctx, "123456")
		require.NoError(t, err)
		assert.Equal(t, client, resolved.ID)
		assertDecimal(t, "50", resolved.Balance.Value, "the card carries no balance of its own")

		forClient, err := f.engine.Cards.ForClient(ctx, client)
		require.NoError(t, err)
		assert.Equal(t, card.ID, forClient.ID)
	})
}

func TestCards_Issue_Validation(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		client := f.newClient(t, "0811234567", "0")

		for _, number := range []string{"12345", "1234567", "12a456", ""} {
			_, err := f.engine.Cards.Issue(ctx, client, number)
			assert.ErrorIs(t, err, loyalty.ErrInvalidArgument, number)
		}

		_, err := f.engine.Cards.Issue(ctx, "missing", "123456")
		assert.True(t, loyalty.IsNotFound(err))
	})
}

func TestCards_Duplicates_Rejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		jean := f.newClient(t, "0811234567", "0")
		marie := f.newClient(t, "0829876543", "0")

		_, err := f.engine.Cards.Issue(ctx, jean, "123456")
		require.NoError(t, err)

		// WHEN: the number is reused
		_, err = f.engine.Cards.Issue(ctx, marie, "123456")
		assert.ErrorIs(t, err, loyalty.ErrDuplicate)

		// WHEN: the client asks for a second card
		_, err = f.engine.Cards.Issue(ctx, jean, "654321")
		assert.ErrorIs(t, err, loyalty.ErrDuplicate)
	})
}

func TestCards_Blocked_CannotResolve(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		client := f.newClient(t, "0891122334", "0")
		_, err := f.engine.Cards.Issue(ctx, client, "345678")
		require.NoError(t, err)

		// WHEN: the card is blocked
		blocked, err := f.engine.Cards.SetActive(ctx, "345678", false)
		require.NoError(t, err)
		assert.False(t, blocked.Active)

		// THEN
		_, err = f.engine.Cards.Resolve(ctx, "345678")
		assert.ErrorIs(t, err, loyalty.ErrCardInactive)

		// AND: unblocking restores it
		_, err = f.engine.Cards.SetActive(ctx, "345678", true)
		require.NoError(t, err)
		_, err = f.engine.Cards.Resolve(ctx, "345678")
		assert.NoError(t, err)
	})
}

func TestCards_UnknownNumber_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		_, err := f.engine.Cards.Resolve(context.Background(), "999999")

		var nf *loyalty.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, loyalty.KindCard, nf.Kind)
	})
}

func TestClients_RegisterWithCard(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		req := loyalty.ClientRequest{Phone: "0897654321", LastName: "Kabila", FirstName: "Aline"}

		client, card, err := f.engine.Clients.RegisterWithCard(ctx, req, "555555")

		require.NoError(t, err)
		assert.Equal(t, client.ID, card.ClientID)
		assert.True(t, card.Active)
		resolved, err := f.engine.Cards.Resolve(ctx, "555555")
		require.NoError(t, err)
		assert.Equal(t, client.ID, resolved.ID)
	})
}

func TestClients_RegisterWithCard_CardTaken_ClientNotKept(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		_, _, err := f.engine.Clients.RegisterWithCard(ctx,
			loyalty.ClientRequest{Phone: "0897654321", LastName: "Kabila", FirstName: "Aline"}, "555555")
		require.NoError(t, err)

		// WHEN: a second client asks for the same card number
		req := loyalty.ClientRequest{Phone: "0891111111", LastName: "Mbala", FirstName: "Eric"}
		_, _, err = f.engine.Clients.RegisterWithCard(ctx, req, "555555")

		// THEN: nothing of the second enrollment exists
		assert.ErrorIs(t, err, loyalty.ErrDuplicate)
		_, err = f.engine.Clients.ByPhone(ctx, "0891111111")
		assert.True(t, loyalty.IsNotFound(err))

		// AND: a retry with a free number goes through
		_, card, err := f.engine.Clients.RegisterWithCard(ctx, req, "666666")
		require.NoError(t, err)
		assert.Equal(t, "666666", card.Number)
	})
}

func TestClients_RegisterWithCard_BadNumber_NothingWritten(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		_, _, err := f.engine.Clients.RegisterWithCard(ctx,
			loyalty.ClientRequest{Phone: "0897654321", LastName: "Kabila", FirstName: "Aline"}, "12ab56")

		assert.ErrorIs(t, err, loyalty.ErrInvalidArgument)
		clients, err := f.engine.Clients.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, clients)
	})
}
