/*
scenarios.go - Demo data loaders

PURPOSE:
  Populates an engine with a known data set for demos and manual testing.

AVAILABLE SCENARIOS:
  empty:  Only an "admin" operator
  demo:   Kinshasa network: 1.5 pts/l rule, three redemption tiers, two
          stations with one employee each, a web client login, and three
          clients with cards (Paul Martin's card is blocked). Opening
          balances are 50, 120 and 0 points; Jean Dupont already has one
          plain purchase and one redemption on record.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "demo"}

  The response lists the new operator IDs; the old ones are gone, so callers
  switch their X-Actor-Id to one of them.

NOTE:
  Loading a scenario clears the database. Only use in development/demo
  environments.
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioEmpty = "empty"
	ScenarioDemo  = "demo"
)

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioEmpty,
		Name:        "Empty",
		Description: "Admin operator only, no rule, catalog or clients",
	},
	{
		ID:          ScenarioDemo,
		Name:        "Kinshasa demo",
		Description: "Two stations, three tiers, three clients with cards and a few purchases",
	},
}

// SeedResult maps operator usernames to the IDs they were given.
type SeedResult struct {
	Scenario  string            `json:"scenario"`
	Operators map[string]string `json:"operators"`
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario clears the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageOperators) {
		return
	}
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if h.Store == nil {
		writeError(w, http.StatusNotImplemented, "Store cannot be reset", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	h.Engine.Identities.Purge()

	result, err := Seed(ctx, h.Engine, req.ScenarioID)
	if err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.Logger.Info("scenario loaded", slog.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, result)
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// Seed loads a scenario into an empty engine.
func Seed(ctx context.Context, engine *loyalty.Engine, scenarioID string) (*SeedResult, error) {
	s := &seeder{engine: engine, result: &SeedResult{Scenario: scenarioID, Operators: map[string]string{}}}
	switch scenarioID {
	case ScenarioEmpty:
		s.operator(ctx, "admin", loyalty.RoleAdmin, "")
	case ScenarioDemo:
		s.loadDemo(ctx)
	default:
		return nil, fmt.Errorf("unknown scenario %q", scenarioID)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// SeedIfEmpty loads the demo scenario unless operators already exist. It
// returns nil, nil when nothing was loaded.
func SeedIfEmpty(ctx context.Context, engine *loyalty.Engine) (*SeedResult, error) {
	ops, err := engine.Identities.Operators(ctx)
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		return nil, nil
	}
	return Seed(ctx, engine, ScenarioDemo)
}

// seeder stops at the first error; later calls become no-ops.
type seeder struct {
	engine *loyalty.Engine
	result *SeedResult
	err    error
}

func (s *seeder) loadDemo(ctx context.Context) {
	e := s.engine
	d := decimal.RequireFromString

	s.run(func() error {
		_, err := e.Rules.SetActiveRule(ctx, loyalty.RuleRequest{PointsPerLiter: d("1.5"), MakeActive: true})
		return err
	})
	s.threshold(ctx, "100", "5", "5 off for 100 points")
	s.threshold(ctx, "200", "12", "12 off for 200 points")
	s.threshold(ctx, "500", "30", "30 off for 500 points")

	total := s.station(ctx, "TotalEnergies Kinshasa", "Av. des Huileries", "Kinshasa")
	engen := s.station(ctx, "Engen Matadi", "Route de Matadi", "Kinshasa")

	s.operator(ctx, "admin", loyalty.RoleAdmin, "")
	agent1 := s.operator(ctx, "agent1", loyalty.RoleStationEmployee, total)
	s.operator(ctx, "agent2", loyalty.RoleStationEmployee, engen)
	s.operator(ctx, "clientweb1", loyalty.RoleClientWeb, "")

	jean := s.client(ctx, "0811234567", "Dupont", "Jean", "123456", "50")
	s.client(ctx, "0829876543", "Durand", "Marie", "789012", "120")
	s.client(ctx, "0891122334", "Martin", "Paul", "345678", "0")
	s.run(func() error {
		_, err := e.Cards.SetActive(ctx, "345678", false)
		return err
	})

	// 40 l earns 60 points (balance 110), then a redemption of the 100 tier.
	s.purchase(ctx, jean, total, agent1, "40", "65", false)
	s.purchase(ctx, jean, total, agent1, "20", "32.5", true)
}

func (s *seeder) run(fn func() error) {
	if s.err != nil {
		return
	}
	s.err = fn()
}

func (s *seeder) threshold(ctx context.Context, points, value, desc string) {
	s.run(func() error {
		_, err := s.engine.Catalog.Add(ctx, decimal.RequireFromString(points), decimal.RequireFromString(value), desc)
		return err
	})
}

func (s *seeder) station(ctx context.Context, name, address, city string) loyalty.StationID {
	var id loyalty.StationID
	s.run(func() error {
		st, err := s.engine.Identities.RegisterStation(ctx, loyalty.StationRequest{Name: name, Address: address, City: city})
		id = st.ID
		return err
	})
	return id
}

func (s *seeder) operator(ctx context.Context, username string, role loyalty.Role, station loyalty.StationID) loyalty.OperatorID {
	var id loyalty.OperatorID
	s.run(func() error {
		op, err := s.engine.Identities.RegisterOperator(ctx, loyalty.OperatorRequest{
			Username:  username,
			Role:      role,
			StationID: station,
		})
		id = op.ID
		s.result.Operators[username] = string(op.ID)
		return err
	})
	return id
}

func (s *seeder) client(ctx context.Context, phone, last, first, card, opening string) loyalty.ClientID {
	var id loyalty.ClientID
	s.run(func() error {
		c, err := s.engine.Clients.Register(ctx, loyalty.ClientRequest{Phone: phone, LastName: last, FirstName: first})
		if err != nil {
			return err
		}
		id = c.ID
		if _, err := s.engine.Cards.Issue(ctx, c.ID, card); err != nil {
			return err
		}
		if opening := decimal.RequireFromString(opening); opening.IsPositive() {
			_, err = s.engine.Ledger.ApplyDelta(ctx, c.ID, opening)
		}
		return err
	})
	return id
}

func (s *seeder) purchase(ctx context.Context, client loyalty.ClientID, station loyalty.StationID, operator loyalty.OperatorID, liters, gross string, redeem bool) {
	s.run(func() error {
		_, err := s.engine.RecordPurchase(ctx, loyalty.PurchaseRequest{
			ClientID:      client,
			StationID:     station,
			OperatorID:    operator,
			Liters:        decimal.RequireFromString(liters),
			GrossAmount:   decimal.RequireFromString(gross),
			UseRedemption: redeem,
		})
		return err
	})
}
