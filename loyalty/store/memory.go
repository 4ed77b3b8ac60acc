// Package store provides in-process loyalty.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/loyalty-engine/generic"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a loyalty.TxStore held in maps. Every method takes the store
// lock; WithTx holds it for the whole callback.
type Memory struct {
	mu sync.RWMutex
	st *state
}

var (
	_ loyalty.TxStore = (*Memory)(nil)
	_ loyalty.Store   = (*state)(nil)
)

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// state holds the data and implements loyalty.Store without locking.
type state struct {
	rules        map[loyalty.RuleID]loyalty.PointsRule
	thresholds   map[loyalty.ThresholdID]loyalty.RedemptionThreshold
	clients      map[loyalty.ClientID]loyalty.ClientAccount
	cards        map[loyalty.CardID]loyalty.LoyaltyCard
	stations     map[loyalty.StationID]loyalty.Station
	operators    map[loyalty.OperatorID]loyalty.Operator
	transactions []loyalty.FuelTransaction // ordered by Timestamp, then ID
}

func newState() *state {
	return &state{
		rules:      make(map[loyalty.RuleID]loyalty.PointsRule),
		thresholds: make(map[loyalty.ThresholdID]loyalty.RedemptionThreshold),
		clients:    make(map[loyalty.ClientID]loyalty.ClientAccount),
		cards:      make(map[loyalty.CardID]loyalty.LoyaltyCard),
		stations:   make(map[loyalty.StationID]loyalty.Station),
		operators:  make(map[loyalty.OperatorID]loyalty.Operator),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.thresholds {
		c.thresholds[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.stations {
		c.stations[k] = v
	}
	for k, v := range s.operators {
		c.operators[k] = v
	}
	c.transactions = append([]loyalty.FuelTransaction(nil), s.transactions...)
	return c
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Reset deletes all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newState()
	return nil
}

// =============================================================================
// LOCKED ACCESSORS
// =============================================================================

func (m *Memory) read() (*state, func()) {
	m.mu.RLock()
	return m.st, m.mu.RUnlock
}

func (m *Memory) write() (*state, func()) {
	m.mu.Lock()
	return m.st, m.mu.Unlock
}

func (m *Memory) ActiveRule(ctx context.Context) (*loyalty.PointsRule, error) {
	s, done := m.read()
	defer done()
	return s.ActiveRule(ctx)
}

func (m *Memory) Rule(ctx context.Context, id loyalty.RuleID) (*loyalty.PointsRule, error) {
	s, done := m.read()
	defer done()
	return s.Rule(ctx, id)
}

func (m *Memory) Rules(ctx context.Context) ([]loyalty.PointsRule, error) {
	s, done := m.read()
	defer done()
	return s.Rules(ctx)
}

func (m *Memory) LatestRuleVersion(ctx context.Context) (int, error) {
	s, done := m.read()
	defer done()
	return s.LatestRuleVersion(ctx)
}

func (m *Memory) InsertRule(ctx context.Context, rule loyalty.PointsRule) error {
	s, done := m.write()
	defer done()
	return s.InsertRule(ctx, rule)
}

func (m *Memory) CloseRule(ctx context.Context, id loyalty.RuleID, at time.Time) error {
	s, done := m.write()
	defer done()
	return s.CloseRule(ctx, id, at)
}

func (m *Memory) InsertThreshold(ctx context.Context, t loyalty.RedemptionThreshold) error {
	s, done := m.write()
	defer done()
	return s.InsertThreshold(ctx, t)
}

func (m *Memory) Threshold(ctx context.Context, id loyalty.ThresholdID) (*loyalty.RedemptionThreshold, error) {
	s, done := m.read()
	defer done()
	return s.Threshold(ctx, id)
}

func (m *Memory) Thresholds(ctx context.Context) ([]loyalty.RedemptionThreshold, error) {
	s, done := m.read()
	defer done()
	return s.Thresholds(ctx)
}

func (m *Memory) InsertClient(ctx context.Context, c loyalty.ClientAccount) error {
	s, done := m.write()
	defer done()
	return s.InsertClient(ctx, c)
}

func (m *Memory) Client(ctx context.Context, id loyalty.ClientID) (*loyalty.ClientAccount, error) {
	s, done := m.read()
	defer done()
	return s.Client(ctx, id)
}

func (m *Memory) ClientByPhone(ctx context.Context, phone string) (*loyalty.ClientAccount, error) {
	s, done := m.read()
	defer done()
	return s.ClientByPhone(ctx, phone)
}

func (m *Memory) Clients(ctx context.Context) ([]loyalty.ClientAccount, error) {
	s, done := m.read()
	defer done()
	return s.Clients(ctx)
}

func (m *Memory) UpdateBalance(ctx context.Context, id loyalty.ClientID, expectedVersion int, balance generic.Amount) error {
	s, done := m.write()
	defer done()
	return s.UpdateBalance(ctx, id, expectedVersion, balance)
}

func (m *Memory) InsertCard(ctx context.Context, card loyalty.LoyaltyCard) error {
	s, done := m.write()
	defer done()
	return s.InsertCard(ctx, card)
}

func (m *Memory) CardByNumber(ctx context.Context, number string) (*loyalty.LoyaltyCard, error) {
	s, done := m.read()
	defer done()
	return s.CardByNumber(ctx, number)
}

func (m *Memory) CardByClient(ctx context.Context, clientID loyalty.ClientID) (*loyalty.LoyaltyCard, error) {
	s, done := m.read()
	defer done()
	return s.CardByClient(ctx, clientID)
}

func (m *Memory) SetCardActive(ctx context.Context, id loyalty.CardID, active bool) error {
	s, done := m.write()
	defer done()
	return s.SetCardActive(ctx, id, active)
}

func (m *Memory) InsertStation(ctx context.Context, st loyalty.Station) error {
	s, done := m.write()
	defer done()
	return s.InsertStation(ctx, st)
}

func (m *Memory) Station(ctx context.Context, id loyalty.StationID) (*loyalty.Station, error) {
	s, done := m.read()
	defer done()
	return s.Station(ctx, id)
}

func (m *Memory) Stations(ctx context.Context) ([]loyalty.Station, error) {
	s, done := m.read()
	defer done()
	return s.Stations(ctx)
}

func (m *Memory) InsertOperator(ctx context.Context, op loyalty.Operator) error {
	s, done := m.write()
	defer done()
	return s.InsertOperator(ctx, op)
}

func (m *Memory) Operator(ctx context.Context, id loyalty.OperatorID) (*loyalty.Operator, error) {
	s, done := m.read()
	defer done()
	return s.Operator(ctx, id)
}

func (m *Memory) Operators(ctx context.Context) ([]loyalty.Operator, error) {
	s, done := m.read()
	defer done()
	return s.Operators(ctx)
}

func (m *Memory) SetOperatorActive(ctx context.Context, id loyalty.OperatorID, active bool) error {
	s, done := m.write()
	defer done()
	return s.SetOperatorActive(ctx, id, active)
}

func (m *Memory) AppendTransaction(ctx context.Context, tx loyalty.FuelTransaction) error {
	s, done := m.write()
	defer done()
	return s.AppendTransaction(ctx, tx)
}

func (m *Memory) Transaction(ctx context.Context, id loyalty.TransactionID) (*loyalty.FuelTransaction, error) {
	s, done := m.read()
	defer done()
	return s.Transaction(ctx, id)
}

func (m *Memory) TransactionsByClient(ctx context.Context, clientID loyalty.ClientID) ([]loyalty.FuelTransaction, error) {
	s, done := m.read()
	defer done()
	return s.TransactionsByClient(ctx, clientID)
}

func (m *Memory) TransactionsBetween(ctx context.Context, from, to time.Time) ([]loyalty.FuelTransaction, error) {
	s, done := m.read()
	defer done()
	return s.TransactionsBetween(ctx, from, to)
}

// =============================================================================
// STATE - Unlocked implementation
// =============================================================================

func (s *state) ActiveRule(_ context.Context) (*loyalty.PointsRule, error) {
	for _, r := range s.rules {
		if r.IsActive {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (s *state) Rule(_ context.Context, id loyalty.RuleID) (*loyalty.PointsRule, error) {
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *state) Rules(_ context.Context) ([]loyalty.PointsRule, error) {
	out := make([]loyalty.PointsRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *state) LatestRuleVersion(_ context.Context) (int, error) {
	latest := 0
	for _, r := range s.rules {
		if r.Version > latest {
			latest = r.Version
		}
	}
	return latest, nil
}

func (s *state) InsertRule(_ context.Context, rule loyalty.PointsRule) error {
	if _, ok := s.rules[rule.ID]; ok {
		return &loyalty.DuplicateError{Kind: loyalty.KindRule, Field: "id", Value: string(rule.ID)}
	}
	if rule.IsActive {
		for _, r := range s.rules {
			if r.IsActive {
				return &loyalty.DuplicateError{Kind: loyalty.KindRule, Field: "active flag", Value: string(r.ID)}
			}
		}
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *state) CloseRule(_ context.Context, id loyalty.RuleID, at time.Time) error {
	r, ok := s.rules[id]
	if !ok {
		return &loyalty.NotFoundError{Kind: loyalty.KindRule, ID: string(id)}
	}
	at = at.UTC()
	r.IsActive = false
	r.ValidTo = &at
	s.rules[id] = r
	return nil
}

func (s *state) InsertThreshold(_ context.Context, t loyalty.RedemptionThreshold) error {
	if _, ok := s.thresholds[t.ID]; ok {
		return &loyalty.DuplicateError{Kind: loyalty.KindThreshold, Field: "id", Value: string(t.ID)}
	}
	s.thresholds[t.ID] = t
	return nil
}

func (s *state) Threshold(_ context.Context, id loyalty.ThresholdID) (*loyalty.RedemptionThreshold, error) {
	t, ok := s.thresholds[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *state) Thresholds(_ context.Context) ([]loyalty.RedemptionThreshold, error) {
	out := make([]loyalty.RedemptionThreshold, 0, len(s.thresholds))
	for _, t := range s.thresholds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].PointsRequired.Value.Cmp(out[j].PointsRequired.Value); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) InsertClient(_ context.Context, c loyalty.ClientAccount) error {
	if _, ok := s.clients[c.ID]; ok {
		return &loyalty.DuplicateError{Kind: loyalty.KindClient, Field: "id", Value: string(c.ID)}
	}
	for _, existing := range s.clients {
		if existing.Phone == c.Phone {
			return &loyalty.DuplicateError{Kind: loyalty.KindClient, Field: "phone", Value: c.Phone}
		}
	}
	s.clients[c.ID] = c
	return nil
}

func (s *state) Client(_ context.Context, id loyalty.ClientID) (*loyalty.ClientAccount, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *state) ClientByPhone(_ context.Context, phone string) (*loyalty.ClientAccount, error) {
	for _, c := range s.clients {
		if c.Phone == phone {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) Clients(_ context.Context) ([]loyalty.ClientAccount, error) {
	out := make([]loyalty.ClientAccount, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) UpdateBalance(_ context.Context, id loyalty.ClientID, expectedVersion int, balance generic.Amount) error {
	c, ok := s.clients[id]
	if !ok {
		return &loyalty.NotFoundError{Kind: loyalty.KindClient, ID: string(id)}
	}
	if c.Version != expectedVersion {
		return loyalty.ErrConcurrentModification
	}
	c.Balance = balance
	c.Version++
	s.clients[id] = c
	return nil
}

func (s *state) InsertCard(_ context.Context, card loyalty.LoyaltyCard) error {
	if _, ok := s.cards[card.ID]; ok {
		return &loyalty.DuplicateError{Kind: loyalty.KindCard, Field: "id", Value: string(card.ID)}
	}
	for _, existing := range s.cards {
		if existing.Number == card.Number {
			return &loyalty.DuplicateError{Kind: loyalty.KindCard, Field: "number", Value: card.Number}
		}
		if existing.ClientID == card.ClientID {
			return &loyalty.DuplicateError{Kind: loyalty.KindCard, Field: "client", Value: string(card.ClientID)}
		}
	}
	s.cards[card.ID] = card
	return nil
}

func (s *state) CardByNumber(_ context.Context, number string) (*loyalty.LoyaltyCard, error) {
	for _, c := range s.cards {
		if c.Number == number {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) CardByClient(_ context.Context, clientID loyalty.ClientID) (*loyalty.LoyaltyCard, error) {
	for _, c := range s.cards {
		if c.ClientID == clientID {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) SetCardActive(_ context.Context, id loyalty.CardID, active bool) error {
	c, ok := s.cards[id]
	if !ok {
		return &loyalty.NotFoundError{Kind: loyalty.KindCard, ID: string(id)}
	}
	c.Active = active
	s.cards[id] = c
	return nil
}

func (s *state) InsertStation(_ context.Context, st loyalty.Station) error {
	if _, ok := s.stations[st.ID]; ok {
		return &loyalty.DuplicateError{Kind: loyalty.KindStation, Field: "id", Value: string(st.ID)}
	}
	for _, existing := range s.stations {
		if existing.Name == st.Name {
			return &loyalty.DuplicateError{Kind: loyalty.KindStation, Field: "name", Value: st.Name}
		}
	}
	s.stations[st.ID] = st
	return nil
}

func (s *state) Station(_ context.Context, id loyalty.StationID) (*loyalty.Station, error) {
	st, ok := s.stations[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *state) Stations(_ context.Context) ([]loyalty.Station, error) {
	out := make([]loyalty.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) InsertOperator(_ context.Context, op loyalty.Operator) error {
	if _, ok := s.operators[op.ID]; ok {
		return &loyalty.DuplicateError{Kind: loyalty.KindOperator, Field: "id", Value: string(op.ID)}
	}
	for _, existing := range s.operators {
		if existing.Username == op.Username {
			return &loyalty.DuplicateError{Kind: loyalty.KindOperator, Field: "username", Value: op.Username}
		}
	}
	s.operators[op.ID] = op
	return nil
}

func (s *state) Operator(_ context.Context, id loyalty.OperatorID) (*loyalty.Operator, error) {
	op, ok := s.operators[id]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (s *state) Operators(_ context.Context) ([]loyalty.Operator, error) {
	out := make([]loyalty.Operator, 0, len(s.operators))
	for _, op := range s.operators {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *state) SetOperatorActive(_ context.Context, id loyalty.OperatorID, active bool) error {
	op, ok := s.operators[id]
	if !ok {
		return &loyalty.NotFoundError{Kind: loyalty.KindOperator, ID: string(id)}
	}
	op.Active = active
	s.operators[id] = op
	return nil
}

// AppendTransaction keeps s.transactions ordered with a binary-search insert.
func (s *state) AppendTransaction(_ context.Context, tx loyalty.FuelTransaction) error {
	for _, existing := range s.transactions {
		if existing.ID == tx.ID {
			return &loyalty.DuplicateError{Kind: loyalty.KindTransaction, Field: "id", Value: string(tx.ID)}
		}
	}
	txs := s.transactions
	i := sort.Search(len(txs), func(i int) bool {
		if !txs[i].Timestamp.Equal(tx.Timestamp) {
			return txs[i].Timestamp.After(tx.Timestamp)
		}
		return txs[i].ID > tx.ID
	})
	txs = append(txs, loyalty.FuelTransaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	s.transactions = txs
	return nil
}

func (s *state) Transaction(_ context.Context, id loyalty.TransactionID) (*loyalty.FuelTransaction, error) {
	for _, tx := range s.transactions {
		if tx.ID == id {
			tx := tx
			return &tx, nil
		}
	}
	return nil, nil
}

func (s *state) TransactionsByClient(_ context.Context, clientID loyalty.ClientID) ([]loyalty.FuelTransaction, error) {
	var out []loyalty.FuelTransaction
	for _, tx := range s.transactions {
		if tx.ClientID == clientID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *state) TransactionsBetween(_ context.Context, from, to time.Time) ([]loyalty.FuelTransaction, error) {
	var out []loyalty.FuelTransaction
	for _, tx := range s.transactions {
		if !tx.Timestamp.Before(from) && !tx.Timestamp.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}
