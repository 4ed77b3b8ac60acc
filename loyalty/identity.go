/*
identity.go - Stations and operators

PURPOSE:
  Registers stations and the back-office operators who ring up purchases.
  Every purchase names both, so lookups go through a bounded LRU cache.

CACHING:
  Stations are insert-only. The only operator mutation is the active flag,
  and SetOperatorActive refreshes the cached entry after the store write.
  Misses are not cached: a station registered after a failed lookup is found
  on the next call.
*/
package loyalty

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

type IdentityRegistry struct {
	*deps
	cache *lru.Cache
}

type stationKey StationID
type operatorKey OperatorID

func newIdentityRegistry(d *deps) (*IdentityRegistry, error) {
	size := d.identityCacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &IdentityRegistry{deps: d, cache: cache}, nil
}

// =============================================================================
// STATIONS
// =============================================================================

type StationRequest struct {
	Name    string
	Address string
	City    string
}

// RegisterStation adds a station. Names are unique.
func (r *IdentityRegistry) RegisterStation(ctx context.Context, req StationRequest) (Station, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Station{}, invalid("station name", "required")
	}

	st := Station{
		ID:        StationID(r.newID()),
		Name:      name,
		Address:   strings.TrimSpace(req.Address),
		City:      strings.TrimSpace(req.City),
		CreatedAt: r.now(),
	}
	if err := r.store.InsertStation(ctx, st); err != nil {
		return Station{}, err
	}
	r.cache.Add(stationKey(st.ID), st)
	r.logger.Info("station registered", slog.String("station_id", string(st.ID)), slog.String("name", st.Name))
	return st, nil
}

func (r *IdentityRegistry) Station(ctx context.Context, id StationID) (Station, error) {
	if v, ok := r.cache.Get(stationKey(id)); ok {
		return v.(Station), nil
	}
	st, err := r.store.Station(ctx, id)
	if err != nil {
		return Station{}, err
	}
	if st == nil {
		return Station{}, notFound(KindStation, string(id))
	}
	r.cache.Add(stationKey(id), *st)
	return *st, nil
}

func (r *IdentityRegistry) Stations(ctx context.Context) ([]Station, error) {
	return r.store.Stations(ctx)
}

// =============================================================================
// OPERATORS
// =============================================================================

type OperatorRequest struct {
	Username  string
	Role      Role
	StationID StationID
}

// RegisterOperator adds a back-office user. Station employees must name an
// existing station; other roles must not name one.
func (r *IdentityRegistry) RegisterOperator(ctx context.Context, req OperatorRequest) (Operator, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return Operator{}, invalid("username", "required")
	}
	if !req.Role.Valid() {
		return Operator{}, invalid("role", "unknown role "+string(req.Role))
	}
	switch {
	case req.Role == RoleStationEmployee && req.StationID == "":
		return Operator{}, invalid("station", "required for station employees")
	case req.Role != RoleStationEmployee && req.StationID != "":
		return Operator{}, invalid("station", "only station employees are bound to a station")
	}
	if req.StationID != "" {
		if _, err := r.Station(ctx, req.StationID); err != nil {
			return Operator{}, err
		}
	}

	op := Operator{
		ID:        OperatorID(r.newID()),
		Username:  username,
		Role:      req.Role,
		StationID: req.StationID,
		Active:    true,
		CreatedAt: r.now(),
	}
	if err := r.store.InsertOperator(ctx, op); err != nil {
		return Operator{}, err
	}
	r.cache.Add(operatorKey(op.ID), op)
	r.logger.Info("operator registered",
		slog.String("operator_id", string(op.ID)),
		slog.String("username", op.Username),
		slog.String("role", string(op.Role)),
	)
	return op, nil
}

func (r *IdentityRegistry) Operator(ctx context.Context, id OperatorID) (Operator, error) {
	if v, ok := r.cache.Get(operatorKey(id)); ok {
		return v.(Operator), nil
	}
	op, err := r.store.Operator(ctx, id)
	if err != nil {
		return Operator{}, err
	}
	if op == nil {
		return Operator{}, notFound(KindOperator, string(id))
	}
	r.cache.Add(operatorKey(id), *op)
	return *op, nil
}

func (r *IdentityRegistry) Operators(ctx context.Context) ([]Operator, error) {
	return r.store.Operators(ctx)
}

// SetOperatorActive enables or disables an operator.
func (r *IdentityRegistry) SetOperatorActive(ctx context.Context, id OperatorID, active bool) (Operator, error) {
	op, err := r.Operator(ctx, id)
	if err != nil {
		return Operator{}, err
	}
	if op.Active == active {
		return op, nil
	}
	if err := r.store.SetOperatorActive(ctx, id, active); err != nil {
		return Operator{}, err
	}
	op.Active = active
	r.cache.Add(operatorKey(id), op)
	r.logger.Info("operator status changed",
		slog.String("operator_id", string(id)),
		slog.Bool("active", active),
	)
	return op, nil
}

// Purge drops every cached station and operator. Call it after the store was
// cleared underneath the engine.
func (r *IdentityRegistry) Purge() {
	r.cache.Purge()
}
