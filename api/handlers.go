/*
handlers.go - HTTP API handlers for the loyalty engine

PURPOSE:
  Exposes the loyalty engine via REST API. Handles HTTP request/response,
  JSON serialization, role checks, and delegates to the loyalty package.

ENDPOINTS:
  Rules:
    GET    /api/rules                  Rule history
    GET    /api/rules/active           Active rule (404 if none)
    GET    /api/rules/{id}             One rule
    POST   /api/rules                  New rule, active by default

  Catalog:
    GET    /api/thresholds             Catalog, ascending by points
    POST   /api/thresholds             New tier
    GET    /api/thresholds/best?balance=N  Tier a balance would redeem

  Clients and cards:
    GET    /api/clients                List clients
    POST   /api/clients                Enroll client (optionally with a card)
    GET    /api/clients/by-phone/{phone}
    GET    /api/clients/{id}           Summary: account, card, history, tier
    GET    /api/clients/{id}/transactions
    POST   /api/clients/{id}/card      Issue card
    POST   /api/clients/{id}/adjustments  Manual balance delta
    GET    /api/cards/{number}         Resolve card to client
    PUT    /api/cards/{number}/status  Activate or block card

  Purchases:
    POST   /api/purchases              Record a fuel purchase
    GET    /api/transactions/{id}

  Back office:
    GET/POST /api/stations, /api/operators
    PUT    /api/operators/{id}/status  Activate or deactivate operator

  Reports:
    GET    /api/reports/daily?date=2024-05-01
    GET    /api/reports/range?start=2024-05-01&end=2024-05-07
    GET    /api/reports/weekly?date=2024-05-01
    GET    /api/reports/monthly?year=2024&month=5
    GET    /api/reports/annual?year=2024

AUTHENTICATION:
  An upstream proxy authenticates the caller and sets X-Actor-Id (operator
  ID) and, for web clients, X-Actor-Client. ActorMiddleware turns those into
  a loyalty.Actor; handlers check it with loyalty.Permits.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing, unknown or deactivated actor
  - 403: Role does not allow the operation
  - 404: Entity not found, no active rule
  - 409: Business conflict (no eligible threshold, insufficient balance,
         duplicate, inactive card or operator)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
	"github.com/warp/loyalty-engine/loyalty"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears a store. Both bundled stores implement it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *loyalty.Engine
	Logger *slog.Logger

	// Store is only needed by the scenario loader.
	Store Resetter
}

// NewHandler creates a new handler over the engine.
func NewHandler(engine *loyalty.Engine, store Resetter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Engine: engine, Store: store, Logger: logger}
}

// =============================================================================
// ACTOR
// =============================================================================

type actorKey struct{}

const (
	HeaderActorID     = "X-Actor-Id"
	HeaderActorClient = "X-Actor-Client"
)

// ActorMiddleware resolves the calling operator and stores its Actor in the
// request context.
func (h *Handler) ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderActorID)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing "+HeaderActorID+" header", nil)
			return
		}
		op, err := h.Engine.Identities.Operator(r.Context(), loyalty.OperatorID(id))
		if err != nil {
			if loyalty.IsNotFound(err) {
				writeError(w, http.StatusUnauthorized, "Unknown operator", err)
				return
			}
			h.fail(w, r, "Failed to resolve operator", err)
			return
		}
		if !op.Active {
			writeError(w, http.StatusUnauthorized, "Operator deactivated", loyalty.ErrOperatorInactive)
			return
		}
		actor, err := loyalty.ActorFor(op, loyalty.ClientID(r.Header.Get(HeaderActorClient)))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid actor", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) loyalty.Actor {
	a, _ := ctx.Value(actorKey{}).(loyalty.Actor)
	return a
}

// allow writes 403 and returns false if the actor may not perform op.
func allow(w http.ResponseWriter, r *http.Request, op loyalty.Operation) bool {
	a := actorFrom(r.Context())
	if a == nil || !loyalty.Permits(a, op) {
		writeError(w, http.StatusForbidden, "Operation not permitted", loyalty.ErrForbidden)
		return false
	}
	return true
}

func allowClient(w http.ResponseWriter, r *http.Request, id loyalty.ClientID) bool {
	if !allow(w, r, loyalty.OpViewClient) {
		return false
	}
	if !loyalty.CanAccessClient(actorFrom(r.Context()), id) {
		writeError(w, http.StatusForbidden, "Client not accessible", loyalty.ErrForbidden)
		return false
	}
	return true
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageRules) {
		return
	}
	rules, err := h.Engine.Rules.Rules(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list rules", err)
		return
	}
	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetActiveRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpViewCatalog) {
		return
	}
	rule, err := h.Engine.Rules.ActiveRule(r.Context())
	if errors.Is(err, loyalty.ErrNoActiveRule) {
		writeError(w, http.StatusNotFound, "No active points rule", err)
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to load active rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageRules) {
		return
	}
	rule, err := h.Engine.Rules.Rule(r.Context(), loyalty.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to load rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageRules) {
		return
	}
	var req CreateRuleRequest
	if !decode(w, r, &req) {
		return
	}

	rr := loyalty.RuleRequest{
		PointsPerLiter: req.PointsPerLiter,
		ValidTo:        req.ValidTo,
		MakeActive:     req.MakeActive == nil || *req.MakeActive,
	}
	if req.ValidFrom != nil {
		rr.ValidFrom = *req.ValidFrom
	}
	rule, err := h.Engine.Rules.SetActiveRule(r.Context(), rr)
	if err != nil {
		h.fail(w, r, "Failed to create rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListThresholds(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpViewCatalog) {
		return
	}
	ts, err := h.Engine.Catalog.List(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list thresholds", err)
		return
	}
	dtos := make([]ThresholdDTO, len(ts))
	for i, t := range ts {
		dtos[i] = toThresholdDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateThreshold(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageCatalog) {
		return
	}
	var req CreateThresholdRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Engine.Catalog.Add(r.Context(), req.PointsRequired, req.MonetaryValue, req.Description)
	if err != nil {
		h.fail(w, r, "Failed to create threshold", err)
		return
	}
	writeJSON(w, http.StatusCreated, toThresholdDTO(t))
}

// BestThreshold answers "what would this balance redeem?" without touching
// any account.
func (h *Handler) BestThreshold(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpViewCatalog) {
		return
	}
	balance, err := decimal.NewFromString(r.URL.Query().Get("balance"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid balance", err)
		return
	}
	t, ok, err := h.Engine.Catalog.BestAffordable(r.Context(), generic.Points(balance))
	if err != nil {
		h.fail(w, r, "Failed to select threshold", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No affordable threshold", loyalty.ErrNoEligibleThreshold)
		return
	}
	writeJSON(w, http.StatusOK, toThresholdDTO(t))
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpRegisterClient) {
		return
	}
	clients, err := h.Engine.Clients.List(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient enrolls a client and, when card_number is given, issues the
// card in the same store transaction.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpRegisterClient) {
		return
	}
	var req CreateClientRequest
	if !decode(w, r, &req) {
		return
	}

	cr := loyalty.ClientRequest{
		Phone:     req.Phone,
		LastName:  req.LastName,
		FirstName: req.FirstName,
	}
	if req.CardNumber == "" {
		client, err := h.Engine.Clients.Register(r.Context(), cr)
		if err != nil {
			h.fail(w, r, "Failed to create client", err)
			return
		}
		writeJSON(w, http.StatusCreated, ClientSummaryDTO{Client: toClientDTO(client), Transactions: []TransactionDTO{}})
		return
	}

	client, card, err := h.Engine.Clients.RegisterWithCard(r.Context(), cr, req.CardNumber)
	if err != nil {
		h.fail(w, r, "Failed to create client", err)
		return
	}
	dto := toCardDTO(card)
	writeJSON(w, http.StatusCreated, ClientSummaryDTO{
		Client:       toClientDTO(client),
		Card:         &dto,
		Transactions: []TransactionDTO{},
	})
}

func (h *Handler) GetClientByPhone(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpRegisterClient) {
		return
	}
	client, err := h.Engine.Clients.ByPhone(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		h.fail(w, r, "Failed to find client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// GetClient returns the client summary. Account, card, history and catalog
// are loaded concurrently.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := loyalty.ClientID(chi.URLParam(r, "id"))
	if !allowClient(w, r, id) {
		return
	}

	var (
		client     loyalty.ClientAccount
		card       *loyalty.LoyaltyCard
		txs        []loyalty.FuelTransaction
		thresholds []loyalty.RedemptionThreshold
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		client, err = h.Engine.Clients.Client(ctx, id)
		return err
	})
	g.Go(func() error {
		c, err := h.Engine.Cards.ForClient(ctx, id)
		if loyalty.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		card = &c
		return nil
	})
	g.Go(func() error {
		var err error
		txs, err = h.Engine.ClientTransactions(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		thresholds, err = h.Engine.Catalog.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, "Failed to load client", err)
		return
	}

	summary := ClientSummaryDTO{
		Client:       toClientDTO(client),
		Transactions: toTransactionDTOs(txs),
	}
	if card != nil {
		dto := toCardDTO(*card)
		summary.Card = &dto
	}
	if t, ok := loyalty.SelectBestAffordable(thresholds, client.Balance); ok {
		dto := toThresholdDTO(t)
		summary.Redeemable = &dto
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetClientTransactions(w http.ResponseWriter, r *http.Request) {
	id := loyalty.ClientID(chi.URLParam(r, "id"))
	if !allowClient(w, r, id) {
		return
	}
	txs, err := h.Engine.ClientTransactions(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) IssueCard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageCards) {
		return
	}
	var req IssueCardRequest
	if !decode(w, r, &req) {
		return
	}
	card, err := h.Engine.Cards.Issue(r.Context(), loyalty.ClientID(chi.URLParam(r, "id")), req.Number)
	if err != nil {
		h.fail(w, r, "Failed to issue card", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardDTO(card))
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpAdjustBalance) {
		return
	}
	var req AdjustmentRequest
	if !decode(w, r, &req) {
		return
	}
	client, err := h.Engine.Ledger.ApplyDelta(r.Context(), loyalty.ClientID(chi.URLParam(r, "id")), req.Delta)
	if err != nil {
		h.fail(w, r, "Failed to adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// ResolveCard returns the client behind an active card.
func (h *Handler) ResolveCard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpRecordPurchase) {
		return
	}
	client, err := h.Engine.Cards.Resolve(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, "Failed to resolve card", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

func (h *Handler) SetCardStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageCards) {
		return
	}
	var req CardStatusRequest
	if !decode(w, r, &req) {
		return
	}
	card, err := h.Engine.Cards.SetActive(r.Context(), chi.URLParam(r, "number"), req.Active)
	if err != nil {
		h.fail(w, r, "Failed to update card", err)
		return
	}
	writeJSON(w, http.StatusOK, toCardDTO(card))
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// RecordPurchase rings up a purchase as the calling operator. Station
// employees record at their own station only.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpRecordPurchase) {
		return
	}
	var req PurchaseRequest
	if !decode(w, r, &req) {
		return
	}

	actor := actorFrom(r.Context())
	station := loyalty.StationID(req.StationID)
	var operator loyalty.OperatorID
	switch a := actor.(type) {
	case loyalty.StationEmployee:
		operator = a.ID
		if station == "" {
			station = a.StationID
		}
	case loyalty.Admin:
		operator = a.ID
	}
	if station == "" {
		writeError(w, http.StatusBadRequest, "station_id is required", nil)
		return
	}
	if !loyalty.CanRecordAt(actor, station) {
		writeError(w, http.StatusForbidden, "Cannot record purchases at this station", loyalty.ErrForbidden)
		return
	}

	clientID := loyalty.ClientID(req.ClientID)
	if req.CardNumber != "" {
		client, err := h.Engine.Cards.Resolve(r.Context(), req.CardNumber)
		if err != nil {
			h.fail(w, r, "Failed to resolve card", err)
			return
		}
		if clientID != "" && clientID != client.ID {
			writeError(w, http.StatusBadRequest, "card_number and client_id name different clients", nil)
			return
		}
		clientID = client.ID
	}
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client_id or card_number is required", nil)
		return
	}

	tx, err := h.Engine.RecordPurchase(r.Context(), loyalty.PurchaseRequest{
		ClientID:      clientID,
		StationID:     station,
		OperatorID:    operator,
		Liters:        req.Liters,
		GrossAmount:   req.GrossAmount,
		UseRedemption: req.UseRedemption,
	})
	if err != nil {
		h.fail(w, r, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpViewClient) {
		return
	}
	tx, err := h.Engine.Transaction(r.Context(), loyalty.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to load transaction", err)
		return
	}
	if !loyalty.CanAccessClient(actorFrom(r.Context()), tx.ClientID) {
		// Same answer as a missing transaction so IDs cannot be probed.
		writeError(w, http.StatusNotFound, "Failed to load transaction", loyalty.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// STATION AND OPERATOR HANDLERS
// =============================================================================

func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpViewCatalog) {
		return
	}
	stations, err := h.Engine.Identities.Stations(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list stations", err)
		return
	}
	dtos := make([]StationDTO, len(stations))
	for i, s := range stations {
		dtos[i] = toStationDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateStation(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageStations) {
		return
	}
	var req CreateStationRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.Engine.Identities.RegisterStation(r.Context(), loyalty.StationRequest{
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
	})
	if err != nil {
		h.fail(w, r, "Failed to create station", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStationDTO(st))
}

func (h *Handler) ListOperators(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageOperators) {
		return
	}
	ops, err := h.Engine.Identities.Operators(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list operators", err)
		return
	}
	dtos := make([]OperatorDTO, len(ops))
	for i, o := range ops {
		dtos[i] = toOperatorDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageOperators) {
		return
	}
	var req CreateOperatorRequest
	if !decode(w, r, &req) {
		return
	}
	op, err := h.Engine.Identities.RegisterOperator(r.Context(), loyalty.OperatorRequest{
		Username:  req.Username,
		Role:      loyalty.Role(req.Role),
		StationID: loyalty.StationID(req.StationID),
	})
	if err != nil {
		h.fail(w, r, "Failed to create operator", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOperatorDTO(op))
}

// SetOperatorStatus activates or deactivates an operator. A deactivated
// operator is refused on its next request.
func (h *Handler) SetOperatorStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, loyalty.OpManageOperators) {
		return
	}
	var req OperatorStatusRequest
	if !decode(w, r, &req) {
		return
	}
	op, err := h.Engine.Identities.SetOperatorActive(r.Context(), loyalty.OperatorID(chi.URLParam(r, "id")), req.Active)
	if err != nil {
		h.fail(w, r, "Failed to update operator", err)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorDTO(op))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, func(ctx context.Context) (loyalty.Report, error) {
		date, err := dateParam(r, "date")
		if err != nil {
			return loyalty.Report{}, err
		}
		return h.Engine.Reports.Daily(ctx, date)
	})
}

func (h *Handler) RangeReport(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, func(ctx context.Context) (loyalty.Report, error) {
		start, err := dateParam(r, "start")
		if err != nil {
			return loyalty.Report{}, err
		}
		end, err := dateParam(r, "end")
		if err != nil {
			return loyalty.Report{}, err
		}
		return h.Engine.Reports.Range(ctx, start, end)
	})
}

func (h *Handler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, func(ctx context.Context) (loyalty.Report, error) {
		date, err := dateParam(r, "date")
		if err != nil {
			return loyalty.Report{}, err
		}
		return h.Engine.Reports.Weekly(ctx, date)
	})
}

func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, func(ctx context.Context) (loyalty.Report, error) {
		year, err := intParam(r, "year")
		if err != nil {
			return loyalty.Report{}, err
		}
		month, err := intParam(r, "month")
		if err != nil {
			return loyalty.Report{}, err
		}
		return h.Engine.Reports.Monthly(ctx, year, time.Month(month))
	})
}

func (h *Handler) AnnualReport(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, func(ctx context.Context) (loyalty.Report, error) {
		year, err := intParam(r, "year")
		if err != nil {
			return loyalty.Report{}, err
		}
		return h.Engine.Reports.Annual(ctx, year)
	})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request, run func(context.Context) (loyalty.Report, error)) {
	if !allow(w, r, loyalty.OpViewReports) {
		return
	}
	rep, err := run(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return time.Time{}, &loyalty.InvalidArgumentError{Field: name, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0, &loyalty.InvalidArgumentError{Field: name, Reason: "expected an integer"}
	}
	return v, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps loyalty errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, loyalty.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, loyalty.ErrNoActiveRule):
		return http.StatusConflict, "no_active_rule"
	case loyalty.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case loyalty.IsClientError(err):
		return http.StatusBadRequest, "invalid_argument"
	case loyalty.IsConflict(err):
		return http.StatusConflict, loyalty.RejectionReason(err)
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes err with the mapped status. Internal errors are logged and
// their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeJSON(w, status, ErrorResponse{Error: message, Code: code})
		return
	}
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	writeJSON(w, status, resp)
}
