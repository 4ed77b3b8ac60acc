/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  loyalty domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Points, liters and money are decimal.Decimal. They encode as JSON strings
  ("12.5") and decode from either strings or numbers, so no precision is
  lost on the way in or out.

VALIDATION:
  Validation is done by the loyalty package, not in DTOs. DTOs are pure data
  carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// RULES AND CATALOG
// =============================================================================

type RuleDTO struct {
	ID             string          `json:"id"`
	PointsPerLiter decimal.Decimal `json:"points_per_liter"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
	IsActive       bool            `json:"is_active"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CreateRuleRequest struct {
	PointsPerLiter decimal.Decimal `json:"points_per_liter"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
	MakeActive     *bool           `json:"make_active,omitempty"` // default true
}

type ThresholdDTO struct {
	ID             string          `json:"id"`
	PointsRequired decimal.Decimal `json:"points_required"`
	MonetaryValue  decimal.Decimal `json:"monetary_value"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CreateThresholdRequest struct {
	PointsRequired decimal.Decimal `json:"points_required"`
	MonetaryValue  decimal.Decimal `json:"monetary_value"`
	Description    string          `json:"description"`
}

// =============================================================================
// CLIENTS AND CARDS
// =============================================================================

type ClientDTO struct {
	ID           string          `json:"id"`
	Phone        string          `json:"phone"`
	LastName     string          `json:"last_name"`
	FirstName    string          `json:"first_name"`
	RegisteredAt time.Time       `json:"registered_at"`
	Balance      decimal.Decimal `json:"balance"`
}

type CreateClientRequest struct {
	Phone      string `json:"phone"`
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	CardNumber string `json:"card_number,omitempty"`
}

// ClientSummaryDTO is the account page: balance, card, history and the tier
// the client could redeem right now.
type ClientSummaryDTO struct {
	Client       ClientDTO        `json:"client"`
	Card         *CardDTO         `json:"card,omitempty"`
	Transactions []TransactionDTO `json:"transactions"`
	Redeemable   *ThresholdDTO    `json:"redeemable,omitempty"`
}

type CardDTO struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	ClientID string    `json:"client_id"`
	Active   bool      `json:"active"`
	IssuedAt time.Time `json:"issued_at"`
}

type IssueCardRequest struct {
	Number string `json:"number"`
}

type CardStatusRequest struct {
	Active bool `json:"active"`
}

type AdjustmentRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// =============================================================================
// STATIONS AND OPERATORS
// =============================================================================

type StationDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateStationRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type OperatorDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	StationID string    `json:"station_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type OperatorStatusRequest struct {
	Active bool `json:"active"`
}

type CreateOperatorRequest struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	StationID string `json:"station_id,omitempty"`
}

// =============================================================================
// PURCHASES
// =============================================================================

// PurchaseRequest names the client either directly or by card number.
// StationID defaults to the station of the calling employee.
type PurchaseRequest struct {
	ClientID      string          `json:"client_id,omitempty"`
	CardNumber    string          `json:"card_number,omitempty"`
	StationID     string          `json:"station_id,omitempty"`
	Liters        decimal.Decimal `json:"liters"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	UseRedemption bool            `json:"use_redemption"`
}

type TransactionDTO struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	StationID      string          `json:"station_id"`
	OperatorID     string          `json:"operator_id"`
	RuleID         string          `json:"rule_id"`
	ThresholdID    string          `json:"threshold_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Liters         decimal.Decimal `json:"liters"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	Discount       decimal.Decimal `json:"discount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	PointsEarned   decimal.Decimal `json:"points_earned"`
	PointsRedeemed decimal.Decimal `json:"points_redeemed"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportDTO struct {
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Summary      SummaryDTO       `json:"summary"`
	Transactions []TransactionDTO `json:"transactions"`
}

type SummaryDTO struct {
	Count          int             `json:"count"`
	Redemptions    int             `json:"redemptions"`
	Liters         decimal.Decimal `json:"liters"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	Discount       decimal.Decimal `json:"discount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	PointsEarned   decimal.Decimal `json:"points_earned"`
	PointsRedeemed decimal.Decimal `json:"points_redeemed"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toRuleDTO(r loyalty.PointsRule) RuleDTO {
	return RuleDTO{
		ID:             string(r.ID),
		PointsPerLiter: r.PointsPerLiter,
		ValidFrom:      r.ValidFrom,
		ValidTo:        r.ValidTo,
		IsActive:       r.IsActive,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
	}
}

func toThresholdDTO(t loyalty.RedemptionThreshold) ThresholdDTO {
	return ThresholdDTO{
		ID:             string(t.ID),
		PointsRequired: t.PointsRequired.Value,
		MonetaryValue:  t.MonetaryValue.Value,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
	}
}

func toClientDTO(c loyalty.ClientAccount) ClientDTO {
	return ClientDTO{
		ID:           string(c.ID),
		Phone:        c.Phone,
		LastName:     c.LastName,
		FirstName:    c.FirstName,
		RegisteredAt: c.RegisteredAt,
		Balance:      c.Balance.Value,
	}
}

func toCardDTO(c loyalty.LoyaltyCard) CardDTO {
	return CardDTO{
		ID:       string(c.ID),
		Number:   c.Number,
		ClientID: string(c.ClientID),
		Active:   c.Active,
		IssuedAt: c.IssuedAt,
	}
}

func toStationDTO(s loyalty.Station) StationDTO {
	return StationDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		Address:   s.Address,
		City:      s.City,
		CreatedAt: s.CreatedAt,
	}
}

func toOperatorDTO(o loyalty.Operator) OperatorDTO {
	return OperatorDTO{
		ID:        string(o.ID),
		Username:  o.Username,
		Role:      string(o.Role),
		StationID: string(o.StationID),
		Active:    o.Active,
		CreatedAt: o.CreatedAt,
	}
}

func toTransactionDTO(tx loyalty.FuelTransaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		ClientID:       string(tx.ClientID),
		StationID:      string(tx.StationID),
		OperatorID:     string(tx.OperatorID),
		RuleID:         string(tx.RuleID),
		ThresholdID:    string(tx.ThresholdID),
		Timestamp:      tx.Timestamp,
		Liters:         tx.Liters.Value,
		GrossAmount:    tx.GrossAmount.Value,
		Discount:       tx.Discount.Value,
		NetAmount:      tx.NetAmount.Value,
		PointsEarned:   tx.PointsEarned.Value,
		PointsRedeemed: tx.PointsRedeemed.Value,
	}
}

func toTransactionDTOs(txs []loyalty.FuelTransaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toReportDTO(r loyalty.Report) ReportDTO {
	s := r.Summary
	return ReportDTO{
		Start: r.Period.Start,
		End:   r.Period.End,
		Summary: SummaryDTO{
			Count:          s.Count,
			Redemptions:    s.Redemptions,
			Liters:         s.Liters.Value,
			GrossAmount:    s.GrossAmount.Value,
			Discount:       s.Discount.Value,
			NetAmount:      s.NetAmount.Value,
			PointsEarned:   s.PointsEarned.Value,
			PointsRedeemed: s.PointsRedeemed.Value,
		},
		Transactions: toTransactionDTOs(r.Transactions),
	}
}
