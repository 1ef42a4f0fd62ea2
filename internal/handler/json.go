package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/service"
)

// Запросы

type PostCustomerJSONRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

type PatchCustomerJSONRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
}

type PutLimitJSONRequest struct {
	MaxAmount        decimal.Decimal `json:"max_amount" validate:"gte=0"`
	WarningThreshold *float64        `json:"warning_threshold" validate:"omitempty,gt=0,lte=1"`
}

type PostCheckJSONRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

type PostAmountJSONRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Description    string          `json:"description" validate:"max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"omitempty,max=64"`
}

type PostAdjustmentJSONRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description" validate:"required,max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"omitempty,max=64"`
}

// Ответы

type CustomerJSONResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerSummaryJSONResponse struct {
	CustomerJSONResponse
	MaxCredit   decimal.Decimal `json:"max_credit"`
	CurrentUsed decimal.Decimal `json:"current_used"`
	LimitActive bool            `json:"limit_active"`
}

type LimitJSONResponse struct {
	CustomerID       int64           `json:"customer_id"`
	Defined          bool            `json:"defined"`
	MaxAmount        decimal.Decimal `json:"max_amount"`
	WarningThreshold float64         `json:"warning_threshold"`
	UsedAmount       decimal.Decimal `json:"used_amount"`
	Active           bool            `json:"active"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

type DecisionJSONResponse struct {
	Status       string          `json:"status"`
	Allowed      bool            `json:"allowed"`
	Message      string          `json:"message"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	UsedAmount   decimal.Decimal `json:"used_amount"`
	Remaining    decimal.Decimal `json:"remaining"`
	WarningRatio float64         `json:"warning_ratio"`
}

type TransactionJSONResponse struct {
	Operation      int64           `json:"operation"`
	CustomerID     int64           `json:"customer_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CheckoutJSONResponse struct {
	State       string                   `json:"state"`
	Replayed    bool                     `json:"replayed,omitempty"`
	Decision    DecisionJSONResponse     `json:"decision"`
	Transaction *TransactionJSONResponse `json:"transaction,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

type BalanceJSONResponse struct {
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

type DriftJSONResponse struct {
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	Used       decimal.Decimal `json:"used"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
	HasLimit   bool            `json:"has_limit"`
	InSync     bool            `json:"in_sync"`
}

func customerJSON(c model.CreditCustomer) CustomerJSONResponse {
	return CustomerJSONResponse{
		ID:        c.ID,
		FullName:  c.Data.FullName,
		Phone:     c.Data.Phone,
		CreatedAt: c.Data.CreatedAt,
	}
}

func limitJSON(key model.CreditKey, limit model.CreditLimit, found bool) LimitJSONResponse {
	if !found {
		return LimitJSONResponse{CustomerID: key.Customer}
	}
	updatedAt := limit.Data.UpdatedAt
	return LimitJSONResponse{
		CustomerID:       key.Customer,
		Defined:          true,
		MaxAmount:        limit.Data.MaxAmount,
		WarningThreshold: limit.Data.WarningThreshold,
		UsedAmount:       limit.Data.UsedAmount,
		Active:           limit.Data.Active,
		UpdatedAt:        &updatedAt,
	}
}

func decisionJSON(d model.Decision) DecisionJSONResponse {
	return DecisionJSONResponse{
		Status:       string(d.Status),
		Allowed:      d.Allowed(),
		Message:      d.Message,
		MaxAmount:    d.MaxAmount,
		UsedAmount:   d.UsedAmount,
		Remaining:    d.Remaining,
		WarningRatio: d.WarningRatio,
	}
}

func transactionJSON(e model.CreditTransaction) TransactionJSONResponse {
	return TransactionJSONResponse{
		Operation:      e.Operation,
		CustomerID:     e.Key.Customer,
		Type:           string(e.Data.Type),
		Amount:         e.Data.Amount,
		Description:    e.Data.Description,
		BalanceBefore:  e.Data.BalanceBefore,
		BalanceAfter:   e.Data.BalanceAfter,
		IdempotencyKey: e.Data.IdempotencyKey,
		CreatedAt:      e.Data.CreatedAt,
	}
}

func checkoutJSON(result service.CheckoutResult) CheckoutJSONResponse {
	response := CheckoutJSONResponse{
		State:    string(result.State),
		Replayed: result.Replayed,
		Decision: decisionJSON(result.Decision),
	}
	if result.State == service.CheckoutCommitted {
		entry := transactionJSON(result.Entry)
		response.Transaction = &entry
	}
	return response
}

func driftJSON(d model.Drift) DriftJSONResponse {
	return DriftJSONResponse{
		CustomerID: d.Key.Customer,
		Balance:    d.Balance,
		Used:       d.Used,
		Expected:   d.Expected,
		Difference: d.Difference(),
		HasLimit:   d.HasLimit,
		InSync:     d.InSync(),
	}
}
