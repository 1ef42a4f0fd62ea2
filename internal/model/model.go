package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Значения по умолчанию для лимита, который создается автоматически
var DefaultMaxCredit = decimal.NewFromInt(1_000_000)

const DefaultWarningThreshold = 0.8

// Пара (покупатель, продавец). Все кредитные данные принадлежат продавцу

type CreditKey struct {
	Customer int64
	Seller   int64
}

// Покупатели в кредит

type CreditCustomer struct {
	ID   int64
	Data CreditCustomerData
}
type CreditCustomerData struct {
	Seller    int64
	FullName  string
	Phone     string
	CreatedAt time.Time
}

// Покупатель вместе с его лимитом (для списка продавца)
type CustomerSummary struct {
	Customer    CreditCustomer
	MaxCredit   decimal.Decimal
	CurrentUsed decimal.Decimal
	LimitActive bool
}

// Кредитный лимит

type CreditLimit struct {
	Key  CreditKey
	Data CreditLimitData
}
type CreditLimitData struct {
	MaxAmount        decimal.Decimal
	WarningThreshold float64
	UsedAmount       decimal.Decimal
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UsageDirection says how a ledger entry moves the limit's used amount.
type UsageDirection int

const (
	UsageIncrease UsageDirection = iota + 1
	UsageDecrease
)

// Журнал операций

type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionPayment    TransactionType = "payment"
	TransactionAdjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPurchase, TransactionPayment, TransactionAdjustment:
		return true
	}
	return false
}

type CreditTransaction struct {
	Key       CreditKey
	Operation int64
	Data      CreditTransactionData
}
type CreditTransactionData struct {
	Type           TransactionType
	Amount         decimal.Decimal
	Description    string
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	IdempotencyKey string
	CreatedAt      time.Time
}

// Решение по лимиту

type DecisionStatus string

const (
	DecisionUnrestricted DecisionStatus = "UNRESTRICTED"
	DecisionApproved     DecisionStatus = "APPROVED"
	DecisionWarning      DecisionStatus = "APPROVED_WITH_WARNING"
	DecisionRejected     DecisionStatus = "REJECTED"
)

type Decision struct {
	Status       DecisionStatus
	MaxAmount    decimal.Decimal
	UsedAmount   decimal.Decimal
	Remaining    decimal.Decimal
	WarningRatio float64
	Message      string
}

// Allowed reports whether the purchase may proceed.
func (d Decision) Allowed() bool {
	return d.Status != DecisionRejected
}

// Расхождение между журналом и счетчиком лимита
type Drift struct {
	Key      CreditKey
	Balance  decimal.Decimal
	Used     decimal.Decimal
	Expected decimal.Decimal
	HasLimit bool
}

// InSync reports whether the limit's used amount matches the ledger.
func (d Drift) InSync() bool {
	return !d.HasLimit || d.Used.Equal(d.Expected)
}

// Difference is used minus the amount the ledger implies.
func (d Drift) Difference() decimal.Decimal {
	if !d.HasLimit {
		return decimal.Zero
	}
	return d.Used.Sub(d.Expected)
}
