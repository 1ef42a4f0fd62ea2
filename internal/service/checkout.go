package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/storecredit/internal/balance"
	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/store"
)

type CheckoutState string

const (
	CheckoutPending   CheckoutState = "PENDING"
	CheckoutAborted   CheckoutState = "ABORTED"
	CheckoutCommitted CheckoutState = "COMMITTED"
)

// CreateOrderFunc creates the order behind a credit purchase. It runs inside
// the checkout transaction; an error aborts the purchase. The returned string
// is used as the ledger description when the request has none.
type CreateOrderFunc func(ctx context.Context) (string, error)

type CheckoutRequest struct {
	Key            model.CreditKey
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
	CreateOrder    CreateOrderFunc
}

type CheckoutResult struct {
	State    CheckoutState
	Decision model.Decision
	Entry    model.CreditTransaction
	// Replayed is set when the idempotency key matched an earlier purchase.
	Replayed bool
}

// Checkout checks the limit, creates the order and books the purchase as one
// unit. Nothing is written when the limit rejects or the order fails.
func (service *service) Checkout(ctx context.Context, req CheckoutRequest) (result CheckoutResult, err error) {
	start := time.Now()
	defer func() {
		service.observe("checkout", start, err)
		service.metrics.RecordTransaction(string(model.TransactionPurchase), err)
	}()

	result.State = CheckoutPending
	if !req.Amount.IsPositive() {
		result.State = CheckoutAborted
		return result, NewServiceError(CodeInvalidAmount, ErrInvalidAmount)
	}
	if err = service.ensureCustomer(ctx, req.Key); err != nil {
		result.State = CheckoutAborted
		return result, err
	}

	unlock := service.locks.Lock(req.Key)
	defer unlock()

	err = service.store.WithTx(ctx, func(ctx context.Context) error {
		if err := service.store.LockPair(ctx, req.Key); err != nil {
			return err
		}

		// повторный запрос
		if req.IdempotencyKey != "" {
			entry, err := service.store.LedgerFindByIdempotencyKey(ctx, req.Key, req.IdempotencyKey)
			if err == nil {
				if entry.Data.Type != model.TransactionPurchase {
					return NewServiceError(CodeConflict, store.ErrDuplicateRequest)
				}
				result.Entry = entry
				result.Replayed = true
				return nil
			}
			if !errors.Is(err, store.ErrNoRows) {
				return err
			}
		}

		decision, err := service.checkLimit(ctx, req.Key, req.Amount)
		if err != nil {
			return err
		}
		result.Decision = decision
		if !decision.Allowed() {
			return NewServiceError(CodeLimitExceeded, fmt.Errorf("%w: %s", ErrLimitExceeded, decision.Message))
		}

		description := req.Description
		if req.CreateOrder != nil {
			reference, err := req.CreateOrder(ctx)
			if err != nil {
				return NewServiceError(CodeOrderFailed, fmt.Errorf("create order: %w", err))
			}
			if description == "" {
				description = reference
			}
		}

		entry, err := service.store.LedgerAppend(ctx, req.Key, model.CreditTransactionData{
			Type:           model.TransactionPurchase,
			Amount:         req.Amount,
			Description:    description,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		result.Entry = entry
		return nil
	})
	if err != nil {
		result.State = CheckoutAborted
		result.Entry = model.CreditTransaction{}
		service.zaplog.Info("checkout aborted",
			zap.Int64("customer_id", req.Key.Customer),
			zap.Int64("seller_id", req.Key.Seller),
			zap.String("amount", req.Amount.String()),
			zap.String("decision", string(result.Decision.Status)),
			zap.Error(err))
		return result, mapStoreError(err, ErrCustomerNotFound)
	}

	result.State = CheckoutCommitted
	service.zaplog.Info("checkout committed",
		zap.Int64("customer_id", req.Key.Customer),
		zap.Int64("seller_id", req.Key.Seller),
		zap.String("amount", req.Amount.String()),
		zap.String("decision", string(result.Decision.Status)),
		zap.Bool("replayed", result.Replayed),
		zap.Int64("operation", result.Entry.Operation))
	return result, nil
}

// RecordPayment books money received from the customer. Overpayment drives the
// balance negative while the limit's used amount stops at zero.
func (service *service) RecordPayment(ctx context.Context, key model.CreditKey, amount decimal.Decimal, description string, idempotencyKey string) (model.CreditTransaction, error) {
	if !amount.IsPositive() {
		return model.CreditTransaction{}, NewServiceError(CodeInvalidAmount, ErrInvalidAmount)
	}
	return service.record(ctx, key, model.TransactionPayment, amount, description, idempotencyKey)
}

// RecordAdjustment sets the balance to amount. The limit is left alone.
func (service *service) RecordAdjustment(ctx context.Context, key model.CreditKey, amount decimal.Decimal, description string, idempotencyKey string) (model.CreditTransaction, error) {
	return service.record(ctx, key, model.TransactionAdjustment, amount, description, idempotencyKey)
}

func (service *service) record(ctx context.Context, key model.CreditKey, txType model.TransactionType, amount decimal.Decimal, description string, idempotencyKey string) (entry model.CreditTransaction, err error) {
	start := time.Now()
	defer func() {
		service.observe("record_"+string(txType), start, err)
		service.metrics.RecordTransaction(string(txType), err)
	}()

	if err = service.ensureCustomer(ctx, key); err != nil {
		return model.CreditTransaction{}, err
	}

	unlock := service.locks.Lock(key)
	defer unlock()

	err = service.store.WithTx(ctx, func(ctx context.Context) error {
		if err := service.store.LockPair(ctx, key); err != nil {
			return err
		}
		entry, err = service.store.LedgerAppend(ctx, key, model.CreditTransactionData{
			Type:           txType,
			Amount:         amount,
			Description:    strings.TrimSpace(description),
			IdempotencyKey: idempotencyKey,
		})
		return err
	})
	switch {
	case errors.Is(err, store.ErrDuplicateRequest):
		// запись уже есть, повтор возвращает ее
		if entry.Data.Type != txType {
			return model.CreditTransaction{}, NewServiceError(CodeConflict, store.ErrDuplicateRequest)
		}
		return entry, nil
	case err != nil:
		return model.CreditTransaction{}, mapStoreError(err, ErrCustomerNotFound)
	}

	service.zaplog.Info("credit transaction recorded",
		zap.Int64("customer_id", key.Customer),
		zap.Int64("seller_id", key.Seller),
		zap.String("type", string(txType)),
		zap.String("amount", amount.String()),
		zap.String("balance_after", entry.Data.BalanceAfter.String()))
	return entry, nil
}

// Drift compares the ledger balance with the limit's used amount.
func (service *service) Drift(ctx context.Context, key model.CreditKey) (model.Drift, error) {
	if err := service.ensureCustomer(ctx, key); err != nil {
		return model.Drift{}, err
	}
	drift, err := service.drift(ctx, key)
	if err != nil {
		return model.Drift{}, err
	}
	if !drift.InSync() {
		service.metrics.RecordDrift()
		service.zaplog.Warn("credit usage drifted from ledger",
			zap.Int64("customer_id", key.Customer),
			zap.Int64("seller_id", key.Seller),
			zap.String("balance", drift.Balance.String()),
			zap.String("used", drift.Used.String()))
	}
	return drift, nil
}

func (service *service) drift(ctx context.Context, key model.CreditKey) (model.Drift, error) {
	drift := model.Drift{Key: key}

	current, err := service.store.LedgerBalance(ctx, key)
	if err != nil {
		return model.Drift{}, mapStoreError(err, ErrCustomerNotFound)
	}
	drift.Balance = current
	drift.Expected = balance.Expected(current)

	limit, err := service.store.LimitGetAny(ctx, key)
	switch {
	case errors.Is(err, store.ErrNoRows):
		return drift, nil
	case err != nil:
		return model.Drift{}, mapStoreError(err, ErrLimitNotFound)
	}
	drift.HasLimit = true
	drift.Used = limit.Data.UsedAmount
	return drift, nil
}

// Reconcile sets the used amount to what the ledger implies. The ledger is
// not touched.
func (service *service) Reconcile(ctx context.Context, key model.CreditKey) (drift model.Drift, err error) {
	start := time.Now()
	defer func() { service.observe("reconcile", start, err) }()

	if err = service.ensureCustomer(ctx, key); err != nil {
		return model.Drift{}, err
	}

	unlock := service.locks.Lock(key)
	defer unlock()

	var before model.Drift
	err = service.store.WithTx(ctx, func(ctx context.Context) error {
		if err := service.store.LockPair(ctx, key); err != nil {
			return err
		}
		var err error
		before, err = service.drift(ctx, key)
		if err != nil {
			return err
		}
		if !before.HasLimit {
			return NewServiceError(CodeNotFound, ErrLimitNotFound)
		}
		if before.InSync() {
			drift = before
			return nil
		}
		if err = service.store.LimitSetUsed(ctx, key, before.Expected); err != nil {
			return err
		}
		drift, err = service.drift(ctx, key)
		return err
	})
	if err != nil {
		return model.Drift{}, mapStoreError(err, ErrLimitNotFound)
	}

	if !before.InSync() {
		service.zaplog.Info("credit usage reconciled",
			zap.Int64("customer_id", key.Customer),
			zap.Int64("seller_id", key.Seller),
			zap.String("used_before", before.Used.String()),
			zap.String("used_after", drift.Used.String()))
	}
	return drift, nil
}
