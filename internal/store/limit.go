package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/storecredit/internal/balance"
	"github.com/iurnickita/storecredit/internal/model"
)

const limitColumns = "customer_id, seller_id, max_amount, warning_threshold, used_amount, active, created_at, updated_at"

// LimitGet returns the pair's active limit, or ErrNoRows.
func (store *store) LimitGet(ctx context.Context, key model.CreditKey) (model.CreditLimit, error) {
	return store.limitOne(ctx,
		"SELECT "+limitColumns+" FROM credit_limits"+
			" WHERE customer_id = ? AND seller_id = ? AND active = TRUE",
		key.Customer, key.Seller)
}

// LimitGetAny returns the pair's limit row whether active or not.
func (store *store) LimitGetAny(ctx context.Context, key model.CreditKey) (model.CreditLimit, error) {
	return store.limitOne(ctx,
		"SELECT "+limitColumns+" FROM credit_limits"+
			" WHERE customer_id = ? AND seller_id = ?",
		key.Customer, key.Seller)
}

func (store *store) limitOne(ctx context.Context, query string, args ...any) (model.CreditLimit, error) {
	var limit model.CreditLimit
	err := store.queryRow(ctx, query, args...).Scan(&limit.Key.Customer,
		&limit.Key.Seller,
		&limit.Data.MaxAmount,
		&limit.Data.WarningThreshold,
		&limit.Data.UsedAmount,
		&limit.Data.Active,
		timestamp{&limit.Data.CreatedAt},
		timestamp{&limit.Data.UpdatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CreditLimit{}, ErrNoRows
		}
		return model.CreditLimit{}, err
	}
	return limit, nil
}

// LimitSet creates or updates the pair's limit and reactivates it.
// The used amount of an existing row is kept.
func (store *store) LimitSet(ctx context.Context, key model.CreditKey, maxAmount decimal.Decimal, warningThreshold float64) (model.CreditLimit, error) {
	if maxAmount.IsNegative() {
		return model.CreditLimit{}, ErrAmountIncorrect
	}
	if warningThreshold <= 0 {
		warningThreshold = store.defaultThreshold
	}

	var limit model.CreditLimit
	err := store.WithTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		_, err := store.exec(ctx,
			"INSERT INTO credit_limits ("+limitColumns+")"+
				" VALUES (?, ?, ?, ?, ?, TRUE, ?, ?)"+
				" ON CONFLICT (customer_id, seller_id) DO UPDATE SET"+
				"   max_amount = excluded.max_amount,"+
				"   warning_threshold = excluded.warning_threshold,"+
				"   active = TRUE,"+
				"   updated_at = excluded.updated_at",
			key.Customer,
			key.Seller,
			maxAmount,
			warningThreshold,
			decimal.Zero,
			now,
			now)
		if err != nil {
			return err
		}
		limit, err = store.LimitGetAny(ctx, key)
		return err
	})
	if err != nil {
		return model.CreditLimit{}, err
	}
	return limit, nil
}

// LimitAdjustUsed moves the used amount of the pair's limit. A missing row is
// created with the default limit; an inactive row is updated but stays inactive.
func (store *store) LimitAdjustUsed(ctx context.Context, key model.CreditKey, amount decimal.Decimal, direction model.UsageDirection) (model.CreditLimit, error) {
	if amount.IsNegative() {
		return model.CreditLimit{}, ErrAmountIncorrect
	}

	var limit model.CreditLimit
	err := store.WithTx(ctx, func(ctx context.Context) error {
		current, err := store.LimitGetAny(ctx, key)
		switch {
		case errors.Is(err, ErrNoRows):
			// лимит создается при первой операции
			now := time.Now().UTC()
			current = model.CreditLimit{
				Key: key,
				Data: model.CreditLimitData{
					MaxAmount:        store.defaultMax,
					WarningThreshold: store.defaultThreshold,
					UsedAmount:       balance.Used(decimal.Zero, direction, amount),
					Active:           true,
					CreatedAt:        now,
					UpdatedAt:        now,
				},
			}
			_, err = store.exec(ctx,
				"INSERT INTO credit_limits ("+limitColumns+")"+
					" VALUES (?, ?, ?, ?, ?, ?, ?, ?)"+
					" ON CONFLICT (customer_id, seller_id) DO UPDATE SET"+
					"   used_amount = excluded.used_amount,"+
					"   updated_at = excluded.updated_at",
				key.Customer,
				key.Seller,
				current.Data.MaxAmount,
				current.Data.WarningThreshold,
				current.Data.UsedAmount,
				current.Data.Active,
				current.Data.CreatedAt,
				current.Data.UpdatedAt)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			current.Data.UsedAmount = balance.Used(current.Data.UsedAmount, direction, amount)
			current.Data.UpdatedAt = time.Now().UTC()
			_, err = store.exec(ctx,
				"UPDATE credit_limits SET used_amount = ?, updated_at = ?"+
					" WHERE customer_id = ? AND seller_id = ?",
				current.Data.UsedAmount,
				current.Data.UpdatedAt,
				key.Customer,
				key.Seller)
			if err != nil {
				return err
			}
		}
		limit = current
		return nil
	})
	if err != nil {
		return model.CreditLimit{}, err
	}
	return limit, nil
}

// LimitSetUsed overwrites the used amount. Used to reconcile with the ledger.
func (store *store) LimitSetUsed(ctx context.Context, key model.CreditKey, used decimal.Decimal) error {
	if used.IsNegative() {
		return ErrAmountIncorrect
	}
	res, err := store.exec(ctx,
		"UPDATE credit_limits SET used_amount = ?, updated_at = ?"+
			" WHERE customer_id = ? AND seller_id = ?",
		used, time.Now().UTC(), key.Customer, key.Seller)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (store *store) LimitDeactivate(ctx context.Context, key model.CreditKey) error {
	res, err := store.exec(ctx,
		"UPDATE credit_limits SET active = FALSE, updated_at = ?"+
			" WHERE customer_id = ? AND seller_id = ?",
		time.Now().UTC(), key.Customer, key.Seller)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (store *store) LimitResetUsed(ctx context.Context, key model.CreditKey) error {
	return store.LimitSetUsed(ctx, key, decimal.Zero)
}
