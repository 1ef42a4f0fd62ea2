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

const transactionColumns = "id, customer_id, seller_id, type, amount, description," +
	" balance_before, balance_after, idempotency_key, created_at"

// LedgerBalance returns balance_after of the newest entry, or zero.
func (store *store) LedgerBalance(ctx context.Context, key model.CreditKey) (decimal.Decimal, error) {
	var current decimal.Decimal
	err := store.queryRow(ctx,
		"SELECT balance_after FROM credit_transactions"+
			" WHERE customer_id = ? AND seller_id = ?"+
			" ORDER BY created_at DESC, id DESC"+
			" LIMIT 1",
		key.Customer, key.Seller).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) { // нет записей - баланс нулевой
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return current, nil
}

// LedgerAppend writes one entry on top of the current balance. Purchases and
// payments move the limit's used amount in the same transaction.
// A repeated idempotency key returns the stored entry with ErrDuplicateRequest.
func (store *store) LedgerAppend(ctx context.Context, key model.CreditKey, data model.CreditTransactionData) (model.CreditTransaction, error) {
	if !data.Type.Valid() {
		return model.CreditTransaction{}, balance.ErrUnknownTransactionType
	}
	if data.Type != model.TransactionAdjustment && !data.Amount.IsPositive() {
		return model.CreditTransaction{}, ErrAmountIncorrect
	}

	var entry model.CreditTransaction
	err := store.WithTx(ctx, func(ctx context.Context) error {
		if data.IdempotencyKey != "" {
			existing, err := store.LedgerFindByIdempotencyKey(ctx, key, data.IdempotencyKey)
			if err == nil {
				entry = existing
				return ErrDuplicateRequest
			}
			if !errors.Is(err, ErrNoRows) {
				return err
			}
		}

		// Получение актуального баланса
		before, err := store.LedgerBalance(ctx, key)
		if err != nil {
			return err
		}
		after, err := balance.Next(before, data.Type, data.Amount)
		if err != nil {
			return err
		}

		// Запись обновленного баланса
		entry = model.CreditTransaction{Key: key, Data: data}
		entry.Data.BalanceBefore = before
		entry.Data.BalanceAfter = after
		if entry.Data.CreatedAt.IsZero() {
			entry.Data.CreatedAt = time.Now().UTC()
		}
		err = store.queryRow(ctx,
			"INSERT INTO credit_transactions (customer_id, seller_id, type, amount, description,"+
				" balance_before, balance_after, idempotency_key, created_at)"+
				" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"+
				" RETURNING id",
			key.Customer,
			key.Seller,
			string(entry.Data.Type),
			entry.Data.Amount,
			entry.Data.Description,
			entry.Data.BalanceBefore,
			entry.Data.BalanceAfter,
			nullString(entry.Data.IdempotencyKey),
			entry.Data.CreatedAt).Scan(&entry.Operation)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return err
		}

		// Покупка и оплата двигают счетчик лимита, корректировка нет
		if direction, ok := balance.Direction(data.Type); ok {
			if _, err = store.LimitAdjustUsed(ctx, key, data.Amount, direction); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return entry, ErrDuplicateRequest
		}
		return model.CreditTransaction{}, err
	}
	return entry, nil
}

func (store *store) LedgerFindByIdempotencyKey(ctx context.Context, key model.CreditKey, idempotencyKey string) (model.CreditTransaction, error) {
	rows, err := store.query(ctx,
		"SELECT "+transactionColumns+" FROM credit_transactions"+
			" WHERE customer_id = ? AND seller_id = ? AND idempotency_key = ?",
		key.Customer, key.Seller, idempotencyKey)
	if err != nil {
		return model.CreditTransaction{}, err
	}
	entries, err := scanTransactions(rows)
	if err != nil {
		return model.CreditTransaction{}, err
	}
	if len(entries) == 0 {
		return model.CreditTransaction{}, ErrNoRows
	}
	return entries[0], nil
}

// LedgerStatement returns at most limit entries, newest first.
func (store *store) LedgerStatement(ctx context.Context, key model.CreditKey, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := store.query(ctx,
		"SELECT "+transactionColumns+" FROM credit_transactions"+
			" WHERE customer_id = ? AND seller_id = ?"+
			" ORDER BY created_at DESC, id DESC"+
			" LIMIT ?",
		key.Customer, key.Seller, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.CreditTransaction, error) {
	defer rows.Close()

	var entries []model.CreditTransaction
	for rows.Next() {
		var entry model.CreditTransaction
		var txType string
		var idempotencyKey sql.NullString
		err := rows.Scan(&entry.Operation,
			&entry.Key.Customer,
			&entry.Key.Seller,
			&txType,
			&entry.Data.Amount,
			&entry.Data.Description,
			&entry.Data.BalanceBefore,
			&entry.Data.BalanceAfter,
			&idempotencyKey,
			timestamp{&entry.Data.CreatedAt})
		if err != nil {
			return nil, err
		}
		entry.Data.Type = model.TransactionType(txType)
		entry.Data.IdempotencyKey = idempotencyKey.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
