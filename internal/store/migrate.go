package store

import (
	"context"
	"fmt"
	"strings"
)

// Схема общая для обоих диалектов, отличается только тип ключа
var migrations = []string{
	// Покупатели в кредит. Телефон уникален в пределах продавца
	`CREATE TABLE IF NOT EXISTS credit_customers (
		id %[1]s,
		seller_id BIGINT NOT NULL,
		full_name VARCHAR(200) NOT NULL,
		phone VARCHAR(32),
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS credit_customers_seller_phone
		ON credit_customers (seller_id, phone)`,

	// Лимиты. Одна строка на пару, повторная установка обновляет ее
	`CREATE TABLE IF NOT EXISTS credit_limits (
		customer_id BIGINT NOT NULL,
		seller_id BIGINT NOT NULL,
		max_amount NUMERIC NOT NULL,
		warning_threshold DOUBLE PRECISION NOT NULL,
		used_amount NUMERIC NOT NULL,
		active BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (customer_id, seller_id)
	)`,

	// Журнал операций. Записи только добавляются
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id %[1]s,
		customer_id BIGINT NOT NULL,
		seller_id BIGINT NOT NULL,
		type VARCHAR(16) NOT NULL,
		amount NUMERIC NOT NULL,
		description TEXT NOT NULL,
		balance_before NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		idempotency_key VARCHAR(64),
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS credit_transactions_pair_created
		ON credit_transactions (customer_id, seller_id, created_at, id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS credit_transactions_idempotency
		ON credit_transactions (customer_id, seller_id, idempotency_key)`,
}

func (store *store) migrate(ctx context.Context) error {
	for i, m := range migrations {
		if strings.Contains(m, "%[1]s") {
			m = fmt.Sprintf(m, store.dialect.serial)
		}
		if _, err := store.database.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
