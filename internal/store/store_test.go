package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/store/config"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	cfg := config.Config{
		Driver: config.DriverSQLite,
		DBDsn: "file:" + filepath.Join(t.TempDir(), "credit.db") +
			"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate",
	}
	st, err := NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %d, got %s", want, got)
}

func TestRebind(t *testing.T) {
	pg, err := newDialect(config.DriverPostgres)
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite, err := newDialect(config.DriverSQLite)
	require.NoError(t, err)
	require.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))

	_, err = newDialect("oracle")
	require.Error(t, err)
}

func TestStoreCustomers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Создание покупателя
	ahmed, err := st.CustomerCreate(ctx, 1, "Ahmed Ali", "07701234567")
	require.NoError(t, err)
	require.NotZero(t, ahmed.ID)

	// тот же телефон у того же продавца
	_, err = st.CustomerCreate(ctx, 1, "Someone Else", "07701234567")
	require.ErrorIs(t, err, ErrAlreadyExists)

	// у другого продавца можно
	_, err = st.CustomerCreate(ctx, 2, "Ahmed Ali", "07701234567")
	require.NoError(t, err)

	// без телефона несколько покупателей
	_, err = st.CustomerCreate(ctx, 1, "Zainab", "")
	require.NoError(t, err)
	_, err = st.CustomerCreate(ctx, 1, "Omar", "")
	require.NoError(t, err)

	found, err := st.CustomerFindByPhone(ctx, 1, "07701234567")
	require.NoError(t, err)
	require.Equal(t, ahmed.ID, found.ID)
	require.Equal(t, "Ahmed Ali", found.Data.FullName)

	found, err = st.CustomerFindByName(ctx, 1, "ahmed")
	require.NoError(t, err)
	require.Equal(t, ahmed.ID, found.ID)

	_, err = st.CustomerFindByName(ctx, 1, "nobody")
	require.ErrorIs(t, err, ErrNoRows)

	// чужой покупатель не виден
	_, err = st.CustomerGet(ctx, 2, ahmed.ID)
	require.ErrorIs(t, err, ErrNoRows)

	require.NoError(t, st.CustomerRename(ctx, 1, ahmed.ID, "Ahmed A. Ali"))
	found, err = st.CustomerGet(ctx, 1, ahmed.ID)
	require.NoError(t, err)
	require.Equal(t, "Ahmed A. Ali", found.Data.FullName)
	require.ErrorIs(t, st.CustomerRename(ctx, 2, ahmed.ID, "x"), ErrNoRows)
}

func TestStoreCustomerList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	zainab, err := st.CustomerCreate(ctx, 1, "Zainab", "")
	require.NoError(t, err)
	_, err = st.CustomerCreate(ctx, 1, "Ahmed", "")
	require.NoError(t, err)
	_, err = st.CustomerCreate(ctx, 2, "Other seller", "")
	require.NoError(t, err)

	_, err = st.LimitSet(ctx, model.CreditKey{Customer: zainab.ID, Seller: 1}, dec(500_000), 0.9)
	require.NoError(t, err)

	list, err := st.CustomerList(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// по имени
	require.Equal(t, "Ahmed", list[0].Customer.Data.FullName)
	requireDecimal(t, 1_000_000, list[0].MaxCredit)
	requireDecimal(t, 0, list[0].CurrentUsed)
	require.True(t, list[0].LimitActive)

	require.Equal(t, "Zainab", list[1].Customer.Data.FullName)
	requireDecimal(t, 500_000, list[1].MaxCredit)
}

func TestStoreLimits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := model.CreditKey{Customer: 10, Seller: 1}

	_, err := st.LimitGet(ctx, key)
	require.ErrorIs(t, err, ErrNoRows)

	limit, err := st.LimitSet(ctx, key, dec(1_000_000), 0.8)
	require.NoError(t, err)
	require.True(t, limit.Data.Active)
	requireDecimal(t, 0, limit.Data.UsedAmount)

	_, err = st.LimitAdjustUsed(ctx, key, dec(850_000), model.UsageIncrease)
	require.NoError(t, err)

	// повторная установка сохраняет использованную сумму
	limit, err = st.LimitSet(ctx, key, dec(2_000_000), 0.5)
	require.NoError(t, err)
	requireDecimal(t, 2_000_000, limit.Data.MaxAmount)
	requireDecimal(t, 850_000, limit.Data.UsedAmount)
	require.Equal(t, 0.5, limit.Data.WarningThreshold)

	// чтение не меняет данные
	first, err := st.LimitGet(ctx, key)
	require.NoError(t, err)
	second, err := st.LimitGet(ctx, key)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// переплата обнуляет счетчик
	limit, err = st.LimitAdjustUsed(ctx, key, dec(900_000), model.UsageDecrease)
	require.NoError(t, err)
	requireDecimal(t, 0, limit.Data.UsedAmount)

	require.NoError(t, st.LimitDeactivate(ctx, key))
	_, err = st.LimitGet(ctx, key)
	require.ErrorIs(t, err, ErrNoRows)

	// неактивный лимит продолжает учитывать использование
	_, err = st.LimitAdjustUsed(ctx, key, dec(100), model.UsageIncrease)
	require.NoError(t, err)
	limit, err = st.LimitGetAny(ctx, key)
	require.NoError(t, err)
	require.False(t, limit.Data.Active)
	requireDecimal(t, 100, limit.Data.UsedAmount)

	// установка активирует
	limit, err = st.LimitSet(ctx, key, dec(1_000), 0)
	require.NoError(t, err)
	require.True(t, limit.Data.Active)
	require.Equal(t, model.DefaultWarningThreshold, limit.Data.WarningThreshold)

	require.NoError(t, st.LimitResetUsed(ctx, key))
	limit, err = st.LimitGet(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 0, limit.Data.UsedAmount)

	missing := model.CreditKey{Customer: 99, Seller: 1}
	require.ErrorIs(t, st.LimitDeactivate(ctx, missing), ErrNoRows)
	require.ErrorIs(t, st.LimitResetUsed(ctx, missing), ErrNoRows)

	_, err = st.LimitSet(ctx, key, dec(-1), 0.8)
	require.ErrorIs(t, err, ErrAmountIncorrect)
}

func TestStoreLimitLazyCreation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := model.CreditKey{Customer: 11, Seller: 1}

	limit, err := st.LimitAdjustUsed(ctx, key, dec(50_000), model.UsageIncrease)
	require.NoError(t, err)
	requireDecimal(t, 1_000_000, limit.Data.MaxAmount)
	require.Equal(t, 0.8, limit.Data.WarningThreshold)
	require.True(t, limit.Data.Active)
	requireDecimal(t, 50_000, limit.Data.UsedAmount)

	// оплата без лимита создает его с нулевым использованием
	other := model.CreditKey{Customer: 12, Seller: 1}
	limit, err = st.LimitAdjustUsed(ctx, other, dec(50_000), model.UsageDecrease)
	require.NoError(t, err)
	requireDecimal(t, 0, limit.Data.UsedAmount)
}

func TestStoreLedger(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := model.CreditKey{Customer: 20, Seller: 1}

	current, err := st.LedgerBalance(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 0, current)

	entry, err := st.LedgerAppend(ctx, key, model.CreditTransactionData{
		Type: model.TransactionPurchase, Amount: dec(100_000), Description: "purchase order #1",
	})
	require.NoError(t, err)
	requireDecimal(t, 0, entry.Data.BalanceBefore)
	requireDecimal(t, 100_000, entry.Data.BalanceAfter)

	limit, err := st.LimitGet(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 100_000, limit.Data.UsedAmount)

	// переплата: баланс уходит в минус, счетчик лимита в ноль
	entry, err = st.LedgerAppend(ctx, key, model.CreditTransactionData{
		Type: model.TransactionPayment, Amount: dec(300_000), Description: "cash",
	})
	require.NoError(t, err)
	requireDecimal(t, 100_000, entry.Data.BalanceBefore)
	requireDecimal(t, -200_000, entry.Data.BalanceAfter)

	limit, err = st.LimitGet(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 0, limit.Data.UsedAmount)

	// корректировка задает баланс и не трогает лимит
	entry, err = st.LedgerAppend(ctx, key, model.CreditTransactionData{
		Type: model.TransactionAdjustment, Amount: dec(7), Description: "fix",
	})
	require.NoError(t, err)
	requireDecimal(t, -200_000, entry.Data.BalanceBefore)
	requireDecimal(t, 7, entry.Data.BalanceAfter)

	current, err = st.LedgerBalance(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 7, current)

	limit, err = st.LimitGet(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 0, limit.Data.UsedAmount)

	_, err = st.LedgerAppend(ctx, key, model.CreditTransactionData{Type: model.TransactionPurchase, Amount: dec(0)})
	require.ErrorIs(t, err, ErrAmountIncorrect)
	_, err = st.LedgerAppend(ctx, key, model.CreditTransactionData{Type: "refund", Amount: dec(1)})
	require.Error(t, err)
}

func TestStoreStatement(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := model.CreditKey{Customer: 30, Seller: 1}

	for i := 1; i <= 15; i++ {
		_, err := st.LedgerAppend(ctx, key, model.CreditTransactionData{
			Type: model.TransactionPurchase, Amount: dec(int64(i)),
		})
		require.NoError(t, err)
	}
	// чужая пара не попадает в выписку
	_, err := st.LedgerAppend(ctx, model.CreditKey{Customer: 30, Seller: 2}, model.CreditTransactionData{
		Type: model.TransactionPurchase, Amount: dec(1000),
	})
	require.NoError(t, err)

	entries, err := st.LedgerStatement(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, entries, 10)

	// новые сверху, цепочка балансов непрерывна
	requireDecimal(t, 15, entries[0].Data.Amount)
	requireDecimal(t, 120, entries[0].Data.BalanceAfter)
	for i := 0; i < len(entries)-1; i++ {
		require.True(t, entries[i].Data.BalanceBefore.Equal(entries[i+1].Data.BalanceAfter))
		require.Greater(t, entries[i].Operation, entries[i+1].Operation)
	}

	entries, err = st.LedgerStatement(ctx, key, 100)
	require.NoError(t, err)
	require.Len(t, entries, 15)

	entries, err = st.LedgerStatement(ctx, model.CreditKey{Customer: 31, Seller: 1}, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStoreIdempotency(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := model.CreditKey{Customer: 40, Seller: 1}

	data := model.CreditTransactionData{
		Type: model.TransactionPayment, Amount: dec(100), IdempotencyKey: "5f1c3a7e-4f0e-4b3c-9d55-1d7c0b7e2a10",
	}
	first, err := st.LedgerAppend(ctx, key, data)
	require.NoError(t, err)

	second, err := st.LedgerAppend(ctx, key, data)
	require.ErrorIs(t, err, ErrDuplicateRequest)
	require.Equal(t, first.Operation, second.Operation)

	entries, err := st.LedgerStatement(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, data.IdempotencyKey, entries[0].Data.IdempotencyKey)

	// тот же ключ у другой пары независим
	_, err = st.LedgerAppend(ctx, model.CreditKey{Customer: 41, Seller: 1}, data)
	require.NoError(t, err)
}

func TestStoreWithTxRollback(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := model.CreditKey{Customer: 50, Seller: 1}

	errOrder := context.Canceled
	err := st.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, st.LockPair(ctx, key))
		_, err := st.LedgerAppend(ctx, key, model.CreditTransactionData{
			Type: model.TransactionPurchase, Amount: dec(100),
		})
		require.NoError(t, err)
		return errOrder
	})
	require.ErrorIs(t, err, errOrder)

	// ни записи, ни лимита
	current, err := st.LedgerBalance(ctx, key)
	require.NoError(t, err)
	requireDecimal(t, 0, current)
	_, err = st.LimitGetAny(ctx, key)
	require.ErrorIs(t, err, ErrNoRows)
}
