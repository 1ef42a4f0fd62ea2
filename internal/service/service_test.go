package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/storecredit/internal/metrics"
	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/service/config"
	"github.com/iurnickita/storecredit/internal/store"
	storeConfig "github.com/iurnickita/storecredit/internal/store/config"
)

type fixture struct {
	service Service
	store   store.Store
	key     model.CreditKey
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	st, err := store.NewStore(storeConfig.Config{
		Driver: storeConfig.DriverSQLite,
		DBDsn: "file:" + filepath.Join(t.TempDir(), "credit.db") +
			"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate",
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := NewService(config.Config{}, st, metrics.NewMetrics(prometheus.NewRegistry()), zap.NewNop())

	customer, err := svc.CreateCustomer(context.Background(), 1, "Ahmed Ali", "07701234567")
	require.NoError(t, err)

	return fixture{
		service: svc,
		store:   st,
		key:     model.CreditKey{Customer: customer.ID, Seller: 1},
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var serviceErr *Error
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, code, serviceErr.Code)
}

func TestScenarioNoLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	decision, err := f.service.CheckLimit(ctx, f.key, dec(500_000))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionUnrestricted, decision.Status)
	assert.Contains(t, decision.Message, "no credit limit defined")
	assert.True(t, decision.MaxAmount.IsZero())

	_, found, err := f.service.GetLimit(ctx, f.key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScenarioWarningAndRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SetLimit(ctx, f.key, dec(1_000_000), 0.8)
	require.NoError(t, err)

	result, err := f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(850_000), Description: "purchase order #1"})
	require.NoError(t, err)
	assert.Equal(t, CheckoutCommitted, result.State)
	// до покупки использовано 0
	assert.Equal(t, model.DecisionApproved, result.Decision.Status)

	decision, err := f.service.CheckLimit(ctx, f.key, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionWarning, decision.Status)
	assert.True(t, decision.UsedAmount.Equal(dec(850_000)))
	assert.InDelta(t, 0.85, decision.WarningRatio, 1e-9)

	// превышение: ничего не записано
	result, err = f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(200_000)})
	require.ErrorIs(t, err, ErrLimitExceeded)
	requireCode(t, err, CodeLimitExceeded)
	assert.Equal(t, CheckoutAborted, result.State)
	assert.Equal(t, model.DecisionRejected, result.Decision.Status)
	assert.True(t, result.Decision.Remaining.Equal(dec(150_000)))

	current, err := f.service.Balance(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, current.Equal(dec(850_000)))

	entries, err := f.service.Statement(ctx, f.key, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScenarioOverpayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(100_000)})
	require.NoError(t, err)

	entry, err := f.service.RecordPayment(ctx, f.key, dec(300_000), "cash", "")
	require.NoError(t, err)
	assert.True(t, entry.Data.BalanceAfter.Equal(dec(-200_000)))

	limit, found, err := f.service.GetLimit(ctx, f.key)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, limit.Data.UsedAmount.IsZero())
	// лимит создан автоматически
	assert.True(t, limit.Data.MaxAmount.Equal(dec(1_000_000)))

	// счетчик на нуле и журнал в минусе: это согласовано
	drift, err := f.service.Drift(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, drift.InSync())
}

func TestCheckoutOrderFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SetLimit(ctx, f.key, dec(1_000), 0.8)
	require.NoError(t, err)

	errInventory := errors.New("out of stock")
	result, err := f.service.Checkout(ctx, CheckoutRequest{
		Key:    f.key,
		Amount: dec(500),
		CreateOrder: func(ctx context.Context) (string, error) {
			return "", errInventory
		},
	})
	require.ErrorIs(t, err, errInventory)
	requireCode(t, err, CodeOrderFailed)
	assert.Equal(t, CheckoutAborted, result.State)

	current, err := f.service.Balance(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, current.IsZero())

	limit, _, err := f.service.GetLimit(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, limit.Data.UsedAmount.IsZero())
}

func TestCheckoutUsesOrderReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Checkout(ctx, CheckoutRequest{
		Key:    f.key,
		Amount: dec(10),
		CreateOrder: func(ctx context.Context) (string, error) {
			return "purchase order #42", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "purchase order #42", result.Entry.Data.Description)
}

func TestCheckoutIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := 0
	req := CheckoutRequest{
		Key:            f.key,
		Amount:         dec(100),
		IdempotencyKey: "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		CreateOrder: func(ctx context.Context) (string, error) {
			calls++
			return "order", nil
		},
	}

	first, err := f.service.Checkout(ctx, req)
	require.NoError(t, err)
	second, err := f.service.Checkout(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, CheckoutCommitted, second.State)
	assert.Equal(t, first.Entry.Operation, second.Entry.Operation)
	assert.Equal(t, 1, calls)

	current, err := f.service.Balance(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, current.Equal(dec(100)))

	// ключ покупки нельзя переиспользовать для оплаты
	_, err = f.service.RecordPayment(ctx, f.key, dec(100), "", req.IdempotencyKey)
	requireCode(t, err, CodeConflict)
}

func TestRecordPaymentIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.RecordPayment(ctx, f.key, dec(50), "cash", "k-1")
	require.NoError(t, err)
	second, err := f.service.RecordPayment(ctx, f.key, dec(50), "cash", "k-1")
	require.NoError(t, err)
	assert.Equal(t, first.Operation, second.Operation)

	current, err := f.service.Balance(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, current.Equal(dec(-50)))
}

func TestConcurrentCheckoutsNeverExceedLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SetLimit(ctx, f.key, dec(1_000_000), 0.8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(100_000)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && result.State == CheckoutCommitted:
				committed++
			case errors.Is(err, ErrLimitExceeded):
				rejected++
			default:
				t.Errorf("unexpected checkout result: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, committed)
	assert.Equal(t, 10, rejected)

	limit, _, err := f.service.GetLimit(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, limit.Data.UsedAmount.Equal(dec(1_000_000)))

	current, err := f.service.Balance(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, current.Equal(dec(1_000_000)))
}

func TestAdjustmentDriftAndReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(500)})
	require.NoError(t, err)

	entry, err := f.service.RecordAdjustment(ctx, f.key, dec(200), "manual fix", "")
	require.NoError(t, err)
	assert.True(t, entry.Data.BalanceBefore.Equal(dec(500)))
	assert.True(t, entry.Data.BalanceAfter.Equal(dec(200)))

	// корректировка не двигает счетчик лимита
	drift, err := f.service.Drift(ctx, f.key)
	require.NoError(t, err)
	assert.False(t, drift.InSync())
	assert.True(t, drift.Difference().Equal(dec(300)))

	drift, err = f.service.Reconcile(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, drift.InSync())
	assert.True(t, drift.Used.Equal(dec(200)))

	// журнал не изменился
	entries, err := f.service.Statement(ctx, f.key, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReconcileWithoutLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Reconcile(context.Background(), f.key)
	require.ErrorIs(t, err, ErrLimitNotFound)
	requireCode(t, err, CodeNotFound)
}

func TestLimitLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SetLimit(ctx, f.key, dec(1_000), 0.5)
	require.NoError(t, err)
	_, err = f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(600)})
	require.NoError(t, err)

	require.NoError(t, f.service.DeactivateLimit(ctx, f.key))
	decision, err := f.service.CheckLimit(ctx, f.key, dec(5_000))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionUnrestricted, decision.Status)

	// покупка без активного лимита учитывается, лимит остается выключенным
	_, err = f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(100)})
	require.NoError(t, err)
	_, found, err := f.service.GetLimit(ctx, f.key)
	require.NoError(t, err)
	assert.False(t, found)

	limit, err := f.service.SetLimit(ctx, f.key, dec(2_000), 0.8)
	require.NoError(t, err)
	assert.True(t, limit.Data.Active)
	assert.True(t, limit.Data.UsedAmount.Equal(dec(700)))

	require.NoError(t, f.service.ResetUsed(ctx, f.key))
	limit, _, err = f.service.GetLimit(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, limit.Data.UsedAmount.IsZero())

	_, err = f.service.SetLimit(ctx, f.key, dec(-1), 0.8)
	requireCode(t, err, CodeInvalidAmount)
	_, err = f.service.SetLimit(ctx, f.key, dec(1), 1.5)
	requireCode(t, err, CodeInvalidAmount)
}

func TestSellerIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := model.CreditKey{Customer: f.key.Customer, Seller: 2}

	_, err := f.service.CheckLimit(ctx, foreign, dec(1))
	require.ErrorIs(t, err, ErrCustomerNotFound)
	_, err = f.service.Checkout(ctx, CheckoutRequest{Key: foreign, Amount: dec(1)})
	require.ErrorIs(t, err, ErrCustomerNotFound)
	_, err = f.service.RecordPayment(ctx, foreign, dec(1), "", "")
	require.ErrorIs(t, err, ErrCustomerNotFound)
	_, err = f.service.Statement(ctx, foreign, 10)
	require.ErrorIs(t, err, ErrCustomerNotFound)
	require.ErrorIs(t, f.service.RenameCustomer(ctx, 2, f.key.Customer, "x"), ErrCustomerNotFound)
}

func TestCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateCustomer(ctx, 1, "Other", "07701234567")
	require.ErrorIs(t, err, ErrCustomerExists)
	requireCode(t, err, CodeConflict)

	_, err = f.service.CreateCustomer(ctx, 1, "  ", "")
	require.ErrorIs(t, err, ErrInsufficientData)

	found, err := f.service.FindCustomer(ctx, 1, "07701234567", "")
	require.NoError(t, err)
	assert.Equal(t, f.key.Customer, found.ID)

	// телефон не найден, ищем по имени
	found, err = f.service.FindCustomer(ctx, 1, "000", "ALI")
	require.NoError(t, err)
	assert.Equal(t, f.key.Customer, found.ID)

	_, err = f.service.FindCustomer(ctx, 1, "000", "")
	require.ErrorIs(t, err, ErrCustomerNotFound)
	_, err = f.service.FindCustomer(ctx, 1, "", "")
	require.ErrorIs(t, err, ErrInsufficientData)

	require.NoError(t, f.service.RenameCustomer(ctx, 1, f.key.Customer, "Ahmed A. Ali"))
	list, err := f.service.ListCustomers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ahmed A. Ali", list[0].Customer.Data.FullName)
}

func TestStatementLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(1)})
		require.NoError(t, err)
	}

	entries, err := f.service.Statement(ctx, f.key, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	entries, err = f.service.Statement(ctx, f.key, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.True(t, entries[0].Data.BalanceAfter.Equal(dec(12)))
}

func TestInvalidAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Checkout(ctx, CheckoutRequest{Key: f.key, Amount: dec(0)})
	requireCode(t, err, CodeInvalidAmount)
	_, err = f.service.RecordPayment(ctx, f.key, dec(-5), "", "")
	requireCode(t, err, CodeInvalidAmount)
	_, err = f.service.CheckLimit(ctx, f.key, dec(-1))
	requireCode(t, err, CodeInvalidAmount)
}
