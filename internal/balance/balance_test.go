package balance

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/storecredit/internal/model"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		before int64
		txType model.TransactionType
		amount int64
		want   int64
	}{
		{"purchase adds", 100, model.TransactionPurchase, 50, 150},
		{"payment subtracts", 100, model.TransactionPayment, 30, 70},
		{"payment may go negative", 100_000, model.TransactionPayment, 300_000, -200_000},
		{"adjustment overrides", 100, model.TransactionAdjustment, 7, 7},
		{"adjustment to zero", 500, model.TransactionAdjustment, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(decimal.NewFromInt(tt.before), tt.txType, decimal.NewFromInt(tt.amount))
			require.NoError(t, err)
			require.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s, want %d", got, tt.want)
		})
	}
}

func TestNextUnknownType(t *testing.T) {
	before := decimal.NewFromInt(10)
	got, err := Next(before, model.TransactionType("refund"), decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrUnknownTransactionType)
	require.True(t, got.Equal(before))
}

func TestUsed(t *testing.T) {
	hundred := decimal.NewFromInt(100_000)

	got := Used(hundred, model.UsageIncrease, decimal.NewFromInt(50_000))
	require.True(t, got.Equal(decimal.NewFromInt(150_000)))

	got = Used(hundred, model.UsageDecrease, decimal.NewFromInt(40_000))
	require.True(t, got.Equal(decimal.NewFromInt(60_000)))

	// переплата обнуляет счетчик, но не уводит его в минус
	got = Used(hundred, model.UsageDecrease, decimal.NewFromInt(300_000))
	require.True(t, got.IsZero())
}

func TestDirection(t *testing.T) {
	dir, ok := Direction(model.TransactionPurchase)
	require.True(t, ok)
	require.Equal(t, model.UsageIncrease, dir)

	dir, ok = Direction(model.TransactionPayment)
	require.True(t, ok)
	require.Equal(t, model.UsageDecrease, dir)

	_, ok = Direction(model.TransactionAdjustment)
	require.False(t, ok)
}

func TestExpected(t *testing.T) {
	require.True(t, Expected(decimal.NewFromInt(-200_000)).IsZero())
	require.True(t, Expected(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}

// Without adjustments the balance is exactly purchases minus payments.
func TestReplaySumOfPurchasesMinusPayments(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var ops []Op
		purchases, payments := decimal.Zero, decimal.Zero
		for i := 0; i < rnd.Intn(40)+1; i++ {
			amount := decimal.New(rnd.Int63n(1_000_000), -2)
			if rnd.Intn(2) == 0 {
				ops = append(ops, Op{Type: model.TransactionPurchase, Amount: amount})
				purchases = purchases.Add(amount)
			} else {
				ops = append(ops, Op{Type: model.TransactionPayment, Amount: amount})
				payments = payments.Add(amount)
			}
		}

		got, err := Replay(ops)
		require.NoError(t, err)
		require.True(t, got.Equal(purchases.Sub(payments)), "round %d: got %s", round, got)
	}
}
