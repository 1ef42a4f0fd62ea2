package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/store/config"
)

type Store interface {
	// WithTx runs fn in one database transaction. Store calls made with the
	// context passed to fn join that transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockPair serializes writers of one (customer, seller) pair until the
	// surrounding transaction ends.
	LockPair(ctx context.Context, key model.CreditKey) error

	CustomerCreate(ctx context.Context, seller int64, fullName string, phone string) (model.CreditCustomer, error)
	CustomerGet(ctx context.Context, seller int64, id int64) (model.CreditCustomer, error)
	CustomerFindByPhone(ctx context.Context, seller int64, phone string) (model.CreditCustomer, error)
	CustomerFindByName(ctx context.Context, seller int64, name string) (model.CreditCustomer, error)
	CustomerList(ctx context.Context, seller int64) ([]model.CustomerSummary, error)
	CustomerRename(ctx context.Context, seller int64, id int64, fullName string) error

	LimitGet(ctx context.Context, key model.CreditKey) (model.CreditLimit, error)
	LimitGetAny(ctx context.Context, key model.CreditKey) (model.CreditLimit, error)
	LimitSet(ctx context.Context, key model.CreditKey, maxAmount decimal.Decimal, warningThreshold float64) (model.CreditLimit, error)
	LimitAdjustUsed(ctx context.Context, key model.CreditKey, amount decimal.Decimal, direction model.UsageDirection) (model.CreditLimit, error)
	LimitSetUsed(ctx context.Context, key model.CreditKey, used decimal.Decimal) error
	LimitDeactivate(ctx context.Context, key model.CreditKey) error
	LimitResetUsed(ctx context.Context, key model.CreditKey) error

	LedgerBalance(ctx context.Context, key model.CreditKey) (decimal.Decimal, error)
	LedgerAppend(ctx context.Context, key model.CreditKey, data model.CreditTransactionData) (model.CreditTransaction, error)
	LedgerFindByIdempotencyKey(ctx context.Context, key model.CreditKey, idempotencyKey string) (model.CreditTransaction, error)
	LedgerStatement(ctx context.Context, key model.CreditKey, limit int) ([]model.CreditTransaction, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNoRows           = errors.New("no rows")
	ErrAlreadyExists    = errors.New("already exists")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrAmountIncorrect  = errors.New("amount value is incorrect")
)

type store struct {
	database         *sql.DB
	dialect          dialect
	defaultMax       decimal.Decimal
	defaultThreshold float64
}

func NewStore(cfg config.Config) (Store, error) {
	d, err := newDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	// SQLite держит одного писателя, лишние соединения дают только SQLITE_BUSY
	if d.driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	st := &store{
		database:         db,
		dialect:          d,
		defaultMax:       model.DefaultMaxCredit,
		defaultThreshold: model.DefaultWarningThreshold,
	}
	if cfg.DefaultMaxCredit > 0 {
		st.defaultMax = decimal.NewFromFloat(cfg.DefaultMaxCredit)
	}
	if cfg.DefaultWarningThreshold > 0 {
		st.defaultThreshold = cfg.DefaultWarningThreshold
	}

	if err = st.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

func (store *store) Ping(ctx context.Context) error {
	return store.database.PingContext(ctx)
}

func (store *store) Close() error {
	return store.database.Close()
}

// Транзакция передается через контекст
type txKey struct{}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (store *store) conn(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return store.database
}

func (store *store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	// уже внутри транзакции
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (store *store) LockPair(ctx context.Context, key model.CreditKey) error {
	if store.dialect.lockPair == "" {
		return nil
	}
	_, err := store.conn(ctx).ExecContext(ctx, store.dialect.lockPair, fmt.Sprintf("%d:%d", key.Customer, key.Seller))
	return err
}

// exec, query и queryRow переписывают плейсхолдеры под диалект
func (store *store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return store.conn(ctx).ExecContext(ctx, store.dialect.rebind(query), args...)
}

func (store *store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return store.conn(ctx).QueryContext(ctx, store.dialect.rebind(query), args...)
}

func (store *store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return store.conn(ctx).QueryRowContext(ctx, store.dialect.rebind(query), args...)
}
