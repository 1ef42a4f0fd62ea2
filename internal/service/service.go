package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/storecredit/internal/metrics"
	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/service/config"
	"github.com/iurnickita/storecredit/internal/store"
)

type Service interface {
	CreateCustomer(ctx context.Context, seller int64, fullName string, phone string) (model.CreditCustomer, error)
	FindCustomer(ctx context.Context, seller int64, phone string, name string) (model.CreditCustomer, error)
	ListCustomers(ctx context.Context, seller int64) ([]model.CustomerSummary, error)
	RenameCustomer(ctx context.Context, seller int64, customer int64, fullName string) error

	GetLimit(ctx context.Context, key model.CreditKey) (model.CreditLimit, bool, error)
	SetLimit(ctx context.Context, key model.CreditKey, maxAmount decimal.Decimal, warningThreshold float64) (model.CreditLimit, error)
	DeactivateLimit(ctx context.Context, key model.CreditKey) error
	ResetUsed(ctx context.Context, key model.CreditKey) error

	CheckLimit(ctx context.Context, key model.CreditKey, amount decimal.Decimal) (model.Decision, error)
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	RecordPayment(ctx context.Context, key model.CreditKey, amount decimal.Decimal, description string, idempotencyKey string) (model.CreditTransaction, error)
	RecordAdjustment(ctx context.Context, key model.CreditKey, amount decimal.Decimal, description string, idempotencyKey string) (model.CreditTransaction, error)
	Balance(ctx context.Context, key model.CreditKey) (decimal.Decimal, error)
	Statement(ctx context.Context, key model.CreditKey, limit int) ([]model.CreditTransaction, error)
	Drift(ctx context.Context, key model.CreditKey) (model.Drift, error)
	Reconcile(ctx context.Context, key model.CreditKey) (model.Drift, error)
}

const (
	defaultStatementLimit = 10
	maxStatementLimit     = 100
)

type service struct {
	cfg     config.Config
	store   store.Store
	metrics *metrics.Metrics
	zaplog  *zap.Logger
	locks   *keyLock
}

func NewService(cfg config.Config, store store.Store, metrics *metrics.Metrics, zaplog *zap.Logger) Service {
	if cfg.StatementLimit <= 0 {
		cfg.StatementLimit = defaultStatementLimit
	}
	if cfg.MaxStatementLimit <= 0 {
		cfg.MaxStatementLimit = maxStatementLimit
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &service{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		zaplog:  zaplog,
		locks:   newKeyLock(),
	}
}

// Покупатели

func (service *service) CreateCustomer(ctx context.Context, seller int64, fullName string, phone string) (model.CreditCustomer, error) {
	fullName = strings.TrimSpace(fullName)
	phone = strings.TrimSpace(phone)
	if seller == 0 || fullName == "" {
		return model.CreditCustomer{}, NewServiceError(CodeInvalidRequest, ErrInsufficientData)
	}

	customer, err := service.store.CustomerCreate(ctx, seller, fullName, phone)
	if err != nil {
		return model.CreditCustomer{}, mapStoreError(err, ErrCustomerNotFound)
	}
	service.zaplog.Info("credit customer created",
		zap.Int64("seller_id", seller),
		zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// FindCustomer looks up by exact phone first, then by a name substring.
func (service *service) FindCustomer(ctx context.Context, seller int64, phone string, name string) (model.CreditCustomer, error) {
	phone = strings.TrimSpace(phone)
	name = strings.TrimSpace(name)
	if phone == "" && name == "" {
		return model.CreditCustomer{}, NewServiceError(CodeInvalidRequest, ErrInsufficientData)
	}

	if phone != "" {
		customer, err := service.store.CustomerFindByPhone(ctx, seller, phone)
		if err == nil || !errors.Is(err, store.ErrNoRows) || name == "" {
			return customer, mapStoreError(err, ErrCustomerNotFound)
		}
	}
	customer, err := service.store.CustomerFindByName(ctx, seller, name)
	return customer, mapStoreError(err, ErrCustomerNotFound)
}

func (service *service) ListCustomers(ctx context.Context, seller int64) ([]model.CustomerSummary, error) {
	customers, err := service.store.CustomerList(ctx, seller)
	return customers, mapStoreError(err, ErrCustomerNotFound)
}

func (service *service) RenameCustomer(ctx context.Context, seller int64, customer int64, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return NewServiceError(CodeInvalidRequest, ErrInsufficientData)
	}
	return mapStoreError(service.store.CustomerRename(ctx, seller, customer, fullName), ErrCustomerNotFound)
}

// ensureCustomer проверяет, что покупатель принадлежит продавцу
func (service *service) ensureCustomer(ctx context.Context, key model.CreditKey) error {
	if key.Customer == 0 || key.Seller == 0 {
		return NewServiceError(CodeInvalidRequest, ErrInsufficientData)
	}
	_, err := service.store.CustomerGet(ctx, key.Seller, key.Customer)
	return mapStoreError(err, ErrCustomerNotFound)
}

// Лимиты

// GetLimit returns the active limit. found is false when the pair is unrestricted.
func (service *service) GetLimit(ctx context.Context, key model.CreditKey) (model.CreditLimit, bool, error) {
	if err := service.ensureCustomer(ctx, key); err != nil {
		return model.CreditLimit{}, false, err
	}
	limit, err := service.store.LimitGet(ctx, key)
	if errors.Is(err, store.ErrNoRows) {
		return model.CreditLimit{}, false, nil
	}
	if err != nil {
		return model.CreditLimit{}, false, mapStoreError(err, ErrLimitNotFound)
	}
	return limit, true, nil
}

func (service *service) SetLimit(ctx context.Context, key model.CreditKey, maxAmount decimal.Decimal, warningThreshold float64) (model.CreditLimit, error) {
	if maxAmount.IsNegative() || warningThreshold < 0 || warningThreshold > 1 {
		return model.CreditLimit{}, NewServiceError(CodeInvalidAmount, ErrInvalidAmount)
	}
	if err := service.ensureCustomer(ctx, key); err != nil {
		return model.CreditLimit{}, err
	}

	unlock := service.locks.Lock(key)
	defer unlock()

	limit, err := service.store.LimitSet(ctx, key, maxAmount, warningThreshold)
	if err != nil {
		return model.CreditLimit{}, mapStoreError(err, ErrLimitNotFound)
	}
	service.zaplog.Info("credit limit set",
		zap.Int64("customer_id", key.Customer),
		zap.Int64("seller_id", key.Seller),
		zap.String("max_amount", maxAmount.String()),
		zap.Float64("warning_threshold", limit.Data.WarningThreshold))
	return limit, nil
}

func (service *service) DeactivateLimit(ctx context.Context, key model.CreditKey) error {
	if err := service.ensureCustomer(ctx, key); err != nil {
		return err
	}
	unlock := service.locks.Lock(key)
	defer unlock()

	if err := service.store.LimitDeactivate(ctx, key); err != nil {
		return mapStoreError(err, ErrLimitNotFound)
	}
	service.zaplog.Info("credit limit deactivated",
		zap.Int64("customer_id", key.Customer),
		zap.Int64("seller_id", key.Seller))
	return nil
}

// ResetUsed zeroes the used amount without looking at the ledger.
func (service *service) ResetUsed(ctx context.Context, key model.CreditKey) error {
	if err := service.ensureCustomer(ctx, key); err != nil {
		return err
	}
	unlock := service.locks.Lock(key)
	defer unlock()

	if err := service.store.LimitResetUsed(ctx, key); err != nil {
		return mapStoreError(err, ErrLimitNotFound)
	}
	service.zaplog.Info("credit usage reset",
		zap.Int64("customer_id", key.Customer),
		zap.Int64("seller_id", key.Seller))
	return nil
}

// CheckLimit is a pure read: it never changes the limit or the ledger.
func (service *service) CheckLimit(ctx context.Context, key model.CreditKey, amount decimal.Decimal) (model.Decision, error) {
	if amount.IsNegative() {
		return model.Decision{}, NewServiceError(CodeInvalidAmount, ErrInvalidAmount)
	}
	if err := service.ensureCustomer(ctx, key); err != nil {
		return model.Decision{}, err
	}
	return service.checkLimit(ctx, key, amount)
}

func (service *service) checkLimit(ctx context.Context, key model.CreditKey, amount decimal.Decimal) (model.Decision, error) {
	limit, err := service.store.LimitGet(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNoRows) {
		return model.Decision{}, mapStoreError(err, ErrLimitNotFound)
	}

	decision := decide(limit, found, amount)
	service.metrics.RecordDecision(string(decision.Status))
	return decision, nil
}

// Журнал

func (service *service) Balance(ctx context.Context, key model.CreditKey) (decimal.Decimal, error) {
	if err := service.ensureCustomer(ctx, key); err != nil {
		return decimal.Zero, err
	}
	current, err := service.store.LedgerBalance(ctx, key)
	if err != nil {
		return decimal.Zero, mapStoreError(err, ErrCustomerNotFound)
	}
	return current, nil
}

// Statement returns the newest entries first. A non-positive limit means the
// configured default; larger requests are capped.
func (service *service) Statement(ctx context.Context, key model.CreditKey, limit int) ([]model.CreditTransaction, error) {
	if err := service.ensureCustomer(ctx, key); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = service.cfg.StatementLimit
	}
	if limit > service.cfg.MaxStatementLimit {
		limit = service.cfg.MaxStatementLimit
	}
	entries, err := service.store.LedgerStatement(ctx, key, limit)
	if err != nil {
		return nil, mapStoreError(err, ErrCustomerNotFound)
	}
	return entries, nil
}

func (service *service) observe(operation string, start time.Time, err error) {
	service.metrics.RecordOperation(operation, start, err)
}
