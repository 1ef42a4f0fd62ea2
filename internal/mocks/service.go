package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/service"
)

type Service struct {
	mock.Mock
}

func (s *Service) CreateCustomer(ctx context.Context, seller int64, fullName string, phone string) (model.CreditCustomer, error) {
	args := s.Called(ctx, seller, fullName, phone)
	return args.Get(0).(model.CreditCustomer), args.Error(1)
}

func (s *Service) FindCustomer(ctx context.Context, seller int64, phone string, name string) (model.CreditCustomer, error) {
	args := s.Called(ctx, seller, phone, name)
	return args.Get(0).(model.CreditCustomer), args.Error(1)
}

func (s *Service) ListCustomers(ctx context.Context, seller int64) ([]model.CustomerSummary, error) {
	args := s.Called(ctx, seller)
	return args.Get(0).([]model.CustomerSummary), args.Error(1)
}

func (s *Service) RenameCustomer(ctx context.Context, seller int64, customer int64, fullName string) error {
	args := s.Called(ctx, seller, customer, fullName)
	return args.Error(0)
}

func (s *Service) GetLimit(ctx context.Context, key model.CreditKey) (model.CreditLimit, bool, error) {
	args := s.Called(ctx, key)
	return args.Get(0).(model.CreditLimit), args.Bool(1), args.Error(2)
}

func (s *Service) SetLimit(ctx context.Context, key model.CreditKey, maxAmount decimal.Decimal, warningThreshold float64) (model.CreditLimit, error) {
	args := s.Called(ctx, key, maxAmount, warningThreshold)
	return args.Get(0).(model.CreditLimit), args.Error(1)
}

func (s *Service) DeactivateLimit(ctx context.Context, key model.CreditKey) error {
	args := s.Called(ctx, key)
	return args.Error(0)
}

func (s *Service) ResetUsed(ctx context.Context, key model.CreditKey) error {
	args := s.Called(ctx, key)
	return args.Error(0)
}

func (s *Service) CheckLimit(ctx context.Context, key model.CreditKey, amount decimal.Decimal) (model.Decision, error) {
	args := s.Called(ctx, key, amount)
	return args.Get(0).(model.Decision), args.Error(1)
}

func (s *Service) Checkout(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
	args := s.Called(ctx, req)
	return args.Get(0).(service.CheckoutResult), args.Error(1)
}

func (s *Service) RecordPayment(ctx context.Context, key model.CreditKey, amount decimal.Decimal, description string, idempotencyKey string) (model.CreditTransaction, error) {
	args := s.Called(ctx, key, amount, description, idempotencyKey)
	return args.Get(0).(model.CreditTransaction), args.Error(1)
}

func (s *Service) RecordAdjustment(ctx context.Context, key model.CreditKey, amount decimal.Decimal, description string, idempotencyKey string) (model.CreditTransaction, error) {
	args := s.Called(ctx, key, amount, description, idempotencyKey)
	return args.Get(0).(model.CreditTransaction), args.Error(1)
}

func (s *Service) Balance(ctx context.Context, key model.CreditKey) (decimal.Decimal, error) {
	args := s.Called(ctx, key)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (s *Service) Statement(ctx context.Context, key model.CreditKey, limit int) ([]model.CreditTransaction, error) {
	args := s.Called(ctx, key, limit)
	return args.Get(0).([]model.CreditTransaction), args.Error(1)
}

func (s *Service) Drift(ctx context.Context, key model.CreditKey) (model.Drift, error) {
	args := s.Called(ctx, key)
	return args.Get(0).(model.Drift), args.Error(1)
}

func (s *Service) Reconcile(ctx context.Context, key model.CreditKey) (model.Drift, error) {
	args := s.Called(ctx, key)
	return args.Get(0).(model.Drift), args.Error(1)
}
