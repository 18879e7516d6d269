package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/virtualwallet/backend/internal/bankcards"
	"github.com/virtualwallet/backend/internal/models"
)

type MockCanceller struct {
	mock.Mock
}

func (m *MockCanceller) CancelTransaction(ctx context.Context, txID int64) (bool, error) {
	args := m.Called(ctx, txID)
	return args.Bool(0), args.Error(1)
}

type MockHistoryPager struct {
	mock.Mock
}

func (m *MockHistoryPager) Page(ctx context.Context, f models.TransactionFilter) (*models.TransactionPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionPage), args.Error(1)
}

type MockCardFunding struct {
	mock.Mock
}

func (m *MockCardFunding) Lookup(ctx context.Context, card models.CardDetails) (*bankcards.CardLookup, error) {
	args := m.Called(ctx, card)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankcards.CardLookup), args.Error(1)
}

func (m *MockCardFunding) Withdraw(ctx context.Context, lookupHash string, amount decimal.Decimal, currencyCode string) (*bankcards.Transfer, error) {
	args := m.Called(ctx, lookupHash, amount.String(), currencyCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankcards.Transfer), args.Error(1)
}

func (m *MockCardFunding) Deposit(ctx context.Context, lookupHash string, amount decimal.Decimal, currencyCode string) (*bankcards.Transfer, error) {
	args := m.Called(ctx, lookupHash, amount.String(), currencyCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankcards.Transfer), args.Error(1)
}
