package database

import (
	"github.com/stretchr/testify/mock"
)

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockLedgerRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockLedgerRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockLedgerRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockLedgerRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockLedgerRepository) CreateLike(fromAccountId, toAccountId int) error {
	args := m.Called(fromAccountId, toAccountId)
	return args.Error(0)
}
func (m *MockLedgerRepository) LikeExists(fromAccountId, toAccountId int) bool {
	args := m.Called(fromAccountId, toAccountId)
	return args.Bool(0)
}
func (m *MockLedgerRepository) CreateMatch(accountA, accountB int) (Match, error) {
	args := m.Called(accountA, accountB)
	return args.Get(0).(Match), args.Error(1)
}
func (m *MockLedgerRepository) GetMatchByAccounts(accountA, accountB int) (Match, error) {
	args := m.Called(accountA, accountB)
	return args.Get(0).(Match), args.Error(1)
}
