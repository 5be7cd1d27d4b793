// Package accounts provides an in-memory implementation of
// domain.AccountsManager for tests and local wiring — the real margin
// math is an out-of-scope collaborator (spec §1).
//
// Grounded on the teacher's internal/testing/mocks.go mutex+Set*
// pattern, same as internal/cache.Fake.
package accounts

import (
	"errors"
	"sync"

	"github.com/nxtlabs/portfolio-core/internal/domain"
)

// ErrNotConfigured is returned by the fake's Update* methods when no
// canned AccountState has been registered via SetResult for the
// account, to make unconfigured-fixture bugs loud in tests rather than
// silently returning a zero AccountState.
var ErrNotConfigured = errors.New("accounts: no result configured")

// Fake is an in-memory, mutex-guarded AccountsManager.
type Fake struct {
	mu      sync.Mutex
	results map[domain.AccountID]domain.AccountState
	err     error

	ordersCalls    []UpdateOrdersCall
	positionsCalls []UpdatePositionsCall
	fillCalls      []domain.OrderEvent
}

// UpdateOrdersCall records one UpdateOrders invocation for assertions.
type UpdateOrdersCall struct {
	AccountID  domain.AccountID
	InstrumentID domain.InstrumentID
	OpenOrders []domain.OpenOrder
}

// UpdatePositionsCall records one UpdatePositions invocation for assertions.
type UpdatePositionsCall struct {
	AccountID      domain.AccountID
	InstrumentID   domain.InstrumentID
	OpenPositions  []domain.Position
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{results: make(map[domain.AccountID]domain.AccountState)}
}

// SetResult registers the AccountState to return for accountID on any
// subsequent Update* call.
func (f *Fake) SetResult(accountID domain.AccountID, state domain.AccountState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[accountID] = state
}

// SetError forces every subsequent Update* call to fail with err.
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// OrdersCalls returns the recorded UpdateOrders invocations.
func (f *Fake) OrdersCalls() []UpdateOrdersCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UpdateOrdersCall(nil), f.ordersCalls...)
}

// PositionsCalls returns the recorded UpdatePositions invocations.
func (f *Fake) PositionsCalls() []UpdatePositionsCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UpdatePositionsCall(nil), f.positionsCalls...)
}

// FillCalls returns the recorded UpdateBalancesOnFill invocations.
func (f *Fake) FillCalls() []domain.OrderEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderEvent(nil), f.fillCalls...)
}

// UpdateOrders implements domain.AccountsManager.
func (f *Fake) UpdateOrders(accountID domain.AccountID, id domain.InstrumentID, openOrders []domain.OpenOrder) (domain.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ordersCalls = append(f.ordersCalls, UpdateOrdersCall{accountID, id, openOrders})
	if f.err != nil {
		return domain.AccountState{}, f.err
	}
	state, ok := f.results[accountID]
	if !ok {
		return domain.AccountState{}, ErrNotConfigured
	}
	return state, nil
}

// UpdatePositions implements domain.AccountsManager.
func (f *Fake) UpdatePositions(accountID domain.AccountID, id domain.InstrumentID, openPositions []domain.Position) (domain.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positionsCalls = append(f.positionsCalls, UpdatePositionsCall{accountID, id, openPositions})
	if f.err != nil {
		return domain.AccountState{}, f.err
	}
	state, ok := f.results[accountID]
	if !ok {
		return domain.AccountState{}, ErrNotConfigured
	}
	return state, nil
}

// UpdateBalancesOnFill implements domain.AccountsManager.
func (f *Fake) UpdateBalancesOnFill(accountID domain.AccountID, fill domain.OrderEvent) (domain.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillCalls = append(f.fillCalls, fill)
	if f.err != nil {
		return domain.AccountState{}, f.err
	}
	state, ok := f.results[accountID]
	if !ok {
		return domain.AccountState{}, ErrNotConfigured
	}
	return state, nil
}
