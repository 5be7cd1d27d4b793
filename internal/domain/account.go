package domain

import "github.com/nxtlabs/portfolio-core/internal/money"

// AccountType classifies an account's margin treatment (spec §3).
type AccountType int

const (
	AccountTypeCash AccountType = iota
	AccountTypeMargin
)

func (a AccountType) String() string {
	if a == AccountTypeMargin {
		return "MARGIN"
	}
	return "CASH"
}

// AccountID identifies an account. A venue currently maps to exactly
// one account in this core (spec §6 query surface is keyed by venue).
type AccountID string

// AccountState is the result of the last applied account-state event:
// balances, margins and an event ID for idempotence checks
// (spec §3, §8 "applying the same AccountState event twice... yields
// the same Account state as applying it once").
type AccountState struct {
	AccountID      AccountID
	EventID        string // dedupe key; re-applying the same EventID is a no-op
	BalancesLocked map[money.Currency]money.Money
	MarginsInit    map[money.Currency]money.Money // nil for CASH accounts
	MarginsMaint   map[money.Currency]money.Money // nil for CASH accounts
}

// Account owns a base currency, a classification, and the result of the
// last applied AccountState (spec §3).
type Account struct {
	ID                    AccountID
	Venue                 string
	BaseCurrency          money.Currency // money.None if unset
	Type                  AccountType
	CalculateAccountState bool
	LastEventID           string
	State                 AccountState
}

// Apply applies an AccountState event, idempotently: re-applying an
// event already recorded by EventID is a no-op, matching the cache's
// idempotent apply semantics (spec §8).
func (a *Account) Apply(ev AccountState) {
	if ev.EventID != "" && ev.EventID == a.LastEventID {
		return
	}
	a.State = ev
	a.LastEventID = ev.EventID
}
