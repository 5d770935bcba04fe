// Package wallet provides an in-memory balance ledger keyed by address.
package wallet

import (
	"sync"

	"github.com/rs/zerolog"
)

// Ledger tracks balances in memory. Balances are created on first use with a
// zero balance, and nothing here persists across restarts.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]float64
	log      zerolog.Logger
}

// NewLedger creates a new in-memory ledger
func NewLedger(log zerolog.Logger) *Ledger {
	return &Ledger{
		balances: make(map[string]float64),
		log:      log.With().Str("component", "wallet").Logger(),
	}
}

// BalanceOf returns the current balance of an address. Unknown addresses have
// a zero balance.
func (l *Ledger) BalanceOf(address string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address]
}

// Deposit adds funds to an address.
func (l *Ledger) Deposit(address string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] += amount

	l.log.Debug().
		Str("address", address).
		Float64("amount", amount).
		Float64("balance", l.balances[address]).
		Msg("Deposited funds")
}

// Withdraw removes funds from an address unconditionally. The balance may go
// negative; callers that need a funds check use WithdrawIfAvailable.
func (l *Ledger) Withdraw(address string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] -= amount

	l.log.Debug().
		Str("address", address).
		Float64("amount", amount).
		Float64("balance", l.balances[address]).
		Msg("Withdrew funds")
}

// WithdrawIfAvailable atomically withdraws amount when the balance covers it.
// The check and the decrement happen under one lock, so concurrent callers
// cannot both spend the same funds.
func (l *Ledger) WithdrawIfAvailable(address string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[address] < amount {
		return false
	}

	l.balances[address] -= amount

	l.log.Debug().
		Str("address", address).
		Float64("amount", amount).
		Float64("balance", l.balances[address]).
		Msg("Withdrew funds")

	return true
}
