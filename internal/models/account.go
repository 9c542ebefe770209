package models

import (
	"github.com/nkiryanov/payengine/internal/apperrors"
)

// Account is the per-client ledger state. Fields are unexported so the only
// way to change balances is through the Apply* transitions, which keep the
// invariants: available >= 0, held >= 0, available+held never exceeds the
// int64 range, and a locked account never changes again.
type Account struct {
	clientID  uint16
	available Amount
	held      Amount
	locked    bool
	disputed  map[uint32]struct{}
}

// AccountView is an exported snapshot row of one account.
// Total is derived at view time, it is never stored.
type AccountView struct {
	ClientID  uint16 `json:"client"`
	Available Amount `json:"available"`
	Held      Amount `json:"held"`
	Total     Amount `json:"total"`
	Locked    bool   `json:"locked"`
}

// NewAccount creates an account with zero balances
func NewAccount(clientID uint16) *Account {
	return &Account{
		clientID: clientID,
		disputed: make(map[uint32]struct{}),
	}
}

func (a *Account) ClientID() uint16  { return a.clientID }
func (a *Account) Available() Amount { return a.available }
func (a *Account) Held() Amount      { return a.held }
func (a *Account) Locked() bool      { return a.locked }

// Total returns available + held. The transitions guarantee the sum fits
// in an int64, so the addition cannot wrap.
func (a *Account) Total() Amount {
	return AmountFromRaw(a.available.raw + a.held.raw)
}

// Disputed reports whether the given transaction is currently under dispute
func (a *Account) Disputed(txID uint32) bool {
	_, ok := a.disputed[txID]
	return ok
}

// DisputedCount returns the number of open disputes
func (a *Account) DisputedCount() int {
	return len(a.disputed)
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	disputed := make(map[uint32]struct{}, len(a.disputed))
	for txID := range a.disputed {
		disputed[txID] = struct{}{}
	}

	return &Account{
		clientID:  a.clientID,
		available: a.available,
		held:      a.held,
		locked:    a.locked,
		disputed:  disputed,
	}
}

// View returns the snapshot row for this account
func (a *Account) View() AccountView {
	return AccountView{
		ClientID:  a.clientID,
		Available: a.available,
		Held:      a.held,
		Total:     a.Total(),
		Locked:    a.locked,
	}
}

// ApplyDeposit credits available funds.
// Errors: ErrAccountLocked, ErrInvalidAmount, ErrOverflow.
func (a *Account) ApplyDeposit(amount Amount) error {
	if a.locked {
		return apperrors.ErrAccountLocked
	}
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}

	available, err := a.available.CheckedAdd(amount)
	if err != nil {
		return err
	}
	// Keep available+held representable
	if _, err := available.CheckedAdd(a.held); err != nil {
		return err
	}

	a.available = available
	return nil
}

// ApplyWithdrawal debits available funds.
// Errors: ErrAccountLocked, ErrInvalidAmount, ErrInsufficientFunds, ErrOverflow.
func (a *Account) ApplyWithdrawal(amount Amount) error {
	if a.locked {
		return apperrors.ErrAccountLocked
	}
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if a.available.Cmp(amount) < 0 {
		return apperrors.ErrInsufficientFunds
	}

	available, err := a.available.CheckedSub(amount)
	if err != nil {
		return err
	}

	a.available = available
	return nil
}

// ApplyDispute moves the transaction amount from available to held and marks
// the transaction disputed. A dispute is rejected when intervening
// withdrawals drained available below the disputed amount.
// Errors: ErrAccountLocked, ErrAlreadyDisputed, ErrInsufficientFunds, ErrOverflow.
func (a *Account) ApplyDispute(txID uint32, amount Amount) error {
	if a.locked {
		return apperrors.ErrAccountLocked
	}
	if a.Disputed(txID) {
		return apperrors.ErrAlreadyDisputed
	}
	if a.available.Cmp(amount) < 0 {
		return apperrors.ErrInsufficientFunds
	}

	available, err := a.available.CheckedSub(amount)
	if err != nil {
		return err
	}
	held, err := a.held.CheckedAdd(amount)
	if err != nil {
		return err
	}

	a.available = available
	a.held = held
	a.disputed[txID] = struct{}{}
	return nil
}

// ApplyResolve releases held funds back to available and closes the dispute.
// Errors: ErrAccountLocked, ErrNotDisputed, ErrInsufficientFunds, ErrOverflow.
func (a *Account) ApplyResolve(txID uint32, amount Amount) error {
	if a.locked {
		return apperrors.ErrAccountLocked
	}
	if !a.Disputed(txID) {
		return apperrors.ErrNotDisputed
	}
	if a.held.Cmp(amount) < 0 {
		return apperrors.ErrInsufficientFunds
	}

	held, err := a.held.CheckedSub(amount)
	if err != nil {
		return err
	}
	available, err := a.available.CheckedAdd(amount)
	if err != nil {
		return err
	}

	a.held = held
	a.available = available
	delete(a.disputed, txID)
	return nil
}

// ApplyChargeback removes held funds permanently, closes the dispute and
// locks the account. Locking is irreversible.
// Errors: ErrAccountLocked, ErrNotDisputed, ErrInsufficientFunds, ErrOverflow.
func (a *Account) ApplyChargeback(txID uint32, amount Amount) error {
	if a.locked {
		return apperrors.ErrAccountLocked
	}
	if !a.Disputed(txID) {
		return apperrors.ErrNotDisputed
	}
	if a.held.Cmp(amount) < 0 {
		return apperrors.ErrInsufficientFunds
	}

	held, err := a.held.CheckedSub(amount)
	if err != nil {
		return err
	}

	a.held = held
	a.locked = true
	delete(a.disputed, txID)
	return nil
}
