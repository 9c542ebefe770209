package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payengine/internal/apperrors"
)

func amount(t *testing.T, raw int64) Amount {
	t.Helper()
	return AmountFromRaw(raw)
}

func TestNewAccount(t *testing.T) {
	account := NewAccount(1)

	require.Equal(t, uint16(1), account.ClientID())
	require.True(t, account.Available().IsZero())
	require.True(t, account.Held().IsZero())
	require.True(t, account.Total().IsZero())
	require.False(t, account.Locked())
	require.Equal(t, 0, account.DisputedCount())
}

func TestApplyDeposit(t *testing.T) {
	t.Run("increases available and total", func(t *testing.T) {
		account := NewAccount(1)

		require.NoError(t, account.ApplyDeposit(amount(t, 10_000)))

		require.Equal(t, int64(10_000), account.Available().Raw())
		require.Equal(t, int64(10_000), account.Total().Raw())
	})

	t.Run("zero amount fails", func(t *testing.T) {
		account := NewAccount(1)

		err := account.ApplyDeposit(Amount{})

		require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	})

	t.Run("negative amount fails", func(t *testing.T) {
		account := NewAccount(1)

		err := account.ApplyDeposit(amount(t, -100))

		require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	})

	t.Run("locked account fails unchanged", func(t *testing.T) {
		account := lockedAccount(t, 1)

		err := account.ApplyDeposit(amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrAccountLocked)
		require.True(t, account.Total().IsZero(), "account should be unchanged")
	})

	t.Run("available overflow fails", func(t *testing.T) {
		account := NewAccount(1)
		require.NoError(t, account.ApplyDeposit(amount(t, math.MaxInt64)))

		err := account.ApplyDeposit(amount(t, 1))

		require.ErrorIs(t, err, apperrors.ErrOverflow)
		require.Equal(t, int64(math.MaxInt64), account.Available().Raw(), "account should be unchanged")
	})

	t.Run("total overflow fails", func(t *testing.T) {
		// available+held must stay representable even when available alone fits
		account := NewAccount(1)
		require.NoError(t, account.ApplyDeposit(amount(t, math.MaxInt64)))
		require.NoError(t, account.ApplyDispute(7, amount(t, 10_000)))

		err := account.ApplyDeposit(amount(t, 10_000))

		require.ErrorIs(t, err, apperrors.ErrOverflow)
		require.Equal(t, int64(math.MaxInt64), account.Total().Raw())
	})
}

func TestApplyWithdrawal(t *testing.T) {
	t.Run("decreases available and total", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		require.NoError(t, account.ApplyWithdrawal(amount(t, 3_000)))

		require.Equal(t, int64(7_000), account.Available().Raw())
		require.Equal(t, int64(7_000), account.Total().Raw())
	})

	t.Run("exact balance leaves zero", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		require.NoError(t, account.ApplyWithdrawal(amount(t, 10_000)))

		require.True(t, account.Available().IsZero())
	})

	t.Run("insufficient funds fails unchanged", func(t *testing.T) {
		account := fundedAccount(t, 1, 1_000)

		err := account.ApplyWithdrawal(amount(t, 2_000))

		require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		require.Equal(t, int64(1_000), account.Available().Raw())
	})

	t.Run("zero amount fails", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		err := account.ApplyWithdrawal(Amount{})

		require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	})

	t.Run("locked account fails", func(t *testing.T) {
		account := lockedAccount(t, 1)

		err := account.ApplyWithdrawal(amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrAccountLocked)
	})
}

func TestApplyDispute(t *testing.T) {
	t.Run("moves funds to held", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		require.NoError(t, account.ApplyDispute(1, amount(t, 3_000)))

		require.Equal(t, int64(7_000), account.Available().Raw())
		require.Equal(t, int64(3_000), account.Held().Raw())
		require.Equal(t, int64(10_000), account.Total().Raw(), "total should not change")
		require.True(t, account.Disputed(1))
	})

	t.Run("insufficient available fails unchanged", func(t *testing.T) {
		account := fundedAccount(t, 1, 1_000)

		err := account.ApplyDispute(1, amount(t, 2_000))

		require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		require.Equal(t, int64(1_000), account.Available().Raw())
		require.True(t, account.Held().IsZero())
		require.False(t, account.Disputed(1))
	})

	t.Run("second dispute of same tx fails", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)
		require.NoError(t, account.ApplyDispute(1, amount(t, 1_000)))

		err := account.ApplyDispute(1, amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrAlreadyDisputed)
		require.Equal(t, int64(9_000), account.Available().Raw())
		require.Equal(t, int64(1_000), account.Held().Raw())
		require.Equal(t, 1, account.DisputedCount())
	})

	t.Run("locked account fails", func(t *testing.T) {
		account := lockedAccount(t, 1)

		err := account.ApplyDispute(1, amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrAccountLocked)
	})

	t.Run("multiple transactions disputable at once", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		require.NoError(t, account.ApplyDispute(1, amount(t, 1_000)))
		require.NoError(t, account.ApplyDispute(2, amount(t, 2_000)))
		require.NoError(t, account.ApplyDispute(3, amount(t, 3_000)))

		require.Equal(t, int64(4_000), account.Available().Raw())
		require.Equal(t, int64(6_000), account.Held().Raw())
		require.Equal(t, 3, account.DisputedCount())
	})
}

func TestApplyResolve(t *testing.T) {
	t.Run("releases held funds", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)
		require.NoError(t, account.ApplyDispute(1, amount(t, 3_000)))

		require.NoError(t, account.ApplyResolve(1, amount(t, 3_000)))

		require.Equal(t, int64(10_000), account.Available().Raw())
		require.True(t, account.Held().IsZero())
		require.False(t, account.Disputed(1))
	})

	t.Run("dispute then resolve restores the account exactly", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)
		before := account.Clone()

		require.NoError(t, account.ApplyDispute(42, amount(t, 4_000)))
		require.NoError(t, account.ApplyResolve(42, amount(t, 4_000)))

		require.Equal(t, before, account)
	})

	t.Run("not disputed fails", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		err := account.ApplyResolve(99, amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrNotDisputed)
	})

	t.Run("locked account fails", func(t *testing.T) {
		account := lockedAccount(t, 1)

		err := account.ApplyResolve(1, amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrAccountLocked)
	})
}

func TestApplyChargeback(t *testing.T) {
	t.Run("removes held funds and locks", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)
		require.NoError(t, account.ApplyDispute(1, amount(t, 3_000)))

		require.NoError(t, account.ApplyChargeback(1, amount(t, 3_000)))

		require.Equal(t, int64(7_000), account.Available().Raw(), "available should be untouched")
		require.True(t, account.Held().IsZero())
		require.Equal(t, int64(7_000), account.Total().Raw(), "total should shrink by the charged amount")
		require.True(t, account.Locked())
		require.False(t, account.Disputed(1))
	})

	t.Run("not disputed fails unlocked", func(t *testing.T) {
		account := fundedAccount(t, 1, 10_000)

		err := account.ApplyChargeback(99, amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrNotDisputed)
		require.False(t, account.Locked())
	})

	t.Run("locked account fails", func(t *testing.T) {
		account := lockedAccount(t, 1)

		err := account.ApplyChargeback(1, amount(t, 1_000))

		require.ErrorIs(t, err, apperrors.ErrAccountLocked)
	})
}

func TestLockedAccountRejectsEveryTransition(t *testing.T) {
	account := lockedAccount(t, 1)
	before := account.Clone()

	require.ErrorIs(t, account.ApplyDeposit(amount(t, 1_000)), apperrors.ErrAccountLocked)
	require.ErrorIs(t, account.ApplyWithdrawal(amount(t, 1_000)), apperrors.ErrAccountLocked)
	require.ErrorIs(t, account.ApplyDispute(9, amount(t, 1_000)), apperrors.ErrAccountLocked)
	require.ErrorIs(t, account.ApplyResolve(9, amount(t, 1_000)), apperrors.ErrAccountLocked)
	require.ErrorIs(t, account.ApplyChargeback(9, amount(t, 1_000)), apperrors.ErrAccountLocked)

	require.Equal(t, before, account, "locked account should never change")
}

func TestAccountCloneIsIndependent(t *testing.T) {
	account := fundedAccount(t, 1, 10_000)
	require.NoError(t, account.ApplyDispute(1, amount(t, 1_000)))

	clone := account.Clone()
	require.NoError(t, account.ApplyResolve(1, amount(t, 1_000)))

	require.True(t, clone.Disputed(1), "clone should keep its own dispute set")
	require.False(t, account.Disputed(1))
}

func TestAccountView(t *testing.T) {
	account := fundedAccount(t, 7, 10_000)
	require.NoError(t, account.ApplyDispute(1, amount(t, 4_000)))

	view := account.View()

	require.Equal(t, uint16(7), view.ClientID)
	require.Equal(t, int64(6_000), view.Available.Raw())
	require.Equal(t, int64(4_000), view.Held.Raw())
	require.Equal(t, int64(10_000), view.Total.Raw())
	require.False(t, view.Locked)
}

// fundedAccount returns an account credited with the given raw amount
func fundedAccount(t *testing.T, clientID uint16, raw int64) *Account {
	t.Helper()

	account := NewAccount(clientID)
	require.NoError(t, account.ApplyDeposit(AmountFromRaw(raw)))
	return account
}

// lockedAccount returns a locked account that went through a full
// deposit-dispute-chargeback cycle
func lockedAccount(t *testing.T, clientID uint16) *Account {
	t.Helper()

	account := fundedAccount(t, clientID, 5_000)
	require.NoError(t, account.ApplyDispute(1, AmountFromRaw(5_000)))
	require.NoError(t, account.ApplyChargeback(1, AmountFromRaw(5_000)))
	return account
}
