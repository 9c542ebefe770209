package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payengine/internal/models"
)

func TestTransactionStoreInsertAndGet(t *testing.T) {
	store := NewTransactionStore()
	record := models.TransactionRecord{ClientID: 1, Amount: models.AmountFromRaw(10_000), Kind: models.TransactionDeposit}

	require.True(t, store.Insert(100, record))

	got, ok := store.Get(100)
	require.True(t, ok)
	require.Equal(t, record, got)
	require.True(t, store.Contains(100))
	require.Equal(t, 1, store.Len())
}

func TestTransactionStoreGetUnknown(t *testing.T) {
	store := NewTransactionStore()

	_, ok := store.Get(999)

	require.False(t, ok)
	require.False(t, store.Contains(999))
}

func TestTransactionStoreIsAppendOnly(t *testing.T) {
	store := NewTransactionStore()
	first := models.TransactionRecord{ClientID: 1, Amount: models.AmountFromRaw(10_000), Kind: models.TransactionDeposit}
	second := models.TransactionRecord{ClientID: 2, Amount: models.AmountFromRaw(999), Kind: models.TransactionWithdrawal}

	require.True(t, store.Insert(100, first))
	require.False(t, store.Insert(100, second), "duplicate insert should be rejected")

	got, ok := store.Get(100)
	require.True(t, ok)
	require.Equal(t, first, got, "the first record must win and never change")

	again, ok := store.Get(100)
	require.True(t, ok)
	require.Equal(t, got, again, "two reads of the same id must observe the same value")
}

func TestTransactionStoreConcurrentAccess(t *testing.T) {
	store := NewTransactionStore()

	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				txID := uint32(w*perWriter + i)
				record := models.TransactionRecord{ClientID: uint16(w), Amount: models.AmountFromRaw(int64(i)), Kind: models.TransactionDeposit}
				if !store.Insert(txID, record) {
					t.Error("unexpected duplicate for tx", txID)
					return
				}
				if _, ok := store.Get(txID); !ok {
					t.Error("just inserted tx not found", txID)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, writers*perWriter, store.Len())
}
