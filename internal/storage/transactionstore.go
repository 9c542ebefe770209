package storage

import (
	"sync"

	"github.com/nkiryanov/payengine/internal/models"
)

type transactionShard struct {
	mu      sync.RWMutex
	records map[uint32]models.TransactionRecord
}

// TransactionStore is an append-only sharded store of transaction records
// keyed by transaction id. Records are never mutated or removed; Get hands
// out value copies only.
type TransactionStore struct {
	shards [numShards]transactionShard
}

func NewTransactionStore() *TransactionStore {
	s := &TransactionStore{}
	for i := range s.shards {
		s.shards[i].records = make(map[uint32]models.TransactionRecord)
	}
	return s
}

func (s *TransactionStore) shard(txID uint32) *transactionShard {
	return &s.shards[txID&(numShards-1)]
}

// Insert stores the record unless the id is already known.
// Returns false without touching the existing record on a duplicate.
func (s *TransactionStore) Insert(txID uint32, record models.TransactionRecord) bool {
	sh := s.shard(txID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[txID]; ok {
		return false
	}
	sh.records[txID] = record
	return true
}

// Get returns a copy of the record for the transaction id
func (s *TransactionStore) Get(txID uint32) (models.TransactionRecord, bool) {
	sh := s.shard(txID)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	record, ok := sh.records[txID]
	return record, ok
}

// Contains reports whether the transaction id is known
func (s *TransactionStore) Contains(txID uint32) bool {
	sh := s.shard(txID)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	_, ok := sh.records[txID]
	return ok
}

// Len returns the number of stored records
func (s *TransactionStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}
