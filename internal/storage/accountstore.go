package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/nkiryanov/payengine/internal/egress"
	"github.com/nkiryanov/payengine/internal/models"
)

// numShards partitions the key space. Must be a power of two so the shard
// index is a cheap mask.
const numShards = 32

type accountShard struct {
	mu       sync.RWMutex
	accounts map[uint16]*models.Account
}

// AccountStore is a sharded in-memory store of accounts keyed by client id.
// Mutation happens only through entry handles; disjoint clients on different
// shards never contend, and there is no global lock.
type AccountStore struct {
	shards [numShards]accountShard
}

func NewAccountStore() *AccountStore {
	s := &AccountStore{}
	for i := range s.shards {
		s.shards[i].accounts = make(map[uint16]*models.Account)
	}
	return s
}

func (s *AccountStore) shard(clientID uint16) *accountShard {
	return &s.shards[clientID&(numShards-1)]
}

// AccountEntry is a handle scoped to a single client. It is the only legal
// path to mutation.
type AccountEntry struct {
	clientID uint16
	shard    *accountShard
}

// Entry returns a get-or-create handle for the client
func (s *AccountStore) Entry(clientID uint16) AccountEntry {
	return AccountEntry{clientID: clientID, shard: s.shard(clientID)}
}

// Update atomically applies fn to the account while holding the shard lock.
// The account is created on first use. fn runs against a copy which is
// committed only on success, so a failed update leaves the stored account
// exactly as it was.
func (e AccountEntry) Update(fn func(*models.Account) error) error {
	e.shard.mu.Lock()
	defer e.shard.mu.Unlock()

	account, ok := e.shard.accounts[e.clientID]
	if !ok {
		account = models.NewAccount(e.clientID)
	}

	next := account.Clone()
	if err := fn(next); err != nil {
		return err
	}

	e.shard.accounts[e.clientID] = next
	return nil
}

// Read returns a copy of the account, or a fresh zero-balance account if the
// client has never been seen
func (e AccountEntry) Read() *models.Account {
	e.shard.mu.RLock()
	defer e.shard.mu.RUnlock()

	if account, ok := e.shard.accounts[e.clientID]; ok {
		return account.Clone()
	}
	return models.NewAccount(e.clientID)
}

// Get returns a copy of the account if the client exists
func (s *AccountStore) Get(clientID uint16) (*models.Account, bool) {
	sh := s.shard(clientID)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	account, ok := sh.accounts[clientID]
	if !ok {
		return nil, false
	}
	return account.Clone(), true
}

// Len returns the number of known accounts
func (s *AccountStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.accounts)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshot streams every account to the sink in unspecified order.
//
// Shards are visited one at a time: rows are copied out under the shard's
// read lock and written with no lock held, so writers on other shards are
// never blocked and no lock spans a sink write. The result is a mixed
// instant: each row is internally consistent, but rows may reflect
// different moments.
func (s *AccountStore) Snapshot(ctx context.Context, sink egress.Sink) error {
	for i := range s.shards {
		sh := &s.shards[i]

		sh.mu.RLock()
		views := make([]models.AccountView, 0, len(sh.accounts))
		for _, account := range sh.accounts {
			views = append(views, account.View())
		}
		sh.mu.RUnlock()

		for _, view := range views {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sink.WriteAccount(ctx, view); err != nil {
				return fmt.Errorf("snapshot write for client %d: %w", view.ClientID, err)
			}
		}
	}

	return nil
}
