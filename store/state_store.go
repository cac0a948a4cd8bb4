package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mezonai/simplewallet/db"
)

// StateStore persists ledger state as address -> raw bytes
type StateStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
	txManager  *db.DBTxManager
}

func NewStateStore(dbProvider db.DatabaseProvider) (*StateStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &StateStore{
		dbProvider: dbProvider,
		txManager:  db.NewDBTxManager(dbProvider),
	}, nil
}

// Get returns the value at addr, nil if there is none
func (ss *StateStore) Get(addr string) ([]byte, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	data, err := ss.dbProvider.Get(ss.getDbKey(addr))
	if err != nil {
		return nil, fmt.Errorf("could not get state %s from db: %w", addr, err)
	}
	return data, nil
}

// GetState returns the values of addresses; absent addresses are left out
func (ss *StateStore) GetState(addresses []string) (map[string][]byte, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	keys := make([][]byte, 0, len(addresses))
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		keys = append(keys, ss.getDbKey(addr))
	}
	raw, err := ss.dbProvider.GetBatch(keys)
	if err != nil {
		return nil, fmt.Errorf("could not read state batch: %w", err)
	}

	result := make(map[string][]byte, len(raw))
	for k, v := range raw {
		result[strings.TrimPrefix(k, PrefixState)] = v
	}
	return result, nil
}

// Apply writes all entries in one database batch and returns the written addresses
func (ss *StateStore) Apply(entries map[string][]byte) ([]string, error) {
	return ss.Commit(entries, nil)
}

// Commit writes entries and marks txIDs as committed in one database batch.
// It returns the written addresses, sorted.
func (ss *StateStore) Commit(entries map[string][]byte, txIDs []string) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if len(txIDs) == 0 {
		written, err := ss.txManager.PutAll(entries, func(addr string) []byte {
			return ss.getDbKey(addr)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write state batch: %w", err)
		}
		return written, nil
	}

	written := make([]string, 0, len(entries))
	for addr := range entries {
		written = append(written, addr)
	}
	sort.Strings(written)

	err := ss.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		for _, addr := range written {
			batch.Put(ss.getDbKey(addr), entries[addr])
		}
		for _, id := range txIDs {
			batch.Put(committedTxKey(id), []byte{1})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write state batch: %w", err)
	}
	return written, nil
}

// TxCommitted reports whether a transaction id was part of a committed batch
func (ss *StateStore) TxCommitted(id string) (bool, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	ok, err := ss.dbProvider.Has(committedTxKey(id))
	if err != nil {
		return false, fmt.Errorf("could not look up transaction %s: %w", id, err)
	}
	return ok, nil
}

// List walks every entry whose address starts with prefix. It needs an
// iterable backend.
func (ss *StateStore) List(prefix string, fn func(addr string, data []byte) bool) error {
	iterable, ok := ss.dbProvider.(db.IterableProvider)
	if !ok {
		return fmt.Errorf("state backend does not support iteration")
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return iterable.IteratePrefix(ss.getDbKey(prefix), func(key, value []byte) bool {
		return fn(strings.TrimPrefix(string(key), PrefixState), append([]byte{}, value...))
	})
}

func (ss *StateStore) getDbKey(addr string) []byte {
	return []byte(PrefixState + addr)
}

func committedTxKey(id string) []byte {
	return []byte(PrefixCommittedTx + id)
}
