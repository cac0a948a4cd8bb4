package db

import (
	"fmt"
	"sort"

	"github.com/mezonai/simplewallet/logx"
)

// DBTxManager runs a change spanning several keys as one batch of the
// shared DatabaseProvider
type DBTxManager struct {
	provider DatabaseProvider
}

func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch commits the batch if fn returns nil and discards it otherwise
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer func() {
		if err := batch.Close(); err != nil {
			logx.Error("TX_MANAGER", "Failed to close batch:", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

// PutAll writes every entry in one batch and returns the keys written, sorted.
// keyFn maps an entry name to its database key.
func (tm *DBTxManager) PutAll(entries map[string][]byte, keyFn func(name string) []byte) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	err := tm.WithBatch(func(batch DatabaseBatch) error {
		for _, name := range names {
			batch.Put(keyFn(name), entries[name])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
