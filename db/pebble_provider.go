package db

import (
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleProvider implements IterableProvider on Pebble
type PebbleProvider struct {
	once sync.Once
	db   *pebble.DB
}

func NewPebbleProvider(directory string) (*PebbleProvider, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MaxOpenFiles: 500,
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(directory, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open Pebble: %w", err)
	}
	return &PebbleProvider{db: db}, nil
}

func (p *PebbleProvider) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	// value is only valid until closer.Close()
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *PebbleProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	snap := p.db.NewSnapshot()
	defer snap.Close()

	for _, key := range keys {
		value, closer, err := snap.Get(key)
		if err != nil {
			if err == pebble.ErrNotFound {
				continue
			}
			return nil, err
		}
		v := make([]byte, len(value))
		copy(v, value)
		closer.Close()
		result[string(key)] = v
	}
	return result, nil
}

func (p *PebbleProvider) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleProvider) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleProvider) Has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (p *PebbleProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

func (p *PebbleProvider) Batch() DatabaseBatch {
	return &PebbleBatch{db: p.db, batch: p.db.NewBatch()}
}

func (p *PebbleProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// PebbleBatch implements DatabaseBatch for Pebble
type PebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (b *PebbleBatch) Put(key, value []byte) {
	_ = b.batch.Set(key, value, nil)
}

func (b *PebbleBatch) Delete(key []byte) {
	_ = b.batch.Delete(key, nil)
}

func (b *PebbleBatch) Write() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *PebbleBatch) Reset() {
	b.batch.Reset()
}

func (b *PebbleBatch) Close() error {
	return b.batch.Close()
}
