package store

import (
	"fmt"
	"sync"

	"github.com/mezonai/simplewallet/db"
	"github.com/mezonai/simplewallet/jsonx"
)

type BatchStatusCode string

const (
	BatchPending   BatchStatusCode = "PENDING"
	BatchCommitted BatchStatusCode = "COMMITTED"
	BatchInvalid   BatchStatusCode = "INVALID"
	BatchUnknown   BatchStatusCode = "UNKNOWN"
)

type InvalidTransaction struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BatchStatus is the lifecycle record of one submitted batch
type BatchStatus struct {
	ID                  string               `json:"id"`
	Status              BatchStatusCode      `json:"status"`
	InvalidTransactions []InvalidTransaction `json:"invalid_transactions,omitempty"`
}

type BatchStatusStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

func NewBatchStatusStore(dbProvider db.DatabaseProvider) (*BatchStatusStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &BatchStatusStore{dbProvider: dbProvider}, nil
}

func (bs *BatchStatusStore) Store(status *BatchStatus) error {
	data, err := jsonx.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal batch status: %w", err)
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if err := bs.dbProvider.Put(bs.getDbKey(status.ID), data); err != nil {
		return fmt.Errorf("failed to write batch status to db: %w", err)
	}
	return nil
}

// StoreBatch writes several statuses atomically
func (bs *BatchStatusStore) StoreBatch(statuses []*BatchStatus) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	batch := bs.dbProvider.Batch()
	defer batch.Close()
	for _, status := range statuses {
		data, err := jsonx.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal batch status: %w", err)
		}
		batch.Put(bs.getDbKey(status.ID), data)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write batch of statuses to database: %w", err)
	}
	return nil
}

// Get returns the status of id, UNKNOWN if it was never submitted
func (bs *BatchStatusStore) Get(id string) (*BatchStatus, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	data, err := bs.dbProvider.Get(bs.getDbKey(id))
	if err != nil {
		return nil, fmt.Errorf("could not get batch status %s from db: %w", id, err)
	}
	if data == nil {
		return &BatchStatus{ID: id, Status: BatchUnknown}, nil
	}
	var status BatchStatus
	if err := jsonx.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch status %s: %w", id, err)
	}
	return &status, nil
}

// GetMany keeps the order of ids
func (bs *BatchStatusStore) GetMany(ids []string) ([]*BatchStatus, error) {
	out := make([]*BatchStatus, 0, len(ids))
	for _, id := range ids {
		status, err := bs.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func (bs *BatchStatusStore) getDbKey(id string) []byte {
	return []byte(PrefixBatchStatus + id)
}
