package store

import (
	"fmt"

	"github.com/mezonai/simplewallet/config"
	"github.com/mezonai/simplewallet/db"
	"github.com/mezonai/simplewallet/logx"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	LevelDBStoreType StoreType = "leveldb"

	// MemoryStoreType is LevelDB on memory storage, lost on exit
	MemoryStoreType StoreType = "memory"

	BoltStoreType   StoreType = "bolt"
	PebbleStoreType StoreType = "pebble"
	RedisStoreType  StoreType = "redis"
)

// ValidateConfig validates the store configuration
func ValidateConfig(sc *config.StoreConfig) error {
	if sc == nil {
		return fmt.Errorf("config cannot be nil")
	}
	switch StoreType(sc.Type) {
	case LevelDBStoreType, BoltStoreType, PebbleStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty for %s store", sc.Type)
		}
		return nil
	case RedisStoreType:
		if sc.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		return nil
	case MemoryStoreType:
		return nil
	case "":
		return fmt.Errorf("store type cannot be empty")
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// CreateProvider creates a database provider based on the configuration
func CreateProvider(sc *config.StoreConfig) (db.IterableProvider, error) {
	if err := ValidateConfig(sc); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		provider db.IterableProvider
		err      error
	)
	switch StoreType(sc.Type) {
	case LevelDBStoreType:
		var p *db.LevelDBProvider
		if p, err = db.NewLevelDBProvider(sc.Directory); err == nil {
			provider = p
		}
	case MemoryStoreType:
		var p *db.LevelDBProvider
		if p, err = db.NewLevelDBMemProvider(); err == nil {
			provider = p
		}
	case BoltStoreType:
		var p *db.BoltProvider
		if p, err = db.NewBoltProvider(sc.Directory); err == nil {
			provider = p
		}
	case PebbleStoreType:
		var p *db.PebbleProvider
		if p, err = db.NewPebbleProvider(sc.Directory); err == nil {
			provider = p
		}
	case RedisStoreType:
		var p *db.RedisProvider
		if p, err = db.NewRedisProvider(sc.RedisAddr, sc.RedisDB); err == nil {
			provider = p
		}
	default:
		err = fmt.Errorf("unsupported store type: %s", sc.Type)
	}
	if err != nil {
		return nil, err
	}
	logx.Info("STORE", fmt.Sprintf("Opened %s store", sc.Type))
	return provider, nil
}

// Stores bundles the stores sharing one provider
type Stores struct {
	State    *StateStore
	Statuses *BatchStatusStore
	provider db.DatabaseProvider
}

// Open creates the provider and both stores on it
func Open(sc *config.StoreConfig) (*Stores, error) {
	provider, err := CreateProvider(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return NewStores(provider)
}

func NewStores(provider db.DatabaseProvider) (*Stores, error) {
	state, err := NewStateStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	statuses, err := NewBatchStatusStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch status store: %w", err)
	}
	return &Stores{State: state, Statuses: statuses, provider: provider}, nil
}

func (s *Stores) Close() error {
	return s.provider.Close()
}
