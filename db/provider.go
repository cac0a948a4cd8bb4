package db

// DatabaseProvider abstracts the low-level key/value operations so the
// stores work the same on every backend
type DatabaseProvider interface {
	// Get retrieves a value by key, nil when absent
	Get(key []byte) ([]byte, error)

	// GetBatch retrieves multiple values by keys; absent keys are left out
	GetBatch(keys [][]byte) (map[string][]byte, error)

	Put(key, value []byte) error

	Delete(key []byte) error

	Has(key []byte) (bool, error)

	Close() error

	// Batch returns a new batch for atomic operations
	Batch() DatabaseBatch
}

// IterableProvider extends DatabaseProvider with iteration capabilities
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix iterates over all key-value pairs with the given prefix.
	// The callback returns false to stop iteration.
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error
}

// DatabaseBatch provides atomic batch operations. Nothing is visible to
// readers until Write returns nil.
type DatabaseBatch interface {
	Put(key, value []byte)

	Delete(key []byte)

	// Write commits all operations in the batch
	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close() error
}
