package store

// Declare database key prefix for objects
const (
	PrefixState       = "state:"
	PrefixBatchStatus = "batch_status:"
	PrefixCommittedTx = "committed_tx:"
)
