// Package processor holds the wallet state-transition engine and the
// handler descriptor the ledger uses to route transactions to it.
package processor

import (
	"github.com/mezonai/simplewallet/transaction"
)

// StateAccessor is the ledger's handle on versioned key/value state.
// SetState must commit all entries of one call atomically and return the
// addresses it wrote.
type StateAccessor interface {
	GetState(addresses []string) (map[string][]byte, error)
	SetState(entries map[string][]byte) ([]string, error)
}

// Request is what the ledger hands to a handler for one transaction
type Request struct {
	Header    *transaction.TransactionHeader
	Payload   []byte
	Signature string
}

// ApplyFunc validates and applies one transaction against state
type ApplyFunc func(req *Request, state StateAccessor) error

// TransactionHandler registers an ApplyFunc against a family descriptor
type TransactionHandler struct {
	FamilyName     string
	FamilyVersions []string
	Namespaces     []string
	Apply          ApplyFunc
}

// Supports reports whether the handler serves the given family name and version
func (h TransactionHandler) Supports(name, version string) bool {
	if h.FamilyName != name {
		return false
	}
	for _, v := range h.FamilyVersions {
		if v == version {
			return true
		}
	}
	return false
}
