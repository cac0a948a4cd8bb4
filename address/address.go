// Package address derives ledger state addresses from a family tag and key material.
package address

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

const (
	NamespaceLength = 6
	SuffixLength    = 64
	Length          = NamespaceLength + SuffixLength
)

func hexdigest(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Namespace returns the 6 hex char prefix owned by the family tag
func Namespace(tag string) string {
	return hexdigest(tag)[:NamespaceLength]
}

// Derive maps a family tag and a public key (hex text) to a 70 hex char address.
// The suffix is the last 64 hex chars of SHA-512(keyMaterial); client and processor
// must both go through here so their addresses agree.
func Derive(tag, keyMaterial string) string {
	digest := hexdigest(keyMaterial)
	return Namespace(tag) + digest[len(digest)-SuffixLength:]
}

// Validate checks that addr is a well-formed address
func Validate(addr string) error {
	if len(addr) != Length {
		return fmt.Errorf("address must be %d hex characters, got %d", Length, len(addr))
	}
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return fmt.Errorf("address contains non lowercase-hex character %q", c)
		}
	}
	return nil
}

// InNamespace reports whether addr lives under the given namespace prefix
func InNamespace(addr, namespace string) bool {
	return len(addr) >= len(namespace) && addr[:len(namespace)] == namespace
}
