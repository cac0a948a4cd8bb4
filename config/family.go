package config

import (
	"fmt"

	"github.com/mezonai/simplewallet/address"
)

const (
	DefaultFamilyName    = "simplewallet"
	DefaultFamilyVersion = "1.0"
)

// Family identifies the transaction family shared by client and processor.
// It is built once at start and passed explicitly; fields are unexported so
// the derived namespace can not drift from the name.
type Family struct {
	name      string
	version   string
	namespace string
}

func NewFamily(name, version string) (Family, error) {
	if name == "" {
		return Family{}, fmt.Errorf("family name cannot be empty")
	}
	if version == "" {
		return Family{}, fmt.Errorf("family version cannot be empty")
	}
	return Family{
		name:      name,
		version:   version,
		namespace: address.Namespace(name),
	}, nil
}

// DefaultFamily returns the simplewallet 1.0 family
func DefaultFamily() Family {
	f, _ := NewFamily(DefaultFamilyName, DefaultFamilyVersion)
	return f
}

func (f Family) Name() string      { return f.name }
func (f Family) Version() string   { return f.version }
func (f Family) Namespace() string { return f.namespace }

// Address derives the account address of a public key inside this family
func (f Family) Address(publicKey string) string {
	return address.Derive(f.name, publicKey)
}

func (f Family) String() string {
	return fmt.Sprintf("%s/%s (%s)", f.name, f.version, f.namespace)
}
