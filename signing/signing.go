// Package signing holds the secp256k1 signing identity used to authorize transactions.
package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	PrivateKeySize = 32
	SignatureSize  = 64
)

var (
	ErrInvalidPrivateKey = errors.New("signing: invalid secp256k1 private key")
	ErrInvalidPublicKey  = errors.New("signing: invalid secp256k1 public key")
)

// Signer is a secp256k1 key pair. The private half never leaves the process.
type Signer struct {
	priv   *secp256k1.PrivateKey
	pubHex string
}

// NewSignerFromHex parses a hex encoded 32 byte private key
func NewSignerFromHex(privHex string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return NewSigner(raw)
}

func NewSigner(raw []byte) (*Signer, error) {
	if len(raw) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero key", ErrInvalidPrivateKey)
	}
	return &Signer{
		priv:   priv,
		pubHex: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}, nil
}

// PublicKey returns the compressed public key as hex
func (s *Signer) PublicKey() string {
	return s.pubHex
}

// Sign returns the hex encoded 64 byte R||S signature over SHA-256(message)
func (s *Signer) Sign(message []byte) string {
	hash := sha256.Sum256(message)
	compact := ecdsa.SignCompact(s.priv, hash[:], true)
	// drop the recovery byte
	return hex.EncodeToString(compact[1:])
}

// ParsePublicKey validates a hex encoded secp256k1 public key
func ParsePublicKey(pubHex string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// Verify checks a signature produced by Signer.Sign
func Verify(pubHex, sigHex string, message []byte) bool {
	pub, err := ParsePublicKey(pubHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != SignatureSize {
		return false
	}
	var r, sc secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := sc.SetByteSlice(sig[32:]); overflow || sc.IsZero() {
		return false
	}
	hash := sha256.Sum256(message)
	return ecdsa.NewSignature(&r, &sc).Verify(hash[:], pub)
}
