// Package keystore resolves user names to the hex key material the wallet
// signs with. It never generates keys.
package keystore

import (
	"context"
	"errors"
	"fmt"

	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/signing"
)

var ErrKeyNotFound = errors.New("key not found")

type KeyStore interface {
	PrivateKey(ctx context.Context, user string) (string, error)
	PublicKey(ctx context.Context, user string) (string, error)
}

// LoadSigner builds the signing identity of user
func LoadSigner(ctx context.Context, ks KeyStore, user string) (*signing.Signer, error) {
	privHex, err := ks.PrivateKey(ctx, user)
	if err != nil {
		return nil, err
	}
	signer, err := signing.NewSignerFromHex(privHex)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeCredential, fmt.Sprintf("private key of %s is unusable", user), err)
	}
	return signer, nil
}

func notFound(user string, kind string) error {
	return werrors.Wrap(werrors.ErrCodeCredential,
		fmt.Sprintf("%s: %s key of %q", werrors.ErrMsgKeyNotFound, kind, user), ErrKeyNotFound)
}
