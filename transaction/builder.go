package transaction

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/mezonai/simplewallet/config"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/payload"
	"github.com/mezonai/simplewallet/signing"
)

// PublicKeyLookup resolves a user identifier to a hex public key
type PublicKeyLookup interface {
	PublicKey(ctx context.Context, user string) (string, error)
}

// Builder turns a wallet action into a signed, ledger-ready BatchList
type Builder struct {
	family config.Family
	keys   PublicKeyLookup
	nonce  func() string
}

func NewBuilder(family config.Family, keys PublicKeyLookup) *Builder {
	return &Builder{
		family: family,
		keys:   keys,
		nonce:  uuid.NewString,
	}
}

func sha512Hex(b []byte) string {
	sum := sha512.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// Build resolves counterpartyUser (transfer only) through the key lookup and signs the result.
// The lookup happens before any signing.
func (b *Builder) Build(ctx context.Context, identity *signing.Signer, action payload.Action, amount *uint256.Int, counterpartyUser string) (*BatchList, error) {
	if identity == nil {
		return nil, werrors.NewError(werrors.ErrCodeCredential, "signing identity is not loaded")
	}
	counterpartyKey := ""
	if action == payload.ActionTransfer {
		if counterpartyUser == "" {
			return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidCounterpart)
		}
		if b.keys == nil {
			return nil, werrors.NewError(werrors.ErrCodeNotFound, "no key lookup configured for counterparty "+counterpartyUser)
		}
		key, err := b.keys.PublicKey(ctx, counterpartyUser)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCodeNotFound, "could not resolve counterparty "+counterpartyUser, err)
		}
		counterpartyKey = key
	}
	return b.BuildForPublicKey(identity, action, amount, counterpartyKey)
}

// BuildForPublicKey is Build with an already resolved counterparty public key
func (b *Builder) BuildForPublicKey(identity *signing.Signer, action payload.Action, amount *uint256.Int, counterpartyKey string) (*BatchList, error) {
	if identity == nil {
		return nil, werrors.NewError(werrors.ErrCodeCredential, "signing identity is not loaded")
	}
	switch action {
	case payload.ActionDeposit, payload.ActionWithdraw, payload.ActionTransfer:
	case payload.ActionBalance:
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, "balance is a state query, not a transaction")
	default:
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, fmt.Sprintf("%s: %q", werrors.ErrMsgUnknownAction, action))
	}
	if amount == nil || amount.IsZero() {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidAmount)
	}

	publicKey := identity.PublicKey()
	self := b.family.Address(publicKey)
	addresses := []string{self}
	if action == payload.ActionTransfer {
		if _, err := signing.ParsePublicKey(counterpartyKey); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidCounterpart, err)
		}
		addresses = append(addresses, b.family.Address(counterpartyKey))
	}

	encoded, err := payload.Encode(action, amount, counterpartyKey)
	if err != nil {
		return nil, err
	}

	header := &TransactionHeader{
		BatcherPublicKey: publicKey,
		FamilyName:       b.family.Name(),
		FamilyVersion:    b.family.Version(),
		Inputs:           addresses,
		Outputs:          append([]string(nil), addresses...),
		Nonce:            b.nonce(),
		PayloadSha512:    sha512Hex(encoded),
		SignerPublicKey:  publicKey,
	}
	headerBytes := header.Marshal()
	tx := &Transaction{
		Header:          headerBytes,
		HeaderSignature: identity.Sign(headerBytes),
		Payload:         encoded,
	}

	batchHeaderBytes := (&BatchHeader{
		SignerPublicKey: publicKey,
		TransactionIDs:  []string{tx.ID()},
	}).Marshal()
	batch := &Batch{
		Header:          batchHeaderBytes,
		HeaderSignature: identity.Sign(batchHeaderBytes),
		Transactions:    []*Transaction{tx},
	}

	logx.Debug("BUILDER", fmt.Sprintf("Built %s batch %s for %s", action, batch.ID(), self))
	return &BatchList{Batches: []*Batch{batch}}, nil
}
