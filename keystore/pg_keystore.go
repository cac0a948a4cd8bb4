package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	_ "github.com/lib/pq"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/logx"
)

const (
	selectPublicKey  = `SELECT public_key FROM wallet_user_keys WHERE user_name=$1`
	selectPrivateKey = `SELECT enc_privkey FROM wallet_user_keys WHERE user_name=$1`
)

// PgKeyStore reads keys from the wallet_user_keys table:
//
//	user_name text primary key, public_key text, enc_privkey bytea
//
// enc_privkey is nonce||AES-256-GCM(raw private key).
type PgKeyStore struct {
	db   *sql.DB
	aead cipher.AEAD
}

// OpenPgKeyStore connects with a lib/pq DSN
func OpenPgKeyStore(dsn string, base64MasterKey string) (*PgKeyStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ks, err := NewPgKeyStore(db, base64MasterKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ks, nil
}

func NewPgKeyStore(db *sql.DB, base64MasterKey string) (*PgKeyStore, error) {
	aead, err := newAEAD(base64MasterKey)
	if err != nil {
		return nil, err
	}
	return &PgKeyStore{db: db, aead: aead}, nil
}

func newAEAD(base64MasterKey string) (cipher.AEAD, error) {
	mk, err := base64.StdEncoding.DecodeString(base64MasterKey)
	if err != nil {
		return nil, fmt.Errorf("master-key decode: %w", err)
	}
	if len(mk) != 32 {
		return nil, errors.New("master-key must be 32 bytes")
	}
	block, err := aes.NewCipher(mk)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(aead cipher.AEAD, plain []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return append(nonce, aead.Seal(nil, nonce, plain, nil)...), nil
}

func open(aead cipher.AEAD, ciphertext []byte) ([]byte, error) {
	ns := aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, errors.New("ciphertext too short")
	}
	return aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
}

func (p *PgKeyStore) PublicKey(ctx context.Context, user string) (string, error) {
	var pub string
	err := p.db.QueryRowContext(ctx, selectPublicKey, user).Scan(&pub)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(user, "pub")
	}
	if err != nil {
		logx.Error("KEYSTORE", "PublicKey query failed for", user, err)
		return "", werrors.Wrap(werrors.ErrCodeCredential, "key lookup failed", err)
	}
	return pub, nil
}

func (p *PgKeyStore) PrivateKey(ctx context.Context, user string) (string, error) {
	var enc []byte
	err := p.db.QueryRowContext(ctx, selectPrivateKey, user).Scan(&enc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(user, "priv")
	}
	if err != nil {
		logx.Error("KEYSTORE", "PrivateKey query failed for", user, err)
		return "", werrors.Wrap(werrors.ErrCodeCredential, "key lookup failed", err)
	}
	raw, err := open(p.aead, enc)
	if err != nil {
		return "", werrors.Wrap(werrors.ErrCodeCredential, "could not decrypt private key of "+user, err)
	}
	return hex.EncodeToString(raw), nil
}

func (p *PgKeyStore) Close() error {
	return p.db.Close()
}
