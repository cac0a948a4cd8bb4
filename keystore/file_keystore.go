package keystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	werrors "github.com/mezonai/simplewallet/errors"
)

// FileKeyStore reads <dir>/<user>.priv and <dir>/<user>.pub, one hex key per file
type FileKeyStore struct {
	dir string
}

func NewFileKeyStore(dir string) *FileKeyStore {
	return &FileKeyStore{dir: dir}
}

func (s *FileKeyStore) PrivateKey(_ context.Context, user string) (string, error) {
	return s.read(user, "priv")
}

func (s *FileKeyStore) PublicKey(_ context.Context, user string) (string, error) {
	return s.read(user, "pub")
}

func (s *FileKeyStore) read(user, ext string) (string, error) {
	if user == "" || strings.ContainsAny(user, `/\`) || user == "." || user == ".." {
		return "", werrors.NewError(werrors.ErrCodeCredential, fmt.Sprintf("invalid user name %q", user))
	}
	path := filepath.Join(s.dir, user+"."+ext)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", notFound(user, ext)
	}
	if err != nil {
		return "", werrors.Wrap(werrors.ErrCodeCredential, "failed to read "+path, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", notFound(user, ext)
	}
	return key, nil
}
