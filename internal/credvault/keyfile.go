package credvault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/printkeeper/internal/filex"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// KeyFileService protects data with nacl/secretbox under a random key kept in
// an owner-only file in the user profile. It stands in for a platform
// service on systems without one; anyone able to read the key file as this
// user can unprotect.
type KeyFileService struct {
	path string
}

// NewKeyFileService keeps its key at path. An empty path makes the service
// unsupported.
func NewKeyFileService(path string) *KeyFileService {
	return &KeyFileService{path: path}
}

func (s *KeyFileService) IsSupported() bool { return s.path != "" }

func (s *KeyFileService) Protect(data, entropy []byte) ([]byte, error) {
	key, err := s.loadKey(true)
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], bindEntropy(data, entropy), &nonce, key), nil
}

func (s *KeyFileService) Unprotect(data, entropy []byte) ([]byte, error) {
	if len(data) < nonceSize+secretbox.Overhead {
		return nil, errors.New("ciphertext too short")
	}
	key, err := s.loadKey(false)
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])

	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, key)
	if !ok {
		return nil, errors.New("decrypt failed")
	}
	return unbindEntropy(plain, entropy)
}

func (s *KeyFileService) loadKey(create bool) (*[32]byte, error) {
	var key [32]byte

	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if len(raw) != len(key) {
			return nil, fmt.Errorf("key file %s is corrupted", s.path)
		}
		copy(key[:], raw)
		return &key, nil
	case errors.Is(err, fs.ErrNotExist) && create:
		if _, err := rand.Read(key[:]); err != nil {
			return nil, err
		}
		if err := filex.WriteFileAtomic(s.path, key[:], 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
		_ = filex.Hide(s.path)
		return &key, nil
	default:
		return nil, fmt.Errorf("read key file: %w", err)
	}
}
