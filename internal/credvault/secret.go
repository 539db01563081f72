package credvault

import (
	"bytes"
	"crypto/sha256"
	"errors"
)

// SecretService is the OS-native per-user secret protection capability.
// Protected bytes are only recoverable by the same user on the same machine.
type SecretService interface {
	IsSupported() bool
	Protect(data, entropy []byte) ([]byte, error)
	Unprotect(data, entropy []byte) ([]byte, error)
}

var (
	ErrUnsupported     = errors.New("secret protection not supported on this platform")
	ErrEntropyMismatch = errors.New("protected data was bound to different entropy")
)

type unsupportedService struct{}

func (unsupportedService) IsSupported() bool { return false }

func (unsupportedService) Protect([]byte, []byte) ([]byte, error) { return nil, ErrUnsupported }

func (unsupportedService) Unprotect([]byte, []byte) ([]byte, error) { return nil, ErrUnsupported }

// Unsupported returns a SecretService that refuses every call.
func Unsupported() SecretService { return unsupportedService{} }

// bindEntropy prefixes data with a digest of entropy; services without a
// native entropy parameter use it to tie a blob to this application.
func bindEntropy(data, entropy []byte) []byte {
	sum := sha256.Sum256(entropy)
	out := make([]byte, 0, len(sum)+len(data))
	out = append(out, sum[:]...)
	return append(out, data...)
}

func unbindEntropy(data, entropy []byte) ([]byte, error) {
	sum := sha256.Sum256(entropy)
	if len(data) < len(sum) || !bytes.Equal(data[:len(sum)], sum[:]) {
		return nil, ErrEntropyMismatch
	}
	return data[len(sum):], nil
}
