package cryptox

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize      = 16
	KDFIterations = 100_000
	KeySize       = 32
)

// Key is a 32-byte symmetric key in URL-safe base64, the form the sealed
// token format and the integrity tag both consume.
type Key string

// DeriveKey stretches password with PBKDF2-HMAC-SHA256. The same password and
// salt always yield the same Key.
func DeriveKey(password string, salt []byte) Key {
	raw := pbkdf2.Key([]byte(password), salt, KDFIterations, KeySize, sha256.New)
	defer common.WipeByteArray(raw)
	return Key(base64.URLEncoding.EncodeToString(raw))
}

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}
