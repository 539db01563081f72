// Package cryptox is the password-derived encryption engine: PBKDF2 key
// derivation, sealed JSON payloads, blob-level HMAC integrity tags, and the
// encrypted config file with salt recovery.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/filex"
)

// BlobVersion is the schema version written into every EncryptedBlob.
const BlobVersion = "1.0"

// EncryptedBlob is the at-rest shape shared by the config file and the
// directory/log blobs. HMAC must validate against Data before Data is
// decrypted.
type EncryptedBlob struct {
	Data    string `json:"data"`
	HMAC    string `json:"hmac"`
	Version string `json:"version"`
}

// EncryptPayload serializes payload to compact JSON and seals it under key.
//
// Example:
//
//	key := cryptox.DeriveKey("correct horse", salt)
//	token, err := cryptox.EncryptPayload(map[string]string{"bucket": "drivers"}, key)
//	if err != nil {
//	    return err
//	}
func EncryptPayload(payload any, key Key) (string, error) {
	k, err := key.fernetKey()
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(k[:])

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	token, err := fernet.EncryptAndSign(plaintext, k)
	if err != nil {
		return "", fmt.Errorf("seal payload: %w", err)
	}
	return string(token), nil
}

// DecryptPayload opens a token produced by EncryptPayload and unmarshals the
// JSON into v. Any tampering or a wrong key yields common.ErrSecurity.
func DecryptPayload(token string, key Key, v any) error {
	k, err := key.fernetKey()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(k[:])

	plaintext, err := verifyToken(k, token)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrSecurity, err)
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: decrypted payload is not valid JSON: %v", common.ErrSecurity, err)
	}
	return nil
}

// ComputeIntegrityTag is a hex HMAC-SHA256 of text keyed by key. It is
// independent from the token's own MAC and guards the whole blob.
func ComputeIntegrityTag(text string, key Key) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(text))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyIntegrityTag compares tag with the expected tag in constant time.
func VerifyIntegrityTag(text, tag string, key Key) bool {
	want, err := hex.DecodeString(tag)
	if err != nil || key == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(text))
	return hmac.Equal(mac.Sum(nil), want)
}

// SealBlob encrypts payload and tags the ciphertext.
func SealBlob(payload any, key Key) (*EncryptedBlob, error) {
	token, err := EncryptPayload(payload, key)
	if err != nil {
		return nil, err
	}
	return &EncryptedBlob{Data: token, HMAC: ComputeIntegrityTag(token, key), Version: BlobVersion}, nil
}

// OpenBlob verifies the tag and decrypts into v.
func OpenBlob(blob *EncryptedBlob, key Key, v any) error {
	if key == "" {
		return common.ErrKeyNotReady
	}
	if !VerifyIntegrityTag(blob.Data, blob.HMAC, key) {
		return fmt.Errorf("%w: integrity tag mismatch", common.ErrSecurity)
	}
	return DecryptPayload(blob.Data, key, v)
}

// SecureDeleteFile overwrites a sensitive artifact with random bytes before
// unlinking it.
func SecureDeleteFile(path string) error {
	return filex.SecureDelete(path)
}
