package cryptox

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type remoteCreds struct {
	Bucket   string            `json:"bucket"`
	Endpoint string            `json:"endpoint"`
	Tags     map[string]string `json:"tags"`
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1 := DeriveKey("secret-password", salt)
	k2 := DeriveKey("secret-password", salt)
	assert.Equal(t, k1, k2)

	raw, err := base64.URLEncoding.DecodeString(string(k1))
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	salt1 := []byte("0123456789abcdef")
	salt2 := []byte("fedcba9876543210")

	assert.NotEqual(t, DeriveKey("pw", salt1), DeriveKey("pw", salt2))
	assert.NotEqual(t, DeriveKey("pw1", salt1), DeriveKey("pw2", salt1))
}

func TestEncryptDecryptPayload_RoundTrip(t *testing.T) {
	key := DeriveKey("round-trip", GenerateSalt())
	in := remoteCreds{Bucket: "drivers", Endpoint: "https://s3.local", Tags: map[string]string{"site": "hq"}}

	token, err := EncryptPayload(in, key)
	require.NoError(t, err)

	var out remoteCreds
	require.NoError(t, DecryptPayload(token, key, &out))
	assert.Equal(t, in, out)
}

func TestEncryptPayload_RandomIV(t *testing.T) {
	key := DeriveKey("iv", GenerateSalt())

	a, err := EncryptPayload("same", key)
	require.NoError(t, err)
	b, err := EncryptPayload("same", key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptPayload_WrongKey(t *testing.T) {
	salt := GenerateSalt()
	token, err := EncryptPayload("x", DeriveKey("right", salt))
	require.NoError(t, err)

	var out string
	err = DecryptPayload(token, DeriveKey("wrong", salt), &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrSecurity))
}

func TestDecryptPayload_EmptyKey(t *testing.T) {
	var out string
	err := DecryptPayload("anything", "", &out)
	assert.True(t, errors.Is(err, common.ErrKeyNotReady))
}

func TestDecryptPayload_TamperedToken(t *testing.T) {
	key := DeriveKey("tamper", GenerateSalt())
	token, err := EncryptPayload(map[string]int{"n": 1}, key)
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(token)
	require.NoError(t, err)

	for _, pos := range []int{0, 5, 12, 30, len(raw) - 40, len(raw) - 1} {
		mutated := append([]byte(nil), raw...)
		mutated[pos] ^= 0x01

		var out map[string]int
		err := DecryptPayload(base64.URLEncoding.EncodeToString(mutated), key, &out)
		assert.True(t, errors.Is(err, common.ErrSecurity), "bit flip at %d must be detected", pos)
		assert.Nil(t, out)
	}
}

// Token from the Fernet reference test vectors; legacy installs wrote this
// format.
func TestDecryptPayload_LegacyTokenFormat(t *testing.T) {
	key := Key("cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4=")
	k, err := key.fernetKey()
	require.NoError(t, err)

	plain, err := verifyToken(k, "gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA==")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestDecryptPayload_MalformedKey(t *testing.T) {
	var out string
	err := DecryptPayload("anything", Key("not-a-key"), &out)
	assert.True(t, errors.Is(err, common.ErrSecurity))
}

func TestIntegrityTag(t *testing.T) {
	key := DeriveKey("tag", GenerateSalt())
	tag := ComputeIntegrityTag("ciphertext", key)

	assert.Len(t, tag, 64)
	assert.True(t, VerifyIntegrityTag("ciphertext", tag, key))
	assert.False(t, VerifyIntegrityTag("ciphertexT", tag, key))
	assert.False(t, VerifyIntegrityTag("ciphertext", tag, DeriveKey("other", GenerateSalt())))
	assert.False(t, VerifyIntegrityTag("ciphertext", "not-hex", key))
	assert.False(t, VerifyIntegrityTag("ciphertext", tag, ""))
}

func TestSealOpenBlob(t *testing.T) {
	key := DeriveKey("blob", GenerateSalt())

	blob, err := SealBlob(map[string]string{"a": "b"}, key)
	require.NoError(t, err)
	assert.Equal(t, BlobVersion, blob.Version)

	var out map[string]string
	require.NoError(t, OpenBlob(blob, key, &out))
	assert.Equal(t, "b", out["a"])

	blob.HMAC = ComputeIntegrityTag(blob.Data+"x", key)
	err = OpenBlob(blob, key, &out)
	assert.True(t, errors.Is(err, common.ErrSecurity))

	assert.True(t, errors.Is(OpenBlob(blob, "", &out), common.ErrKeyNotReady))
}
