package credvault

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/printkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService reverses bytes; enough to prove the vault never stores
// plaintext and passes entropy through.
type fakeService struct {
	supported   bool
	protectErr  error
	lastEntropy []byte
}

func (f *fakeService) IsSupported() bool { return f.supported }

func (f *fakeService) Protect(data, entropy []byte) ([]byte, error) {
	if f.protectErr != nil {
		return nil, f.protectErr
	}
	f.lastEntropy = append([]byte(nil), entropy...)
	return reverse(bindEntropy(data, entropy)), nil
}

func (f *fakeService) Unprotect(data, entropy []byte) ([]byte, error) {
	return unbindEntropy(reverse(data), entropy)
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func newVault(t *testing.T, svc SecretService) (*Vault, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".credentials.vault")
	return New(p, svc, logging.Nop()), p
}

func TestVault_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{supported: true}
	v, p := newVault(t, svc)

	require.True(t, v.IsSupported())
	require.True(t, v.Save(ctx, "N7!xTq4#Lm2@Vp9"))
	assert.Equal(t, appEntropy, svc.lastEntropy)

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "N7!xTq4#Lm2@Vp9")

	var payload Payload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, 1, payload.Version)
	assert.Equal(t, "platform", payload.Scheme)

	got, ok := v.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "N7!xTq4#Lm2@Vp9", got)

	v.Clear(ctx)
	_, ok = v.Load(ctx)
	assert.False(t, ok)

	// clearing twice is fine
	v.Clear(ctx)
}

func TestVault_Unsupported(t *testing.T) {
	ctx := context.Background()
	v, p := newVault(t, Unsupported())

	assert.False(t, v.IsSupported())
	assert.False(t, v.Save(ctx, "secret"))
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	_, ok := v.Load(ctx)
	assert.False(t, ok)
}

func TestVault_NilServiceIsUnsupported(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "v"), nil, logging.Nop())
	assert.False(t, v.IsSupported())
}

func TestVault_ProtectFailure(t *testing.T) {
	v, _ := newVault(t, &fakeService{supported: true, protectErr: errors.New("boom")})
	assert.False(t, v.Save(context.Background(), "secret"))
}

func TestVault_LoadRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"wrong scheme", `{"version":1,"scheme":"plaintext","blob":"c2VjcmV0"}`},
		{"wrong version", `{"version":9,"scheme":"platform","blob":"c2VjcmV0"}`},
		{"bad base64", `{"version":1,"scheme":"platform","blob":"***"}`},
		{"unprotect fails", `{"version":1,"scheme":"platform","blob":"c2VjcmV0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, p := newVault(t, &fakeService{supported: true})
			require.NoError(t, os.WriteFile(p, []byte(tt.body), 0o600))

			got, ok := v.Load(ctx)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestKeyFileService(t *testing.T) {
	dir := t.TempDir()
	svc := NewKeyFileService(filepath.Join(dir, ".vault.key"))
	require.True(t, svc.IsSupported())

	sealed, err := svc.Protect([]byte("pw"), []byte("e1"))
	require.NoError(t, err)

	plain, err := svc.Unprotect(sealed, []byte("e1"))
	require.NoError(t, err)
	assert.Equal(t, "pw", string(plain))

	_, err = svc.Unprotect(sealed, []byte("e2"))
	assert.ErrorIs(t, err, ErrEntropyMismatch)

	sealed[len(sealed)-1] ^= 0xff
	_, err = svc.Unprotect(sealed, []byte("e1"))
	assert.Error(t, err)

	_, err = svc.Unprotect([]byte("short"), nil)
	assert.Error(t, err)

	info, err := os.Stat(filepath.Join(dir, ".vault.key"))
	require.NoError(t, err)
	assert.Equal(t, int64(32), info.Size())
}

func TestKeyFileService_NoKeyFile(t *testing.T) {
	svc := NewKeyFileService(filepath.Join(t.TempDir(), "missing.key"))
	_, err := svc.Unprotect(make([]byte, 64), nil)
	assert.Error(t, err)
}

func TestVault_WithKeyFileService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := New(filepath.Join(dir, ".credentials.vault"), NewKeyFileService(filepath.Join(dir, ".vault.key")), logging.Nop())

	require.True(t, v.Save(ctx, "Cached#Pass123"))
	got, ok := v.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "Cached#Pass123", got)
}
