// Package credvault caches the master password on a trusted machine, sealed
// by a per-user SecretService so it is useless when copied elsewhere.
//
// Every failure is soft: Save reports false, Load reports "not cached" and
// Clear swallows I/O errors. Callers must treat absence as a cache miss.
package credvault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/cryptox"
	"github.com/dmitrijs2005/printkeeper/internal/filex"
	"github.com/dmitrijs2005/printkeeper/internal/logging"
)

const (
	PayloadVersion = 1
	SchemePlatform = "platform"
)

// appEntropy binds protected blobs to this application.
var appEntropy = []byte("printkeeper/credential-vault/v1")

// Payload is the on-disk vault file.
type Payload struct {
	Version int    `json:"version"`
	Scheme  string `json:"scheme"`
	Blob    string `json:"blob"`
}

// Vault is the single-password cache file.
type Vault struct {
	path    string
	service SecretService
	logger  logging.Logger
}

// New returns a Vault at path. A nil service behaves as unsupported.
func New(path string, service SecretService, logger logging.Logger) *Vault {
	if service == nil {
		service = Unsupported()
	}
	return &Vault{path: path, service: service, logger: logger.With("component", "credvault")}
}

func (v *Vault) IsSupported() bool { return v.service.IsSupported() }

// Save protects password and writes the vault file. It never panics or
// returns an error; false means nothing was cached.
func (v *Vault) Save(ctx context.Context, password string) bool {
	if !v.service.IsSupported() || password == "" {
		return false
	}

	plain := []byte(password)
	defer common.WipeByteArray(plain)

	sealed, err := v.service.Protect(plain, appEntropy)
	if err != nil {
		v.logger.Warn(ctx, "could not protect password", "error", err)
		return false
	}

	raw, err := json.Marshal(Payload{
		Version: PayloadVersion,
		Scheme:  SchemePlatform,
		Blob:    base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return false
	}

	if err := filex.WriteFileAtomic(v.path, raw, 0o600); err != nil {
		v.logger.Warn(ctx, "could not write vault file", "path", v.path, "error", err)
		return false
	}
	_ = filex.Hide(v.path)
	v.logger.Info(ctx, "master password cached", "path", v.path)
	return true
}

// Load returns the cached password. ok is false on any structural or
// platform error.
func (v *Vault) Load(ctx context.Context) (password string, ok bool) {
	if !v.service.IsSupported() {
		return "", false
	}

	raw, err := os.ReadFile(v.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn(ctx, "could not read vault file", "error", err)
		}
		return "", false
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		v.logger.Warn(ctx, "vault file is malformed", "error", err)
		return "", false
	}
	if p.Scheme != SchemePlatform || p.Version != PayloadVersion {
		v.logger.Warn(ctx, "unknown vault scheme", "scheme", p.Scheme, "version", p.Version)
		return "", false
	}

	sealed, err := base64.StdEncoding.DecodeString(p.Blob)
	if err != nil {
		return "", false
	}

	plain, err := v.service.Unprotect(sealed, appEntropy)
	if err != nil {
		v.logger.Warn(ctx, "could not unprotect cached password", "error", err)
		return "", false
	}
	defer common.WipeByteArray(plain)

	if len(plain) == 0 {
		return "", false
	}
	return string(plain), true
}

// Clear wipes and removes the vault file; errors are logged and swallowed.
func (v *Vault) Clear(ctx context.Context) {
	if err := cryptox.SecureDeleteFile(v.path); err != nil {
		v.logger.Warn(ctx, "could not remove vault file", "error", err)
	}
}
