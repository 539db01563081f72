package cryptox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/filex"
	"github.com/dmitrijs2005/printkeeper/internal/logging"
	"github.com/dmitrijs2005/printkeeper/internal/paths"
)

// Engine owns the installation salt and the live key derived from the master
// password. The live key changes only after a config file was successfully
// encrypted or decrypted.
type Engine struct {
	resolver paths.Resolver
	logger   logging.Logger

	mu         sync.RWMutex
	key        Key
	alternates []Key
}

// NewEngine returns an Engine that keeps its salt where resolver says. No key
// is live until a config file is encrypted or decrypted.
func NewEngine(resolver paths.Resolver, logger logging.Logger) *Engine {
	return &Engine{resolver: resolver, logger: logger.With("component", "cryptox")}
}

// Key returns the live key or common.ErrKeyNotReady.
func (e *Engine) Key() (Key, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.key == "" {
		return "", common.ErrKeyNotReady
	}
	return e.key, nil
}

// CandidateKeys returns the live key followed by keys derived from the same
// password under legacy salts and any keys added with AddCandidateKey. Used
// to open payloads written by older installs.
func (e *Engine) CandidateKeys() ([]Key, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.key == "" {
		return nil, common.ErrKeyNotReady
	}
	out := make([]Key, 0, 1+len(e.alternates))
	out = append(out, e.key)
	return append(out, e.alternates...), nil
}

// AddCandidateKey registers an extra key for best-effort recovery, e.g. one
// derived from a legacy master password.
func (e *Engine) AddCandidateKey(k Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if k == "" || k == e.key {
		return
	}
	for _, a := range e.alternates {
		if a == k {
			return
		}
	}
	e.alternates = append(e.alternates, k)
}

// DeriveWithCurrentSalt derives password under the current salt without
// touching the live key. It fails with ErrorNotFound when there is no salt.
func (e *Engine) DeriveWithCurrentSalt(password string) (Key, error) {
	salt, err := readSalt(e.resolver.SaltPath())
	if err != nil {
		return "", err
	}
	return DeriveKey(password, salt), nil
}

// Forget drops all key material held in memory.
func (e *Engine) Forget() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.key = ""
	e.alternates = nil
}

// EncryptConfigFile derives the key (creating the salt file if absent),
// seals data and atomically writes {data, hmac, version} to path. The write
// fails closed: an unwritable directory returns common.ErrPermission.
func (e *Engine) EncryptConfigFile(ctx context.Context, data any, password, path string) error {
	salt, err := e.ensureSalt(ctx)
	if err != nil {
		return err
	}
	key := DeriveKey(password, salt)

	blob, err := SealBlob(data, key)
	if err != nil {
		return fmt.Errorf("encrypt config: %w", err)
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return err
	}

	if err := filex.WriteFileAtomic(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	if err := filex.Hide(path); err != nil {
		e.logger.Warn(ctx, "could not hide config file", "path", path, "error", err)
	}

	e.setKey(key, salt, password)
	e.logger.Debug(ctx, "config encrypted", "path", path)
	return nil
}

// DecryptConfigFile reads the blob at path, verifies its tag under the
// current salt and decrypts it into v. When the tag does not match, legacy
// salt locations are tried; a legacy salt that validates is copied over the
// current salt file. Recovery that fails leaves the engine untouched.
func (e *Engine) DecryptConfigFile(ctx context.Context, password, path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", path, common.ErrorNotFound)
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var blob EncryptedBlob
	if err := json.Unmarshal(raw, &blob); err != nil || blob.Data == "" {
		return fmt.Errorf("%w: config file %s is not an encrypted blob", common.ErrSecurity, path)
	}

	var (
		key  Key
		salt []byte
	)
	if s, err := readSalt(e.resolver.SaltPath()); err == nil {
		k := DeriveKey(password, s)
		if VerifyIntegrityTag(blob.Data, blob.HMAC, k) {
			key, salt = k, s
		}
	}

	if key == "" {
		key, salt, err = e.recoverSalt(ctx, password, &blob)
		if err != nil {
			return err
		}
	}

	if err := DecryptPayload(blob.Data, key, v); err != nil {
		return fmt.Errorf("decrypt config: %w", err)
	}

	e.setKey(key, salt, password)
	return nil
}

// recoverSalt looks for a legacy salt whose derived key validates the blob.
// Only a concrete match has side effects.
func (e *Engine) recoverSalt(ctx context.Context, password string, blob *EncryptedBlob) (Key, []byte, error) {
	for _, p := range e.resolver.LegacySaltPaths() {
		salt, err := readSalt(p)
		if err != nil {
			continue
		}
		k := DeriveKey(password, salt)
		if !VerifyIntegrityTag(blob.Data, blob.HMAC, k) {
			continue
		}

		current := e.resolver.SaltPath()
		if err := filex.CopyFileAtomic(p, current); err != nil {
			return "", nil, fmt.Errorf("restore legacy salt: %w", err)
		}
		_ = filex.Hide(current)
		e.logger.Warn(ctx, "recovered config using legacy salt", "legacy_path", p, "salt_path", current)
		return k, salt, nil
	}
	return "", nil, fmt.Errorf("%w: integrity check failed (wrong password or corrupted config)", common.ErrSecurity)
}

func (e *Engine) ensureSalt(ctx context.Context) ([]byte, error) {
	p := e.resolver.SaltPath()
	salt, err := readSalt(p)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	salt = GenerateSalt()
	if err := filex.WriteFileAtomic(p, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	_ = filex.Hide(p)
	e.logger.Info(ctx, "created new salt file", "path", p)
	return salt, nil
}

// setKey installs key as live and derives alternates from legacy salts that
// differ from the one in use.
func (e *Engine) setKey(key Key, salt []byte, password string) {
	var alternates []Key
	for _, p := range e.resolver.LegacySaltPaths() {
		s, err := readSalt(p)
		if err != nil || string(s) == string(salt) {
			continue
		}
		alternates = append(alternates, DeriveKey(password, s))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.key = key
	e.alternates = alternates
}

func readSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("salt %s: %w", path, common.ErrorNotFound)
		}
		return nil, err
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt %s has %d bytes", common.ErrSecurity, path, len(salt))
	}
	return salt, nil
}
