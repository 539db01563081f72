// Package configstore owns the encrypted local configuration: it resolves
// the master password from the credential cache, the environment or the
// user, decrypts the file and migrates it off legacy passwords.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/cryptox"
	"github.com/dmitrijs2005/printkeeper/internal/filex"
	"github.com/dmitrijs2005/printkeeper/internal/logging"
	"github.com/dmitrijs2005/printkeeper/internal/passpolicy"
	"github.com/dmitrijs2005/printkeeper/internal/paths"
)

const DefaultPromptAttempts = 3

// PasswordPrompt asks the user for the master password. ok is false when
// the user cancelled.
type PasswordPrompt interface {
	Ask(firstTime, allowRemember bool) (password string, remember bool, ok bool)
}

// CredentialCache remembers the master password between runs.
// *credvault.Vault implements it.
type CredentialCache interface {
	IsSupported() bool
	Save(ctx context.Context, password string) bool
	Load(ctx context.Context) (string, bool)
	Clear(ctx context.Context)
}

// Env looks up environment variables; os.Getenv in production.
type Env func(key string) string

// Store owns the encrypted configuration file and the master password used to
// open it.
type Store struct {
	engine *cryptox.Engine
	vault  CredentialCache
	prompt PasswordPrompt
	env    Env
	logger logging.Logger

	path       string
	attempts   int
	currentVar string
	legacyVar  string
	now        func() time.Time

	mu       sync.Mutex
	data     *Data
	password string
}

// Option configures a Store.
type Option func(*Store)

// WithPath sets the encrypted config file location.
func WithPath(p string) Option {
	return func(s *Store) { s.path = p }
}

// WithPromptAttempts sets how many times the prompt is asked before Load
// gives up.
func WithPromptAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithEnvNames overrides the current and legacy master password variables.
func WithEnvNames(current, legacy string) Option {
	return func(s *Store) {
		if current != "" {
			s.currentVar = current
		}
		if legacy != "" {
			s.legacyVar = legacy
		}
	}
}

// WithClock replaces time.Now for config timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store. vault and prompt may be nil, which skips that
// password source; a nil env falls back to os.Getenv.
//
// Example:
//
//	cs := configstore.New(engine, vault, cli.NewTerminalPrompt(r, os.Stdout), os.Getenv, logger)
//	data, err := cs.Load(ctx)
func New(engine *cryptox.Engine, vault CredentialCache, prompt PasswordPrompt, env Env, logger logging.Logger, opts ...Option) *Store {
	if env == nil {
		env = os.Getenv
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Store{
		engine:     engine,
		vault:      vault,
		prompt:     prompt,
		env:        env,
		logger:     logger.With("component", "configstore"),
		path:       filepath.Join(paths.DefaultConfigDir(), paths.ConfigFileName),
		attempts:   DefaultPromptAttempts,
		currentVar: common.EnvMasterPassword,
		legacyVar:  common.EnvLegacyMasterPassword,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path is the encrypted config file location.
func (s *Store) Path() string { return s.path }

// IsConfigured reports whether the encrypted config file exists.
func (s *Store) IsConfigured() bool { return filex.Exists(s.path) }

// Data returns the last loaded or saved configuration.
func (s *Store) Data() (*Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.data != nil
}

type candidate struct {
	source   string
	password string
}

const (
	sourceVault  = "vault"
	sourceEnv    = "env"
	sourceLegacy = "legacy-env"
	sourcePrompt = "prompt"
)

// Load decrypts the config. Password candidates are tried in order: the
// credential cache, the current env variable, the legacy env variable and
// finally the prompt. A cache entry that fails is cleared. Decrypting with
// the legacy password while a different current one is set re-encrypts the
// file under the current password.
func (s *Store) Load(ctx context.Context) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsConfigured() {
		return nil, fmt.Errorf("%w: no configuration at %s", common.ErrConfiguration, s.path)
	}

	current := s.env(s.currentVar)
	legacy := s.env(s.legacyVar)

	var cands []candidate
	if s.vaultSupported() {
		if pw, ok := s.vault.Load(ctx); ok {
			cands = append(cands, candidate{sourceVault, pw})
		}
	}
	if current != "" {
		cands = append(cands, candidate{sourceEnv, current})
	}
	if legacy != "" && legacy != current {
		cands = append(cands, candidate{sourceLegacy, legacy})
	}

	for _, c := range cands {
		data, err := s.try(ctx, c.password)
		if errors.Is(err, common.ErrSecurity) {
			s.logger.Warn(ctx, "master password candidate rejected", "source", c.source)
			if c.source == sourceVault {
				s.vault.Clear(ctx)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.accept(ctx, data, c, current, legacy)
	}

	if s.prompt == nil {
		return nil, fmt.Errorf("%w: no master password candidate decrypted the configuration", common.ErrSecurity)
	}
	for i := 0; i < s.attempts; i++ {
		pw, remember, ok := s.prompt.Ask(false, s.vaultSupported())
		if !ok {
			return nil, fmt.Errorf("%w: master password entry cancelled", common.ErrAuthentication)
		}
		data, err := s.try(ctx, pw)
		if errors.Is(err, common.ErrSecurity) {
			s.logger.Warn(ctx, "wrong master password", "attempt", i+1, "of", s.attempts)
			continue
		}
		if err != nil {
			return nil, err
		}
		if remember && s.vaultSupported() && !s.vault.Save(ctx, pw) {
			s.logger.Warn(ctx, "master password could not be cached")
		}
		return s.accept(ctx, data, candidate{sourcePrompt, pw}, current, legacy)
	}
	return nil, fmt.Errorf("%w: master password rejected after %d attempts", common.ErrSecurity, s.attempts)
}

func (s *Store) try(ctx context.Context, password string) (*Data, error) {
	var d Data
	if err := s.engine.DecryptConfigFile(ctx, password, s.path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) accept(ctx context.Context, data *Data, c candidate, current, legacy string) (*Data, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	s.data, s.password = data, c.password
	s.logger.Info(ctx, "configuration loaded", "source", c.source)

	if current != "" && c.password != current && c.password == legacy {
		if err := s.rekey(ctx, current); err != nil {
			s.logger.Error(ctx, "migration to the current master password failed", "error", err)
		} else {
			s.logger.Warn(ctx, "configuration migrated from legacy master password", "env", s.currentVar)
			if c.source == sourceVault && !s.vault.Save(ctx, current) {
				s.vault.Clear(ctx)
			}
		}
	}

	// blobs sealed under the legacy password stay readable
	if legacy != "" && legacy != s.password {
		if k, err := s.engine.DeriveWithCurrentSalt(legacy); err == nil {
			s.engine.AddCandidateKey(k)
		}
	}
	return data, nil
}

// rekey re-encrypts the loaded data under password and keeps the previous
// key as a recovery candidate.
func (s *Store) rekey(ctx context.Context, password string) error {
	old, _ := s.engine.Key()
	s.data.UpdatedAt = s.now().UTC()
	if err := s.engine.EncryptConfigFile(ctx, s.data, password, s.path); err != nil {
		return err
	}
	s.engine.AddCandidateKey(old)
	s.password = password
	return nil
}

// Save validates and encrypts data under password.
func (s *Store) Save(ctx context.Context, data *Data, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, data, password)
}

func (s *Store) save(ctx context.Context, data *Data, password string) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: empty master password", common.ErrValidation)
	}
	now := s.now().UTC()
	if data.CreatedAt.IsZero() {
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	if err := s.engine.EncryptConfigFile(ctx, data, password, s.path); err != nil {
		return err
	}
	s.data, s.password = data, password
	return nil
}

// Setup writes the first configuration. The master password comes from the
// current env variable, or from the prompt, and must pass the password
// policy.
func (s *Store) Setup(ctx context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := data.Validate(); err != nil {
		return err
	}

	pw, remember := s.env(s.currentVar), false
	if pw == "" {
		if s.prompt == nil {
			return fmt.Errorf("%w: no master password source", common.ErrConfiguration)
		}
		var ok bool
		pw, remember, ok = s.prompt.Ask(true, s.vaultSupported())
		if !ok {
			return fmt.Errorf("%w: master password entry cancelled", common.ErrAuthentication)
		}
	}
	if err := checkMasterPassword(pw); err != nil {
		return err
	}

	if err := s.save(ctx, data, pw); err != nil {
		return err
	}
	if remember && s.vaultSupported() && !s.vault.Save(ctx, pw) {
		s.logger.Warn(ctx, "master password could not be cached")
	}
	s.logger.Info(ctx, "configuration created", "path", s.path)
	return nil
}

// ChangeMasterPassword re-encrypts the config under newPassword after
// verifying oldPassword. A cached password is replaced.
func (s *Store) ChangeMasterPassword(ctx context.Context, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.try(ctx, oldPassword)
	if err != nil {
		return err
	}
	if err := checkMasterPassword(newPassword); err != nil {
		return err
	}
	s.data, s.password = data, oldPassword

	if err := s.rekey(ctx, newPassword); err != nil {
		return err
	}
	if s.vaultSupported() {
		if _, cached := s.vault.Load(ctx); cached && !s.vault.Save(ctx, newPassword) {
			s.vault.Clear(ctx)
		}
	}
	s.logger.Info(ctx, "master password changed")
	return nil
}

// Lock drops the loaded data and key material.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.password = nil, ""
	s.engine.Forget()
}

func (s *Store) vaultSupported() bool {
	return s.vault != nil && s.vault.IsSupported()
}

func checkMasterPassword(pw string) error {
	a := passpolicy.Analyze(pw, "")
	if a.IsValid {
		return nil
	}
	return fmt.Errorf("%w: master password too weak (score %d): %s", common.ErrValidation, a.Score, strings.Join(a.Errors, "; "))
}
