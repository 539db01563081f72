package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/cryptox"
	"github.com/dmitrijs2005/printkeeper/internal/filex"
	"github.com/dmitrijs2005/printkeeper/internal/logging"
	"github.com/dmitrijs2005/printkeeper/internal/paths"
	"github.com/dmitrijs2005/printkeeper/internal/storage"
)

// Where a loaded blob came from.
const (
	SourceStore    = "store"
	SourceFallback = "fallback"
	SourceEmpty    = "empty"
)

// LoadInfo describes how a read resolved. Err is set when the backend
// failed for a reason other than the blob being absent; the returned data is
// still structurally valid.
//
// Unreadable is set when the store holds a blob that no decoder, key or local
// copy could turn into data. The empty result then stands in for content that
// still exists, and BlobStore refuses to save over it until a later load
// succeeds.
type LoadInfo struct {
	Outcome    Outcome
	Source     string
	Path       string
	Err        error
	Unreadable bool

	stored bool
}

// Recovered reports whether the data should be re-persisted in the current
// scheme.
func (i LoadInfo) Recovered() bool {
	return i.Outcome == Recovered
}

// Persistence loads and saves the directory and access log blobs. Loads
// never fail: they degrade to less trusted sources and finally to empty data.
type Persistence interface {
	LoadDirectory(ctx context.Context) (*DirectoryData, LoadInfo)
	SaveDirectory(ctx context.Context, d *DirectoryData) error
	LoadLogs(ctx context.Context) (*LogData, LoadInfo)
	SaveLogs(ctx context.Context, l *LogData) error
}

// KeySource supplies the live key and the candidates used for recovery.
// *cryptox.Engine implements it.
type KeySource interface {
	Key() (cryptox.Key, error)
	CandidateKeys() ([]cryptox.Key, error)
}

// BlobStore is the Persistence used for both local and remote storage: over
// a storage.FileBackend it reads and writes files directly, over an
// S3Backend it talks to the bucket.
type BlobStore struct {
	backend  storage.Backend
	keys     KeySource
	resolver paths.Resolver
	logger   logging.Logger
	decoders []PayloadDecoder
	dirKey   string
	logKey   string
	mirror   bool

	mu     sync.Mutex
	sealed map[string]bool
}

// StoreOption configures a BlobStore.
type StoreOption func(*BlobStore)

// WithBlobKeys overrides the directory and log blob keys.
func WithBlobKeys(dirKey, logKey string) StoreOption {
	return func(s *BlobStore) {
		if dirKey != "" {
			s.dirKey = dirKey
		}
		if logKey != "" {
			s.logKey = logKey
		}
	}
}

// WithLocalMirror makes every successful save also write a copy to the
// backup directory, which later serves as a fallback source.
func WithLocalMirror(on bool) StoreOption {
	return func(s *BlobStore) { s.mirror = on }
}

// WithDecoders replaces the decoder chain.
func WithDecoders(d ...PayloadDecoder) StoreOption {
	return func(s *BlobStore) { s.decoders = d }
}

// NewBlobStore returns a BlobStore over backend. keys supplies the sealing key
// and the recovery candidates, resolver the local fallback locations.
//
// Example:
//
//	store := users.NewBlobStore(storage.NewFileBackend(dir), engine, locator, logger,
//		users.WithLocalMirror(true))
func NewBlobStore(backend storage.Backend, keys KeySource, resolver paths.Resolver, logger logging.Logger, opts ...StoreOption) *BlobStore {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &BlobStore{
		backend:  backend,
		keys:     keys,
		resolver: resolver,
		logger:   logger,
		decoders: DefaultDecoders(),
		dirKey:   common.DirectoryBlobKey,
		logKey:   common.AccessLogBlobKey,
		sealed:   map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadDirectory reads the user directory blob. It never fails; see LoadInfo
// for how trustworthy the result is.
func (s *BlobStore) LoadDirectory(ctx context.Context) (*DirectoryData, LoadInfo) {
	payload, info := s.load(ctx, s.dirKey, DirectoryKind)
	d := emptyDirectory()
	if payload != nil {
		if err := json.Unmarshal(payload, d); err != nil {
			s.logger.Error(ctx, "decoded user directory does not fit the schema", "key", s.dirKey, "error", err)
			d, info = emptyDirectory(), unusable(info)
		}
	}
	d.normalize()
	s.track(ctx, s.dirKey, info)
	return d, info
}

// SaveDirectory seals d under the live key and uploads it.
func (s *BlobStore) SaveDirectory(ctx context.Context, d *DirectoryData) error {
	d.SchemaVersion = SchemaVersion
	return s.save(ctx, s.dirKey, d)
}

// LoadLogs reads the access log blob. Like LoadDirectory it never fails.
func (s *BlobStore) LoadLogs(ctx context.Context) (*LogData, LoadInfo) {
	payload, info := s.load(ctx, s.logKey, LogKind)
	l := &LogData{}
	if payload != nil {
		if err := json.Unmarshal(payload, l); err != nil {
			s.logger.Error(ctx, "decoded access log does not fit the schema", "key", s.logKey, "error", err)
			l, info = &LogData{}, unusable(info)
		}
	}
	if l.Logs == nil {
		l.Logs = []AccessLogEntry{}
	}
	s.track(ctx, s.logKey, info)
	return l, info
}

// SaveLogs seals l under the live key and uploads it.
func (s *BlobStore) SaveLogs(ctx context.Context, l *LogData) error {
	return s.save(ctx, s.logKey, l)
}

// unusable downgrades info after a decoded payload failed the schema.
func unusable(info LoadInfo) LoadInfo {
	return LoadInfo{
		Outcome:    Unrecoverable,
		Source:     SourceEmpty,
		Err:        info.Err,
		Unreadable: info.stored,
		stored:     info.stored,
	}
}

// track remembers which keys hold content this store could not read. A
// transport failure says nothing about the content, so it leaves the mark as
// it was.
func (s *BlobStore) track(ctx context.Context, key string, info LoadInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case info.Unreadable:
		if !s.sealed[key] {
			s.logger.Error(ctx, "stored blob is unreadable, saves to it are blocked", "key", key)
		}
		s.sealed[key] = true
	case info.Err == nil:
		delete(s.sealed, key)
	}
}

func (s *BlobStore) save(ctx context.Context, key string, v any) error {
	s.mu.Lock()
	blocked := s.sealed[key]
	s.mu.Unlock()
	if blocked {
		return fmt.Errorf("%w: stored %s could not be read, refusing to overwrite it", common.ErrSecurity, key)
	}

	k, err := s.keys.Key()
	if err != nil {
		return err
	}
	raw, err := SealEnvelope(v, k)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	if err := s.backend.UploadText(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if s.mirror {
		p := filepath.Join(s.resolver.ConfigDir(), paths.BackupDirName, path.Base(key))
		if err := filex.WriteFileAtomic(p, raw, 0o600); err != nil {
			s.logger.Warn(ctx, "local mirror write failed", "path", p, "error", err)
		}
	}
	return nil
}

func (s *BlobStore) load(ctx context.Context, key string, kind BlobKind) (json.RawMessage, LoadInfo) {
	keys, err := s.keys.CandidateKeys()
	if err != nil {
		s.logger.Warn(ctx, "no key material, only plaintext payloads can be read", "error", err)
	}

	var fetchErr error
	text, err := s.backend.DownloadText(ctx, key)
	stored := err == nil && text != ""
	switch {
	case err == nil:
		res := Decode(s.decoders, []byte(text), kind, keys)
		if res.Outcome != Unrecoverable {
			if res.Outcome == Recovered {
				s.logger.Warn(ctx, "blob recovered from a legacy format", "key", key, "reason", res.Reason)
			}
			return res.Payload, LoadInfo{Outcome: res.Outcome, Source: SourceStore, stored: stored}
		}
		s.logger.Error(ctx, "stored blob is unreadable, trying local copies", "key", key, "reason", res.Reason)
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Debug(ctx, "blob not found in store", "key", key)
	default:
		fetchErr = err
		s.logger.Error(ctx, "blob download failed, trying local copies", "key", key, "error", err)
	}

	for _, p := range s.resolver.FallbackPaths(path.Base(key)) {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		res := Decode(s.decoders, b, kind, keys)
		if res.Outcome == Unrecoverable {
			s.logger.Debug(ctx, "local copy unusable", "path", p, "reason", res.Reason)
			continue
		}
		s.logger.Warn(ctx, "blob loaded from local fallback copy", "key", key, "path", p)
		return res.Payload, LoadInfo{Outcome: Recovered, Source: SourceFallback, Path: p, Err: fetchErr, stored: stored}
	}

	if fetchErr != nil || stored {
		s.logger.Error(ctx, "no usable copy of blob, continuing with empty data", "key", key)
	}
	return nil, LoadInfo{Outcome: Unrecoverable, Source: SourceEmpty, Err: fetchErr, Unreadable: stored, stored: stored}
}
