package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/config"
	"github.com/dmitrijs2005/printkeeper/internal/configstore"
	"github.com/dmitrijs2005/printkeeper/internal/credvault"
	"github.com/dmitrijs2005/printkeeper/internal/cryptox"
	"github.com/dmitrijs2005/printkeeper/internal/lockout"
	"github.com/dmitrijs2005/printkeeper/internal/logging"
	"github.com/dmitrijs2005/printkeeper/internal/paths"
	"github.com/dmitrijs2005/printkeeper/internal/storage"
	"github.com/dmitrijs2005/printkeeper/internal/users"
)

// Test seams.
var (
	getenv               = os.Getenv
	logOutput  io.Writer = os.Stderr
	bcryptCost           = users.DefaultBcryptCost
	newS3                = func(ctx context.Context, o storage.S3Options) (storage.Backend, error) {
		return storage.NewS3Backend(ctx, o)
	}
)

const keyFileName = ".vault.key"

// App holds the wired services behind the console.
type App struct {
	config  *config.Config
	logger  logging.Logger
	locator *paths.Locator
	engine  *cryptox.Engine
	vault   *credvault.Vault
	configs *configstore.Store
	tracker *lockout.Tracker
	dir     *users.Directory

	closers []io.Closer
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp wires the secure stores from c. Nothing is decrypted until Start.
func NewApp(c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	logger := logging.New(logOutput, c.LogLevel)
	locator := paths.NewLocator(c.ConfigDir)
	if err := os.MkdirAll(locator.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", common.ErrPermission, locator.Dir, err)
	}

	engine := cryptox.NewEngine(locator, logger)

	service := credvault.PlatformService()
	if c.VaultKeyFile && !service.IsSupported() {
		service = credvault.NewKeyFileService(filepath.Join(locator.Dir, keyFileName))
	}
	vault := credvault.New(filepath.Join(locator.Dir, paths.VaultFileName), service, logger)

	reader := bufio.NewReader(in)
	configs := configstore.New(engine, vault, NewTerminalPrompt(reader, out), getenv, logger,
		configstore.WithPath(filepath.Join(locator.Dir, paths.ConfigFileName)),
		configstore.WithEnvNames(c.MasterPasswordEnv, c.LegacyMasterPasswordEnv))

	a := &App{
		config:  c,
		logger:  logger,
		locator: locator,
		engine:  engine,
		vault:   vault,
		configs: configs,
		reader:  reader,
		out:     out,
	}

	var store lockout.Store = lockout.NewMemoryStore()
	if c.LockoutDB != "" {
		bs, err := lockout.OpenBoltStore(c.LockoutDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bs)
		store = bs
	}
	a.tracker = lockout.NewTracker(store,
		lockout.WithMaxFailures(c.LockoutThreshold),
		lockout.WithBaseLockout(c.LockoutDuration))

	return a, nil
}

// Start decrypts the configuration (running first-time setup if there is
// none), connects storage and loads the user directory. On a fresh
// directory it creates the administrator.
func (a *App) Start(ctx context.Context) error {
	var (
		data *configstore.Data
		err  error
	)
	if a.configs.IsConfigured() {
		data, err = a.configs.Load(ctx)
	} else {
		data, err = a.setupConfig(ctx)
	}
	if err != nil {
		return err
	}

	backend, err := a.openBackend(ctx, data)
	if err != nil {
		return err
	}

	dirKey, logKey := a.config.DirectoryBlobKey, a.config.LogBlobKey
	if data.DirectoryKey != "" {
		dirKey = data.DirectoryKey
	}
	if data.LogKey != "" {
		logKey = data.LogKey
	}
	store := users.NewBlobStore(backend, a.engine, a.locator, a.logger,
		users.WithBlobKeys(dirKey, logKey),
		users.WithLocalMirror(a.config.LocalMirror))
	a.dir = users.NewDirectory(store, a.tracker, a.logger, users.WithBcryptCost(bcryptCost))

	if err := a.dir.Load(ctx); err != nil {
		return err
	}
	if !a.dir.IsInitialized(ctx) {
		if err := a.dir.CheckStore(ctx); err != nil {
			return fmt.Errorf("user directory: %w", err)
		}
		return a.initializeSystem(ctx)
	}
	return nil
}

func (a *App) openBackend(ctx context.Context, data *configstore.Data) (storage.Backend, error) {
	mode := a.config.StorageMode
	if mode == config.StorageFromConfig {
		mode = data.Storage.Provider
	}
	switch mode {
	case config.StorageS3, "":
		return newS3(ctx, data.Storage.S3Options())
	case config.StorageFile:
		dir := a.config.LocalStorageDir
		if dir == "" {
			dir = data.Storage.LocalDir
		}
		if dir == "" {
			return nil, fmt.Errorf("%w: file storage needs a directory", common.ErrConfiguration)
		}
		return storage.NewFileBackend(dir), nil
	case config.StorageMemory:
		a.logger.Warn(ctx, "using in-memory storage, nothing will be kept")
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage mode %q", common.ErrConfiguration, mode)
	}
}

// Run starts the app and serves the console until exit or EOF.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	fmt.Fprintln(a.out, "printkeeper console (type 'help' for commands)")
	if err := a.Start(ctx); err != nil {
		return err
	}
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

// Close drops key material and releases open stores.
func (a *App) Close() error {
	if a.dir != nil {
		a.dir.Logout(context.Background())
	}
	a.configs.Lock()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	if a.dir == nil {
		return false
	}
	_, ok := a.dir.CurrentUser()
	return ok
}

func (a *App) status() string {
	if a.dir == nil {
		return ""
	}
	u, ok := a.dir.CurrentUser()
	if !ok {
		return ""
	}
	return fmt.Sprintf("(%s %s)", u.Username, u.Role)
}
