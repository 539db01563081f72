package config

import (
	"time"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/lockout"
	"github.com/dmitrijs2005/printkeeper/internal/paths"
)

// Storage modes. Empty means: use the provider stored in the encrypted
// configuration.
const (
	StorageFromConfig = ""
	StorageS3         = "s3"
	StorageFile       = "file"
	StorageMemory     = "memory"
)

// Config holds runtime settings for the printkeeper CLI. Secrets never live
// here; they are in the encrypted configuration managed by configstore.
type Config struct {
	ConfigDir               string
	DirectoryBlobKey        string
	LogBlobKey              string
	MasterPasswordEnv       string
	LegacyMasterPasswordEnv string
	LockoutThreshold        int
	LockoutDuration         time.Duration
	LockoutDB               string
	VaultKeyFile            bool
	StorageMode             string
	LocalStorageDir         string
	LocalMirror             bool
	LogLevel                string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ConfigDir = paths.DefaultConfigDir()
	c.DirectoryBlobKey = common.DirectoryBlobKey
	c.LogBlobKey = common.AccessLogBlobKey
	c.MasterPasswordEnv = common.EnvMasterPassword
	c.LegacyMasterPasswordEnv = common.EnvLegacyMasterPassword
	c.LockoutThreshold = lockout.DefaultMaxFailures
	c.LockoutDuration = lockout.DefaultBaseLockout
	c.LocalMirror = true
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the JSON file named by -c/-config, then
// command-line flags. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
