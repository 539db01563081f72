package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/flagx"
)

// parseFlags overlays cfg with the short flags it knows about. args is
// filtered first so unrelated flags do not break parsing.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-d", "-l", "-m", "-s", "-b"})

	fs := flag.NewFlagSet("printkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ConfigDir, "d", cfg.ConfigDir, "configuration directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.StorageMode, "m", cfg.StorageMode, "storage mode override (s3, file, memory)")
	fs.StringVar(&cfg.LocalStorageDir, "s", cfg.LocalStorageDir, "local storage directory")
	fs.StringVar(&cfg.LockoutDB, "b", cfg.LockoutDB, "lockout state database")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	switch cfg.StorageMode {
	case StorageFromConfig, StorageS3, StorageFile, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage mode %q", common.ErrConfiguration, cfg.StorageMode)
	}
	return nil
}
