// Package paths locates the files printkeeper reads and writes. Components
// receive a Resolver through their constructors, so tests and alternative
// installs swap the strategy instead of patching globals.
package paths

import (
	"os"
	"path/filepath"
)

// File names inside the configuration directory.
const (
	ConfigFileName = ".config.enc"
	SaltFileName   = ".salt"
	VaultFileName  = ".credentials.vault"
	BackupDirName  = "backup"
)

// Resolver is the DirectoryLocator strategy used by the secure stores.
type Resolver interface {
	// ConfigDir is the directory holding the encrypted config, salt and vault.
	ConfigDir() string

	// SaltPath is the current salt file location.
	SaltPath() string

	// LegacySaltPaths lists salt files written by earlier installs, in the
	// order they should be tried during salt recovery.
	LegacySaltPaths() []string

	// FallbackPaths lists on-disk copies of the named blob (e.g.
	// "users.json"), most trusted first.
	FallbackPaths(name string) []string
}

// Locator is the default Resolver rooted at a configuration directory.
type Locator struct {
	Dir     string
	Home    string
	WorkDir string
	// Legacy holds extra legacy salt locations checked after the built-in ones.
	Legacy []string
}

// NewLocator builds a Locator for dir, filling home and working directory from
// the environment. Empty dir means DefaultConfigDir().
func NewLocator(dir string) *Locator {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	home, _ := os.UserHomeDir()
	wd, _ := os.Getwd()
	return &Locator{Dir: dir, Home: home, WorkDir: wd}
}

// DefaultConfigDir is <user config dir>/printkeeper, or ./.printkeeper when the
// platform reports no config dir.
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return ".printkeeper"
	}
	return filepath.Join(base, "printkeeper")
}

func (l *Locator) ConfigDir() string { return l.Dir }

func (l *Locator) SaltPath() string { return filepath.Join(l.Dir, SaltFileName) }

// LegacySaltPaths covers older installs that kept the salt in the profile
// root or next to the binary.
func (l *Locator) LegacySaltPaths() []string {
	var out []string
	if l.Home != "" {
		out = append(out,
			filepath.Join(l.Home, ".printkeeper", SaltFileName),
			filepath.Join(l.Home, ".printkeeper_salt"),
		)
	}
	if l.WorkDir != "" {
		out = append(out, filepath.Join(l.WorkDir, SaltFileName))
	}
	out = append(out, l.Legacy...)
	return dedupe(out, l.SaltPath())
}

// FallbackPaths returns the prioritized local copies of a blob: config dir,
// home profile dir, backup dir, then working-directory variants.
func (l *Locator) FallbackPaths(name string) []string {
	out := []string{filepath.Join(l.Dir, name)}
	if l.Home != "" {
		out = append(out, filepath.Join(l.Home, ".printkeeper", name))
	}
	out = append(out, filepath.Join(l.Dir, BackupDirName, name))
	if l.WorkDir != "" {
		out = append(out,
			filepath.Join(l.WorkDir, name),
			filepath.Join(l.WorkDir, "system", name),
			filepath.Join(l.WorkDir, "data", name),
		)
	}
	return dedupe(out, "")
}

func dedupe(in []string, exclude string) []string {
	seen := map[string]struct{}{}
	if exclude != "" {
		seen[filepath.Clean(exclude)] = struct{}{}
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		c := filepath.Clean(p)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
