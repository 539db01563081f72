package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/printkeeper/internal/common"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "printkeeper.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"directory_blob_key": "site-a/users.json",
		"lockout_threshold":  3,
		"lockout_duration":   "30m",
		"lockout_db":         "/var/lib/printkeeper/lockout.db",
		"vault_key_file":     true,
		"local_mirror":       false,
	})

	t.Run("overlays only the fields present", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "site-a/users.json", cfg.DirectoryBlobKey)
		assert.Equal(t, common.AccessLogBlobKey, cfg.LogBlobKey)
		assert.Equal(t, 3, cfg.LockoutThreshold)
		assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
		assert.Equal(t, "/var/lib/printkeeper/lockout.db", cfg.LockoutDB)
		assert.True(t, cfg.VaultKeyFile)
		assert.False(t, cfg.LocalMirror)
	})

	t.Run("no flag, no change", func(t *testing.T) {
		cfg := &Config{LogLevel: "error"}
		require.NoError(t, parseJson(cfg, []string{"-l", "debug"}))
		assert.Equal(t, &Config{LogLevel: "error"}, cfg)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ not json`), 0o600))

		err := parseJson(&Config{}, []string{"-c", bad})
		assert.True(t, errors.Is(err, common.ErrConfiguration))
	})

	t.Run("missing file", func(t *testing.T) {
		err := parseJson(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "absent.json")})
		assert.True(t, errors.Is(err, common.ErrConfiguration))
	})
}
