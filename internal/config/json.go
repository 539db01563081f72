package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/flagx"
	"github.com/dmitrijs2005/printkeeper/internal/timex"
)

// JsonConfig is a DTO used only for JSON unmarshalling. Pointer fields tell
// "absent" apart from zero values so the file only overrides what it sets.
type JsonConfig struct {
	ConfigDir               *string         `json:"config_dir"`
	DirectoryBlobKey        *string         `json:"directory_blob_key"`
	LogBlobKey              *string         `json:"log_blob_key"`
	MasterPasswordEnv       *string         `json:"master_password_env"`
	LegacyMasterPasswordEnv *string         `json:"legacy_master_password_env"`
	LockoutThreshold        *int            `json:"lockout_threshold"`
	LockoutDuration         *timex.Duration `json:"lockout_duration"`
	LockoutDB               *string         `json:"lockout_db"`
	VaultKeyFile            *bool           `json:"vault_key_file"`
	StorageMode             *string         `json:"storage_mode"`
	LocalStorageDir         *string         `json:"local_storage_dir"`
	LocalMirror             *bool           `json:"local_mirror"`
	LogLevel                *string         `json:"log_level"`
}

// parseJson overlays cfg with the JSON file named by -c/-config in args.
// No flag means no change.
func parseJson(cfg *Config, args []string) error {
	file := flagx.JsonConfigFlags(args)
	if file == "" {
		return nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrConfiguration, file, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", common.ErrConfiguration, file, err)
	}

	setString(&cfg.ConfigDir, jc.ConfigDir)
	setString(&cfg.DirectoryBlobKey, jc.DirectoryBlobKey)
	setString(&cfg.LogBlobKey, jc.LogBlobKey)
	setString(&cfg.MasterPasswordEnv, jc.MasterPasswordEnv)
	setString(&cfg.LegacyMasterPasswordEnv, jc.LegacyMasterPasswordEnv)
	setString(&cfg.LockoutDB, jc.LockoutDB)
	setString(&cfg.StorageMode, jc.StorageMode)
	setString(&cfg.LocalStorageDir, jc.LocalStorageDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.LockoutThreshold != nil {
		cfg.LockoutThreshold = *jc.LockoutThreshold
	}
	if jc.LockoutDuration != nil {
		cfg.LockoutDuration = jc.LockoutDuration.Duration
	}
	if jc.VaultKeyFile != nil {
		cfg.VaultKeyFile = *jc.VaultKeyFile
	}
	if jc.LocalMirror != nil {
		cfg.LocalMirror = *jc.LocalMirror
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
