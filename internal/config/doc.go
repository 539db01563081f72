// Package config loads runtime settings for the printkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d string   configuration directory (encrypted config, salt, vault)
//	-l string   log level: debug, info, warn, error
//	-m string   storage mode override: s3, file, memory
//	-s string   local storage directory for file mode
//	-b string   bbolt file for persistent lockout state
//
// # JSON schema
//
// Durations use timex.Duration, so "15m" and integer nanoseconds both work:
//
//	{
//	  "config_dir": "/etc/printkeeper",
//	  "directory_blob_key": "system/users.json",
//	  "log_blob_key": "system/access_logs.json",
//	  "lockout_threshold": 5,
//	  "lockout_duration": "15m",
//	  "lockout_db": "/var/lib/printkeeper/lockout.db",
//	  "vault_key_file": false,
//	  "storage_mode": "s3",
//	  "local_mirror": true,
//	  "log_level": "info"
//	}
//
// Master passwords are never read from this file; see configstore.
package config
