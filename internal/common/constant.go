package common

// Environment variables consulted for the master password.
const (
	EnvMasterPassword       = "PRINTKEEPER_MASTER_PASSWORD"
	EnvLegacyMasterPassword = "PRINTKEEPER_LEGACY_MASTER_PASSWORD"
)

// Default remote blob keys.
const (
	DirectoryBlobKey = "system/users.json"
	AccessLogBlobKey = "system/access_logs.json"
)
