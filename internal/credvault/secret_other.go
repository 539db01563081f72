//go:build !windows

package credvault

// PlatformService returns the platform SecretService. There is no native
// per-user protection API wired for this platform, so the vault reports
// itself unsupported; see NewKeyFileService for an opt-in equivalent.
func PlatformService() SecretService { return Unsupported() }
