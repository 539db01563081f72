//go:build !windows

package filex

// Hide is a no-op outside windows; secure files are dot-prefixed instead.
func Hide(path string) error { return nil }

// Unhide is a no-op outside windows.
func Unhide(path string) error { return nil }
