// Package common defines shared constants, sentinel errors and small helpers
// used across printkeeper components. Callers should use errors.Is to match
// the sentinel values; concrete failures wrap them with fmt.Errorf("%w").
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrConfiguration signals missing or invalid remote credentials, or an
	// absent user directory.
	ErrConfiguration = errors.New("configuration error")

	// ErrSecurity signals an integrity-tag mismatch or a decryption failure
	// after every recovery attempt was exhausted.
	ErrSecurity = errors.New("security error")

	// ErrAuthentication covers bad credentials, locked or inactive accounts
	// and calls that need an authenticated session.
	ErrAuthentication = errors.New("authentication error")

	// ErrValidation covers policy violations: weak password, bad username,
	// duplicate user, password reuse.
	ErrValidation = errors.New("validation error")

	// ErrPermission is returned when the filesystem refuses a write.
	ErrPermission = errors.New("permission denied")

	// ErrStorage is a transient failure of the storage collaborator.
	ErrStorage = errors.New("storage error")

	// ErrKeyNotReady is returned when key material is used before it was
	// derived. It is a precondition failure, distinct from ErrSecurity.
	ErrKeyNotReady = errors.New("encryption key not initialized")
)
