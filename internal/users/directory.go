// Package users is the multi-user credential store: first-run setup,
// authentication with lockout, role-based user management, password history
// and the access log. Data lives in two blobs (directory and log) behind a
// Persistence.
package users

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/lockout"
	"github.com/dmitrijs2005/printkeeper/internal/logging"
	"github.com/dmitrijs2005/printkeeper/internal/passpolicy"
)

// Limits applied to stored data.
const (
	DefaultBcryptCost = 12
	PasswordHistory   = 5
	MaxLogEntries     = 1000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,}$`)

const msgInvalidCredentials = "Invalid username or password"

// Directory is the in-memory view of the user directory and access log. All
// methods are safe for concurrent use within one process.
type Directory struct {
	mu sync.Mutex

	store   Persistence
	tracker *lockout.Tracker
	logger  logging.Logger

	now        func() time.Time
	cost       int
	systemInfo string
	origin     string

	data     *DirectoryData
	loadInfo LoadInfo
	logs     *LogData
	current  string

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithBcryptCost sets the hash work factor. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(d *Directory) { d.cost = cost }
}

// WithSystemInfo overrides the host description stamped on log entries.
func WithSystemInfo(info string) Option {
	return func(d *Directory) { d.systemInfo = info }
}

// WithOrigin sets the address recorded with failed logins.
func WithOrigin(origin string) Option {
	return func(d *Directory) { d.origin = origin }
}

// NewDirectory returns a Directory over store. A nil tracker gets an
// in-memory one and a nil logger discards output. Nothing is read until the
// first call that needs data, or an explicit Load.
//
// Example:
//
//	dir := users.NewDirectory(store, lockout.NewTracker(lockout.NewMemoryStore()), logger)
//	res, err := dir.Authenticate(ctx, "alice", password)
func NewDirectory(store Persistence, tracker *lockout.Tracker, logger logging.Logger, opts ...Option) *Directory {
	if logger == nil {
		logger = logging.Nop()
	}
	if tracker == nil {
		tracker = lockout.NewTracker(lockout.NewMemoryStore())
	}
	d := &Directory{
		store:      store,
		tracker:    tracker,
		logger:     logger,
		now:        time.Now,
		cost:       DefaultBcryptCost,
		systemInfo: hostInfo(),
		origin:     "local",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func hostInfo() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s", runtime.GOOS, runtime.GOARCH, host)
}

// Load (re)reads the directory from persistence. A recovered payload is
// written back in the current scheme straight away.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked(ctx)
}

func (d *Directory) loadLocked(ctx context.Context) error {
	data, info := d.store.LoadDirectory(ctx)
	d.data, d.loadInfo = data, info

	if info.Recovered() && len(data.Users) > 0 {
		if err := d.store.SaveDirectory(ctx, data); err != nil {
			d.logger.Warn(ctx, "re-persisting recovered user directory failed", "error", err)
		} else {
			d.logger.Info(ctx, "recovered user directory re-persisted", "source", info.Source)
		}
	}
	return nil
}

func (d *Directory) ensureLoaded(ctx context.Context) {
	if d.data == nil {
		_ = d.loadLocked(ctx)
	}
}

// IsInitialized reports whether at least one user exists.
func (d *Directory) IsInitialized(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)
	return len(d.data.Users) > 0
}

// CheckStore reports why the last directory load cannot be trusted to be
// empty: ErrStorage when the store was unreachable, ErrSecurity when it holds
// a directory that could not be read. Nil means an empty result really is a
// fresh install.
func (d *Directory) CheckStore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)
	return d.storeErr()
}

func (d *Directory) storeErr() error {
	switch {
	case d.loadInfo.Err != nil:
		return d.loadInfo.Err
	case d.loadInfo.Unreadable:
		return fmt.Errorf("%w: stored user directory cannot be read with this installation's keys", common.ErrSecurity)
	}
	return nil
}

// InitializeSystem creates the single super_admin of a fresh install. It
// refuses when the store is unreachable or holds a directory it cannot read,
// since either would look empty.
func (d *Directory) InitializeSystem(ctx context.Context, username, password string) (common.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	if len(d.data.Users) > 0 {
		return common.Fail("System is already initialized"), nil
	}
	if err := d.storeErr(); err != nil {
		return common.Fail("User directory is unavailable"), fmt.Errorf("initialize: %w", err)
	}
	if res := validateUsername(username); !res.Success {
		return res, nil
	}
	if res := checkPolicy(password, username); !res.Success {
		return res, nil
	}

	u, err := d.newUser(username, password, RoleSuperAdmin, "")
	if err != nil {
		return common.Fail("Failed to create administrator"), err
	}
	d.data.Users[username] = u
	d.data.PrimaryAdmin = username
	d.data.Policy = passpolicy.CurrentSnapshot(PasswordHistory)
	if err := d.store.SaveDirectory(ctx, d.data); err != nil {
		delete(d.data.Users, username)
		d.data.PrimaryAdmin = ""
		return common.Fail("Failed to save user directory"), err
	}

	d.logAccess(ctx, ActionInitialize, username, true, "system initialized")
	d.logger.Info(ctx, "system initialized", "admin", username)
	return common.Ok("System initialized"), nil
}

// Authenticate checks credentials and opens a session on success. A locked
// account is rejected before the password is looked at.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (common.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	locked, remaining, err := d.tracker.IsLockedOut(username)
	if err != nil {
		return common.Fail("Authentication unavailable"), err
	}
	if locked {
		d.logAccess(ctx, ActionLogin, username, false, "account locked")
		return common.Fail("Account is locked. Try again in " + lockout.FormatRemaining(remaining)), nil
	}

	u, ok := d.data.Users[username]
	if !ok {
		d.dummyCompare(password)
		if _, _, err := d.tracker.RecordFailure(username, d.origin); err != nil {
			return common.Fail(msgInvalidCredentials), err
		}
		d.logAccess(ctx, ActionLogin, username, false, "unknown user")
		return common.Fail(msgInvalidCredentials), nil
	}
	if !u.Active {
		d.logAccess(ctx, ActionLogin, username, false, "account inactive")
		return common.Fail("Account is deactivated"), nil
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		left, lockedFor, err := d.tracker.RecordFailure(username, d.origin)
		if err != nil {
			return common.Fail(msgInvalidCredentials), err
		}
		d.logAccess(ctx, ActionLogin, username, false, "bad password")
		if lockedFor > 0 {
			return common.Fail(fmt.Sprintf("%s. Account locked for %s", msgInvalidCredentials, lockout.FormatRemaining(lockedFor))), nil
		}
		return common.Fail(fmt.Sprintf("%s. %d attempt(s) remaining before lockout", msgInvalidCredentials, left)), nil
	}

	if err := d.tracker.RecordSuccess(username); err != nil {
		d.logger.Warn(ctx, "clearing failure counter failed", "username", username, "error", err)
	}
	now := d.now().UTC()
	prev := u.LastLogin
	u.LastLogin = &now
	if err := d.store.SaveDirectory(ctx, d.data); err != nil {
		u.LastLogin = prev
		return common.Fail("Failed to save user directory"), err
	}
	d.current = username
	d.logAccess(ctx, ActionLogin, username, true, "")
	return common.Ok("Welcome, " + username), nil
}

// Logout ends the current session, if any.
func (d *Directory) Logout(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == "" {
		return
	}
	d.logAccess(ctx, ActionLogout, d.current, true, "")
	d.current = ""
}

// CurrentUser returns the session user.
func (d *Directory) CurrentUser() (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == "" || d.data == nil {
		return User{}, false
	}
	u, ok := d.data.Users[d.current]
	if !ok {
		return User{}, false
	}
	return u.public(), true
}

// CreateUser adds an account. createdBy must be an active super_admin.
func (d *Directory) CreateUser(ctx context.Context, username, password string, role Role, createdBy string) (common.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	creator, ok := d.data.Users[createdBy]
	if !ok || !creator.Active || creator.Role != RoleSuperAdmin {
		d.logAccess(ctx, ActionCreateUser, createdBy, false, "not permitted to create "+username)
		return common.Fail("Permission denied: super_admin role required"), nil
	}
	if res := validateUsername(username); !res.Success {
		return res, nil
	}
	if _, ok := ParseRole(string(role)); !ok {
		return common.Fail(fmt.Sprintf("Unknown role %q", role)), nil
	}
	if _, exists := d.data.Users[username]; exists {
		return common.Fail(fmt.Sprintf("User %q already exists", username)), nil
	}
	if res := checkPolicy(password, username); !res.Success {
		return res, nil
	}

	u, err := d.newUser(username, password, role, createdBy)
	if err != nil {
		return common.Fail("Failed to create user"), err
	}
	d.data.Users[username] = u
	if err := d.store.SaveDirectory(ctx, d.data); err != nil {
		delete(d.data.Users, username)
		return common.Fail("Failed to save user directory"), err
	}

	d.logAccess(ctx, ActionCreateUser, createdBy, true, fmt.Sprintf("created %s (%s)", username, role))
	return common.Ok(fmt.Sprintf("User %s created", username)), nil
}

// ChangePassword verifies oldPassword, then rotates the hash into history.
// The new password may not match the current hash or any of the last
// PasswordHistory hashes.
func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (common.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	u, ok := d.data.Users[username]
	if !ok || !u.Active {
		return common.Fail("User not found or inactive"), nil
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		d.logAccess(ctx, ActionChangePassword, username, false, "wrong current password")
		return common.Fail("Current password is incorrect"), nil
	}
	if res := checkPolicy(newPassword, username); !res.Success {
		return res, nil
	}
	for _, h := range append([]string{u.PasswordHash}, u.PasswordHistory...) {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(newPassword)) == nil {
			d.logAccess(ctx, ActionChangePassword, username, false, "password reuse")
			return common.Fail(fmt.Sprintf("Password was used recently; choose one not among the last %d", PasswordHistory)), nil
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), d.cost)
	if err != nil {
		return common.Fail("Failed to hash password"), fmt.Errorf("hash password: %w", err)
	}

	prevHash, prevHistory, prevChange := u.PasswordHash, u.PasswordHistory, u.LastPasswordChange
	u.PasswordHistory = rotateHistory(u.PasswordHistory, u.PasswordHash)
	u.PasswordHash = string(hash)
	u.LastPasswordChange = d.now().UTC()
	if err := d.store.SaveDirectory(ctx, d.data); err != nil {
		u.PasswordHash, u.PasswordHistory, u.LastPasswordChange = prevHash, prevHistory, prevChange
		return common.Fail("Failed to save user directory"), err
	}

	d.logAccess(ctx, ActionChangePassword, username, true, "")
	return common.Ok("Password changed"), nil
}

func rotateHistory(history []string, old string) []string {
	h := append(slices.Clone(history), old)
	if len(h) > PasswordHistory {
		h = h[len(h)-PasswordHistory:]
	}
	return h
}

// DeactivateUser disables an account. Needs a super_admin session; the
// primary admin cannot be deactivated.
func (d *Directory) DeactivateUser(ctx context.Context, username string) (common.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	if res := d.requireSuperAdmin(); !res.Success {
		d.logAccess(ctx, ActionDeactivateUser, d.current, false, "not permitted to deactivate "+username)
		return res, nil
	}
	u, ok := d.data.Users[username]
	if !ok {
		return common.Fail(fmt.Sprintf("User %q not found", username)), nil
	}
	if username == d.data.PrimaryAdmin {
		return common.Fail("The primary administrator cannot be deactivated"), nil
	}
	if !u.Active {
		return common.Ok(fmt.Sprintf("User %s is already inactive", username)), nil
	}

	u.Active = false
	if err := d.store.SaveDirectory(ctx, d.data); err != nil {
		u.Active = true
		return common.Fail("Failed to save user directory"), err
	}
	d.logAccess(ctx, ActionDeactivateUser, d.current, true, "deactivated "+username)
	return common.Ok(fmt.Sprintf("User %s deactivated", username)), nil
}

// UnlockAccount clears lockout state for username. Needs a super_admin
// session.
func (d *Directory) UnlockAccount(ctx context.Context, username string) (common.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	if res := d.requireSuperAdmin(); !res.Success {
		d.logAccess(ctx, ActionUnlockAccount, d.current, false, "not permitted to unlock "+username)
		return res, nil
	}
	if err := d.tracker.Unlock(username); err != nil {
		return common.Fail("Failed to unlock account"), err
	}
	d.logAccess(ctx, ActionUnlockAccount, d.current, true, "unlocked "+username)
	return common.Ok(fmt.Sprintf("Account %s unlocked", username)), nil
}

// ListUsers returns every user sorted by name, without hash material.
func (d *Directory) ListUsers(ctx context.Context) []User {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)

	out := make([]User, 0, len(d.data.Users))
	for _, u := range d.data.Users {
		out = append(out, u.public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// PrimaryAdmin returns the canonical administrator account name.
func (d *Directory) PrimaryAdmin(ctx context.Context) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded(ctx)
	return d.data.PrimaryAdmin
}

// GetAccessLogs returns up to limit entries, newest first. limit <= 0 means
// all retained entries.
func (d *Directory) GetAccessLogs(ctx context.Context, limit int) []AccessLogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLogs(ctx)

	n := len(d.logs.Logs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AccessLogEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, d.logs.Logs[i])
	}
	return out
}

// LogAccess appends an audit entry. Failures to persist are logged, never
// returned: auditing must not break the operation being audited.
func (d *Directory) LogAccess(ctx context.Context, action, username string, success bool, details string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logAccess(ctx, action, username, success, details)
}

func (d *Directory) logAccess(ctx context.Context, action, username string, success bool, details string) {
	d.ensureLogs(ctx)
	d.logs.Logs = append(d.logs.Logs, AccessLogEntry{
		ID:         uuid.NewString(),
		Timestamp:  d.now().UTC(),
		Action:     action,
		Username:   username,
		Success:    success,
		Details:    details,
		SystemInfo: d.systemInfo,
	})
	if n := len(d.logs.Logs); n > MaxLogEntries {
		d.logs.Logs = slices.Clone(d.logs.Logs[n-MaxLogEntries:])
	}
	if err := d.store.SaveLogs(ctx, d.logs); err != nil {
		d.logger.Error(ctx, "access log save failed", "action", action, "username", username, "error", err)
	}
}

func (d *Directory) ensureLogs(ctx context.Context) {
	if d.logs != nil {
		return
	}
	logs, info := d.store.LoadLogs(ctx)
	d.logs = logs
	if info.Recovered() && len(logs.Logs) > 0 {
		if err := d.store.SaveLogs(ctx, logs); err != nil {
			d.logger.Warn(ctx, "re-persisting recovered access log failed", "error", err)
		}
	}
}

func (d *Directory) requireSuperAdmin() common.Result {
	if d.current == "" {
		return common.Fail("Not authenticated")
	}
	u, ok := d.data.Users[d.current]
	if !ok || !u.Active || u.Role != RoleSuperAdmin {
		return common.Fail("Permission denied: super_admin role required")
	}
	return common.Ok("")
}

func (d *Directory) newUser(username, password string, role Role, createdBy string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := d.now().UTC()
	return &User{
		Username:           username,
		PasswordHash:       string(hash),
		PasswordHistory:    []string{},
		Role:               role,
		Permissions:        PermissionsFor(role),
		Active:             true,
		CreatedAt:          now,
		CreatedBy:          createdBy,
		LastPasswordChange: now,
	}, nil
}

// dummyCompare spends the same bcrypt work on unknown usernames as on real
// ones.
func (d *Directory) dummyCompare(password string) {
	d.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), d.cost)
		if err == nil {
			d.dummyHash = h
		}
	})
	if d.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(d.dummyHash, []byte(password))
	}
}

func validateUsername(username string) common.Result {
	if !usernamePattern.MatchString(username) {
		return common.Fail("Username must be at least 3 characters of letters, digits, '-' or '_'")
	}
	return common.Ok("")
}

func checkPolicy(password, username string) common.Result {
	a := passpolicy.Analyze(password, username)
	if a.IsValid {
		return common.Ok("")
	}
	msg := fmt.Sprintf("Password rejected (score %d, %s)", a.Score, a.Strength)
	if len(a.Errors) > 0 {
		msg += ": " + strings.Join(a.Errors, "; ")
	}
	return common.Fail(msg)
}
