package users

import (
	"slices"
	"time"

	"github.com/dmitrijs2005/printkeeper/internal/passpolicy"
)

// SchemaVersion is written into every saved directory.
const SchemaVersion = "2.0"

// Role names a permission set.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Permissions granted per role.
const (
	PermAll   = "all"
	PermRead  = "read"
	PermWrite = "write"
)

var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {PermAll},
	RoleAdmin:      {PermRead, PermWrite},
	RoleViewer:     {PermRead},
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := rolePermissions[r]
	return r, ok
}

// PermissionsFor returns a fresh copy of the role's permission set.
func PermissionsFor(r Role) []string {
	return slices.Clone(rolePermissions[r])
}

// User is one account in the directory. PasswordHash and PasswordHistory
// hold bcrypt hashes and are blanked in copies handed out to callers.
type User struct {
	Username           string     `json:"username"`
	PasswordHash       string     `json:"password_hash"`
	PasswordHistory    []string   `json:"password_history"`
	Role               Role       `json:"role"`
	Permissions        []string   `json:"permissions"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	CreatedBy          string     `json:"created_by,omitempty"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	LastPasswordChange time.Time  `json:"last_password_change"`
}

// HasPermission reports whether the user holds perm, directly or via "all".
func (u *User) HasPermission(perm string) bool {
	return slices.Contains(u.Permissions, PermAll) || slices.Contains(u.Permissions, perm)
}

// public returns a copy safe to hand to UI code: no hash material.
func (u *User) public() User {
	cp := *u
	cp.PasswordHash = ""
	cp.PasswordHistory = nil
	cp.Permissions = slices.Clone(u.Permissions)
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return cp
}

// DirectoryData is the persisted user directory. It is replaced wholesale on
// every save.
type DirectoryData struct {
	Users         map[string]*User    `json:"users"`
	SchemaVersion string              `json:"schema_version,omitempty"`
	PrimaryAdmin  string              `json:"primary_admin,omitempty"`
	Policy        passpolicy.Snapshot `json:"policy"`
}

func emptyDirectory() *DirectoryData {
	return &DirectoryData{Users: map[string]*User{}, SchemaVersion: SchemaVersion}
}

// normalize repairs fields older payloads may lack.
func (d *DirectoryData) normalize() {
	if d.Users == nil {
		d.Users = map[string]*User{}
	}
	for name, u := range d.Users {
		if u == nil {
			delete(d.Users, name)
			continue
		}
		if u.Username == "" {
			u.Username = name
		}
		if u.Role == "" {
			u.Role = RoleViewer
		}
		if len(u.Permissions) == 0 {
			u.Permissions = PermissionsFor(u.Role)
		}
	}
	if d.PrimaryAdmin == "" {
		for name, u := range d.Users {
			if u.Role == RoleSuperAdmin && (d.PrimaryAdmin == "" || u.CreatedAt.Before(d.Users[d.PrimaryAdmin].CreatedAt)) {
				d.PrimaryAdmin = name
			}
		}
	}
}

// AccessLogEntry is one audit record.
type AccessLogEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Username   string    `json:"username"`
	Success    bool      `json:"success"`
	Details    string    `json:"details,omitempty"`
	SystemInfo string    `json:"system_info,omitempty"`
}

// LogData is the persisted access log ring.
type LogData struct {
	Logs []AccessLogEntry `json:"logs"`
}

// Access log actions.
const (
	ActionInitialize     = "initialize"
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionCreateUser     = "create_user"
	ActionChangePassword = "change_password"
	ActionDeactivateUser = "deactivate_user"
	ActionUnlockAccount  = "unlock_account"
	ActionChangeMaster   = "change_master_password"
)
