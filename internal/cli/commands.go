package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/passpolicy"
	"github.com/dmitrijs2005/printkeeper/internal/users"
)

const defaultLogLimit = 20

func (a *App) report(res common.Result, err error) error {
	if res.Message != "" {
		fmt.Fprintln(a.out, res.Message)
	}
	return err
}

func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	return a.report(a.dir.Authenticate(ctx, username, password))
}

func (a *App) Logout(ctx context.Context) error {
	a.dir.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI(_ context.Context) error {
	u, ok := a.dir.CurrentUser()
	if !ok {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (%s) permissions: %s\n", u.Username, u.Role, strings.Join(u.Permissions, ","))
	return nil
}

func (a *App) ListUsers(ctx context.Context) error {
	if !a.allowed(users.PermWrite) {
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tACTIVE\tLAST LOGIN")
	for _, u := range a.dir.ListUsers(ctx) {
		last := "never"
		if u.LastLogin != nil {
			last = u.LastLogin.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.Username, u.Role, u.Active, last)
	}
	return tw.Flush()
}

func (a *App) AddUser(ctx context.Context) error {
	me, ok := a.dir.CurrentUser()
	if !ok {
		return nil
	}
	username, err := GetSimpleText(a.reader, "New username", a.out)
	if err != nil {
		return err
	}
	roleName, err := GetSimpleText(a.reader, "Role (viewer/admin/super_admin)", a.out)
	if err != nil {
		return err
	}
	role, ok := users.ParseRole(strings.ToLower(roleName))
	if !ok {
		fmt.Fprintf(a.out, "Unknown role %q\n", roleName)
		return nil
	}
	password, err := a.newPassword()
	if err != nil || password == "" {
		return err
	}
	return a.report(a.dir.CreateUser(ctx, username, password, role, me.Username))
}

func (a *App) ChangePassword(ctx context.Context) error {
	me, ok := a.dir.CurrentUser()
	if !ok {
		return nil
	}
	old, err := GetPassword(a.reader, "Current password", a.out)
	if err != nil {
		return err
	}
	password, err := a.newPassword()
	if err != nil || password == "" {
		return err
	}
	return a.report(a.dir.ChangePassword(ctx, me.Username, old, password))
}

func (a *App) Deactivate(ctx context.Context, username string) error {
	if username == "" {
		fmt.Fprintln(a.out, "Usage: deactivate <user>")
		return nil
	}
	return a.report(a.dir.DeactivateUser(ctx, username))
}

func (a *App) Unlock(ctx context.Context, username string) error {
	if username == "" {
		fmt.Fprintln(a.out, "Usage: unlock <user>")
		return nil
	}
	return a.report(a.dir.UnlockAccount(ctx, username))
}

func (a *App) Logs(ctx context.Context, limit string) error {
	if !a.allowed(users.PermAll) {
		return nil
	}
	n := defaultLogLimit
	if limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v <= 0 {
			fmt.Fprintln(a.out, "Usage: logs [n]")
			return nil
		}
		n = v
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tUSER\tOK\tDETAILS")
	for _, e := range a.dir.GetAccessLogs(ctx, n) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.Action, e.Username, e.Success, e.Details)
	}
	return tw.Flush()
}

// CheckPassword scores a password without storing it.
func (a *App) CheckPassword(_ context.Context) error {
	password, err := GetPassword(a.reader, "Password to check", a.out)
	if err != nil {
		return err
	}
	username := ""
	if u, ok := a.dir.CurrentUser(); ok {
		username = u.Username
	}
	res := passpolicy.Analyze(password, username)
	fmt.Fprintf(a.out, "Score %d/100 (%s), valid: %t\n", res.Score, res.Strength, res.IsValid)
	for _, e := range res.Errors {
		fmt.Fprintln(a.out, " -", e)
	}
	return nil
}

func (a *App) ChangeMasterPassword(ctx context.Context) error {
	if !a.allowed(users.PermAll) {
		return nil
	}
	old, err := GetPassword(a.reader, "Current master password", a.out)
	if err != nil {
		return err
	}
	password, err := a.newPassword()
	if err != nil || password == "" {
		return err
	}
	if err := a.configs.ChangeMasterPassword(ctx, old, password); err != nil {
		return err
	}
	// re-seal the shared blobs under the new key
	if err := a.dir.Load(ctx); err != nil {
		return err
	}
	a.dir.LogAccess(ctx, users.ActionChangeMaster, a.currentName(), true, "")
	fmt.Fprintln(a.out, "Master password changed")
	return nil
}

func (a *App) allowed(perm string) bool {
	u, ok := a.dir.CurrentUser()
	if ok && u.HasPermission(perm) {
		return true
	}
	fmt.Fprintln(a.out, "Permission denied")
	return false
}

func (a *App) currentName() string {
	u, _ := a.dir.CurrentUser()
	return u.Username
}
