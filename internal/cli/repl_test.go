package cli

import (
	"bufio"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	args     []string
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) WhoAmI(context.Context) error         { return f.record("whoami") }
func (f *fakeExec) ListUsers(context.Context) error      { return f.record("users") }
func (f *fakeExec) AddUser(context.Context) error        { return f.record("adduser") }
func (f *fakeExec) ChangePassword(context.Context) error { return errors.New("boom") }
func (f *fakeExec) Deactivate(_ context.Context, u string) error {
	f.args = append(f.args, u)
	return f.record("deactivate")
}
func (f *fakeExec) Unlock(_ context.Context, u string) error {
	f.args = append(f.args, u)
	return f.record("unlock")
}
func (f *fakeExec) Logs(_ context.Context, n string) error {
	f.args = append(f.args, n)
	return f.record("logs")
}
func (f *fakeExec) CheckPassword(context.Context) error        { return f.record("check") }
func (f *fakeExec) ChangeMasterPassword(context.Context) error { return f.record("masterpw") }

func TestRunREPL(t *testing.T) {
	chrome := quiet(t)
	f := &fakeExec{}

	in := bufio.NewReader(lines(
		"users",
		"check",
		"login",
		"",
		"whoami",
		"users",
		"adduser",
		"passwd",
		"deactivate bob",
		"unlock carol",
		"logs 7",
		"masterpw",
		"bogus",
		"logout",
		"exit",
		"login",
	))
	runREPL(context.Background(), f, func() string { return "" }, in)

	assert.Equal(t, []string{"check", "login", "whoami", "users", "adduser", "deactivate", "unlock", "logs", "masterpw", "logout"}, f.calls)
	assert.Equal(t, []string{"bob", "carol", "7"}, f.args)
	out := chrome.String()
	assert.Contains(t, out, "login required: users")
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "Unknown command: bogus")
	assert.Contains(t, out, "Bye!")
}

func TestRunREPL_EOF(t *testing.T) {
	quiet(t)
	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(lines("login")))
	assert.Equal(t, []string{"login"}, f.calls)
}
