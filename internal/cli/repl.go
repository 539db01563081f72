package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL chrome.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. *App implements it.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	ListUsers(ctx context.Context) error
	AddUser(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Deactivate(ctx context.Context, username string) error
	Unlock(ctx context.Context, username string) error
	Logs(ctx context.Context, limit string) error
	CheckPassword(ctx context.Context) error
	ChangeMasterPassword(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// It returns on EOF, exit or quit. Handler errors are printed and the loop
// goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("pk %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}

		var cmdErr error
		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				printlnFn("Available commands: login, check, exit")
			case "login":
				cmdErr = a.Login(ctx)
			case "check":
				cmdErr = a.CheckPassword(ctx)
			case "exit", "quit":
				printlnFn("Bye!")
				return
			default:
				printlnFn("Unknown command or login required:", cmd)
			}
		} else {
			switch cmd {
			case "help":
				printlnFn("Available commands: whoami, users, adduser, passwd, deactivate <user>, unlock <user>, logs [n], check, masterpw, logout, exit")
			case "whoami":
				cmdErr = a.WhoAmI(ctx)
			case "users":
				cmdErr = a.ListUsers(ctx)
			case "adduser":
				cmdErr = a.AddUser(ctx)
			case "passwd":
				cmdErr = a.ChangePassword(ctx)
			case "deactivate":
				cmdErr = a.Deactivate(ctx, arg)
			case "unlock":
				cmdErr = a.Unlock(ctx, arg)
			case "logs":
				cmdErr = a.Logs(ctx, arg)
			case "check":
				cmdErr = a.CheckPassword(ctx)
			case "masterpw":
				cmdErr = a.ChangeMasterPassword(ctx)
			case "logout":
				cmdErr = a.Logout(ctx)
			case "exit", "quit":
				printlnFn("Bye!")
				return
			default:
				printlnFn("Unknown command:", cmd)
			}
		}
		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
