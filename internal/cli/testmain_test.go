package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// quiet swaps the terminal and logging seams for the duration of a test and
// returns the buffer REPL chrome is written to.
func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var chrome bytes.Buffer

	origTerm, origEnv, origLog, origCost, origPrint := isTerminal, getenv, logOutput, bcryptCost, printlnFn
	isTerminal = func(int) bool { return false }
	getenv = func(string) string { return "" }
	logOutput = io.Discard
	bcryptCost = bcrypt.MinCost
	printlnFn = func(a ...any) (int, error) { return fmt.Fprintln(&chrome, a...) }
	t.Cleanup(func() {
		isTerminal, getenv, logOutput, bcryptCost, printlnFn = origTerm, origEnv, origLog, origCost, origPrint
	})
	return &chrome
}

func lines(l ...string) *strings.Reader {
	return strings.NewReader(strings.Join(l, "\n") + "\n")
}
