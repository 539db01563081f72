package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("  bucket-a \n")), "Bucket", &out)
	require.NoError(t, err)
	assert.Equal(t, "bucket-a", got)
	assert.Equal(t, "Bucket\n> ", out.String())

	got, err = GetSimpleText(bufio.NewReader(strings.NewReader("tail")), "x", &out)
	require.NoError(t, err)
	assert.Equal(t, "tail", got)

	_, err = GetSimpleText(bufio.NewReader(strings.NewReader("")), "x", &out)
	assert.Error(t, err)
}

func TestGetPassword_Terminal(t *testing.T) {
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })
	isTerminal = func(int) bool { return true }

	readPassword = func(int) ([]byte, error) { return []byte("s3cr3t"), nil }
	var out bytes.Buffer
	got, err := GetPassword(bufio.NewReader(strings.NewReader("")), "Password", &out)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got)
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(bufio.NewReader(strings.NewReader("")), "Password", &out)
	assert.EqualError(t, err, "boom")
}

func TestGetPassword_Pipe(t *testing.T) {
	quiet(t)
	got, err := GetPassword(bufio.NewReader(strings.NewReader("piped\n")), "Password", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "piped", got)
}

func TestGetConfirmation(t *testing.T) {
	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		got := GetConfirmation(bufio.NewReader(strings.NewReader(in)), "Sure?", &bytes.Buffer{})
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestTerminalPrompt_Ask(t *testing.T) {
	quiet(t)
	tests := []struct {
		name         string
		input        string
		firstTime    bool
		remember     bool
		wantPassword string
		wantRemember bool
		wantOK       bool
	}{
		{"existing", "pw-one\n", false, false, "pw-one", false, true},
		{"existing remember", "pw-one\ny\n", false, true, "pw-one", true, true},
		{"first time confirmed", "pw-two\npw-two\nn\n", true, true, "pw-two", false, true},
		{"first time mismatch", "pw-two\npw-three\n", true, false, "", false, false},
		{"empty cancels", "\n", false, false, "", false, false},
		{"eof cancels", "", false, false, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTerminalPrompt(bufio.NewReader(strings.NewReader(tt.input)), &bytes.Buffer{})
			pw, remember, ok := p.Ask(tt.firstTime, tt.remember)
			assert.Equal(t, tt.wantPassword, pw)
			assert.Equal(t, tt.wantRemember, remember)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
