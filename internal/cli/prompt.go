package cli

import (
	"bufio"
	"fmt"
	"io"
)

// TerminalPrompt asks for the master password on the console. It satisfies
// configstore.PasswordPrompt.
type TerminalPrompt struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewTerminalPrompt reads answers from reader and writes prompts to out.
func NewTerminalPrompt(reader *bufio.Reader, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{reader: reader, out: out}
}

// Ask reads the master password. A first-time password must be typed twice.
// An empty answer or a read error cancels.
func (p *TerminalPrompt) Ask(firstTime, allowRemember bool) (string, bool, bool) {
	label := "Master password"
	if firstTime {
		label = "Choose a master password"
	}
	pw, err := GetPassword(p.reader, label, p.out)
	if err != nil || pw == "" {
		return "", false, false
	}
	if firstTime {
		again, err := GetPassword(p.reader, "Repeat the master password", p.out)
		if err != nil {
			return "", false, false
		}
		if again != pw {
			fmt.Fprintln(p.out, "Passwords do not match")
			return "", false, false
		}
	}

	remember := false
	if allowRemember {
		remember = GetConfirmation(p.reader, "Remember the master password on this computer?", p.out)
	}
	return pw, remember, true
}
