package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/jack-avery/srpk/vault"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Prompter reads passwords. On a terminal input is not echoed; otherwise a
// line is read from the input, which keeps the tool scriptable.
type Prompter struct {
	out    io.Writer
	fd     int
	isTerm bool
	lines  *bufio.Reader
}

// NewPrompter prompts on out and reads from in.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	fd := int(in.Fd())
	return &Prompter{
		out:    out,
		fd:     fd,
		isTerm: term.IsTerminal(fd),
		lines:  bufio.NewReader(in),
	}
}

func newLinePrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{out: out, lines: bufio.NewReader(in)}
}

// ReadPassword prints prompt and returns what the user typed, without the
// line ending. The caller owns the returned slice and should zero it.
func (p *Prompter) ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprintf(p.out, "%s: ", prompt)
	if p.isTerm {
		pw, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		return pw, errors.Wrap(err, "read password")
	}

	line, err := p.lines.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		vault.Zero(line)
		return nil, errors.Wrap(err, "read password")
	}
	n := len(bytes.TrimRight(line, "\r\n"))
	pw := make([]byte, n)
	copy(pw, line)
	vault.Zero(line)
	return pw, nil
}

// ReadNewPassword asks twice and fails unless both answers match.
func (p *Prompter) ReadNewPassword(prompt string) ([]byte, error) {
	pw, err := p.ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	confirm, err := p.ReadPassword("confirm " + prompt)
	if err != nil {
		vault.Zero(pw)
		return nil, err
	}
	defer vault.Zero(confirm)
	if !bytes.Equal(pw, confirm) {
		vault.Zero(pw)
		return nil, errors.Wrap(vault.ErrInvalidConfig, "entries do not match")
	}
	return pw, nil
}
