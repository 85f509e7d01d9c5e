package credential

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// TerminalPrompter reads passwords from the controlling terminal with echo
// disabled.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) PromptSecret(ctx context.Context, user string) (string, error) {
	return p.readPassword(ctx, fmt.Sprintf("Password for %s (used for all %s@ entries): ", user, user))
}

// PromptHost asks for a single host's password, for entries that have no
// cached secret.
func (p *TerminalPrompter) PromptHost(ctx context.Context, user, host string) (string, error) {
	return p.readPassword(ctx, fmt.Sprintf("%s@%s's password: ", user, host))
}

func (p *TerminalPrompter) readPassword(ctx context.Context, prompt string) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	state, err := term.GetState(fd)
	if err != nil {
		return "", errors.Wrap(err, "failed to read terminal state")
	}

	fmt.Fprint(p.Out, prompt)
	defer fmt.Fprintln(p.Out)
	return readUntilDone(ctx,
		func() ([]byte, error) { return term.ReadPassword(fd) },
		func() { term.Restore(fd, state) })
}

// readUntilDone returns as soon as ctx is done, even though read keeps
// blocking on the terminal. restore puts echo back on in that case.
func readUntilDone(ctx context.Context, read func() ([]byte, error), restore func()) (string, error) {
	type result struct {
		secret []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		secret, err := read()
		done <- result{secret, err}
	}()

	select {
	case <-ctx.Done():
		restore()
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", errors.Wrap(r.err, "failed to read password")
		}
		return string(r.secret), nil
	}
}
