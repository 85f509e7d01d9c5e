package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrshanahan/scp-fetch/internal/localproc"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	scpBinary     = "scp"
	sshpassBinary = "sshpass"
	sshpassEnvVar = "SSHPASS"
)

func NewScpTransport() config.Transport {
	return &scpTransport{
		run:      localproc.Run,
		lookPath: exec.LookPath,
		stdin:    os.Stdin,
	}
}

type scpTransport struct {
	run      localproc.RunFunc
	lookPath func(string) (string, error)
	stdin    io.Reader
}

func (t *scpTransport) Name() string { return "scp" }

// CheckSecretInjection reports whether sshpass is available to feed the
// password to scp.
func (t *scpTransport) CheckSecretInjection() error {
	if _, err := t.lookPath(sshpassBinary); err != nil {
		return errors.Wrapf(config.ErrCredentialHelperMissing, "could not find %s on path: %v", sshpassBinary, err)
	}
	return nil
}

func (t *scpTransport) Copy(ctx context.Context, src config.Source, dstPath string, secret string, timeout time.Duration) error {
	cmd := t.command(src, dstPath, secret, timeout)
	zerolog.Ctx(ctx).Debug().
		Str("command", cmd.Redacted()).
		Bool("has_secret", secret != "").
		Msg("invoking scp")

	_, stderr, err := t.run(ctx, cmd)
	if err != nil {
		if msg := lastLine(stderr); msg != "" {
			return errors.Wrapf(err, "copy of %s failed: %s", src, msg)
		}
		return errors.Wrapf(err, "copy of %s failed", src)
	}
	return nil
}

// The secret travels in the environment only, never in argv.
func (t *scpTransport) command(src config.Source, dstPath string, secret string, timeout time.Duration) localproc.Command {
	args := []string{
		"-o", fmt.Sprintf("ConnectTimeout=%d", connectTimeoutSeconds(timeout)),
		src.String(),
		localPath(dstPath),
	}

	if secret == "" {
		// Leave the terminal attached so scp can prompt or use the agent.
		return localproc.Command{Name: scpBinary, Args: args, Stdin: t.stdin}
	}
	return localproc.Command{
		Name: sshpassBinary,
		Args: append([]string{"-e", scpBinary}, args...),
		Env:  []string{sshpassEnvVar + "=" + secret},
	}
}

func connectTimeoutSeconds(timeout time.Duration) int {
	secs := int(timeout / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// scp reads "a:b" as a remote source, so relative paths with a colon get an
// explicit ./ prefix.
func localPath(p string) string {
	if !filepath.IsAbs(p) && strings.Contains(p, ":") {
		return "." + string(filepath.Separator) + p
	}
	return p
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
