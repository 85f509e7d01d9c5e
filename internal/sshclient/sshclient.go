package sshclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const DefaultPort = "22"

type SSHClient struct {
	Client *ssh.Client
}

func (c *SSHClient) Close() {
	c.Client.Close()
}

// InteractivePrompt is consulted when no secret is available, mirroring the
// terminal prompt the scp binary would show.
type InteractivePrompt func(ctx context.Context, user, host string) (string, error)

type DialOptions struct {
	User    string
	Host    string
	Secret  string
	Timeout time.Duration
	Prompt  InteractivePrompt
	// Defaults to ~/.ssh/known_hosts; host keys are not checked when the
	// file does not exist.
	KnownHostsPath string
}

func CreateSshClient(ctx context.Context, opts DialOptions) (*SSHClient, error) {
	logger := zerolog.Ctx(ctx)

	hostKeys, err := hostKeyCallback(ctx, opts.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	addr := opts.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}

	logger.Debug().Str("addr", addr).Str("user", opts.User).Dur("timeout", opts.Timeout).Msg("dialing ssh server")

	// The deadline covers the handshake as well as the TCP connect, except
	// while the user is typing a password.
	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %s", addr)
	}
	armDeadline := func() {
		if opts.Timeout > 0 {
			conn.SetDeadline(time.Now().Add(opts.Timeout))
		}
	}
	armDeadline()

	if opts.Prompt != nil {
		prompt := opts.Prompt
		opts.Prompt = func(ctx context.Context, user, host string) (string, error) {
			conn.SetDeadline(time.Time{})
			defer armDeadline()
			return prompt(ctx, user, host)
		}
	}
	auth, closeAgent := authMethods(ctx, opts)
	defer closeAgent()

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         opts.Timeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "ssh handshake with %s failed", addr)
	}
	conn.SetDeadline(time.Time{})

	logger.Debug().Str("addr", addr).Msg("ssh connection established")
	return &SSHClient{ssh.NewClient(sshConn, chans, reqs)}, nil
}

// Fetch streams the remote file at path into w.
func (c *SSHClient) Fetch(ctx context.Context, path string, w io.Writer) error {
	session, err := c.Client.NewSession()
	if err != nil {
		return errors.Wrap(err, "failed to create ssh session")
	}
	defer session.Close()

	var stderr strings.Builder
	session.Stdout = w
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run("cat -- " + shellQuote(path)) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		c.Client.Close()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "remote read of %s failed: %s", path, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
}

// The returned func releases the agent connection; signing is only needed
// during the handshake.
func authMethods(ctx context.Context, opts DialOptions) ([]ssh.AuthMethod, func()) {
	var methods []ssh.AuthMethod
	closeAgent := func() {}
	if opts.Secret != "" {
		secret := opts.Secret
		methods = append(methods,
			ssh.Password(secret),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = secret
				}
				return answers, nil
			}))
		return methods, closeAgent
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			closeAgent = func() { conn.Close() }
		} else {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("ssh agent unavailable")
		}
	}

	if opts.Prompt != nil {
		prompt, user, host := opts.Prompt, opts.User, opts.Host
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return prompt(ctx, user, host)
		}))
	}
	return methods, closeAgent
}

func hostKeyCallback(ctx context.Context, path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "could not determine home directory")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	if _, err := os.Stat(path); err != nil {
		zerolog.Ctx(ctx).Warn().Str("known-hosts", path).Msg("known_hosts not found; host keys will not be verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return callback, nil
}

func shellQuote(s string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", `'\''`))
}
