package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mrshanahan/scp-fetch/internal/localproc"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

type recordingRunner struct {
	commands []localproc.Command
	stderr   string
	err      error
}

func (r *recordingRunner) run(ctx context.Context, cmd localproc.Command) (string, string, error) {
	r.commands = append(r.commands, cmd)
	return "", r.stderr, r.err
}

func newTestScpTransport(r *recordingRunner, lookPath func(string) (string, error)) *scpTransport {
	return &scpTransport{run: r.run, lookPath: lookPath, stdin: strings.NewReader("")}
}

var testSource = config.Source{User: "deploy", Host: "h1", Path: "/var/log/a.log"}

func TestScpCopyWithoutSecret(t *testing.T) {
	r := &recordingRunner{}
	tr := newTestScpTransport(r, nil)

	err := tr.Copy(testContext(t), testSource, "/tmp/out/a.log-h1", "", 30*time.Second)
	require.NoError(t, err)

	require.Len(t, r.commands, 1)
	cmd := r.commands[0]
	assert.Equal(t, "scp", cmd.Name)
	assert.Equal(t, []string{"-o", "ConnectTimeout=30", "deploy@h1:/var/log/a.log", "/tmp/out/a.log-h1"}, cmd.Args)
	assert.Empty(t, cmd.Env)
	assert.NotNil(t, cmd.Stdin, "terminal stays attached for interactive auth")
}

func TestScpCopyWithSecretUsesSshpassEnv(t *testing.T) {
	r := &recordingRunner{}
	tr := newTestScpTransport(r, nil)

	err := tr.Copy(testContext(t), testSource, "/tmp/out/a.log-h1", "hunter2", 30*time.Second)
	require.NoError(t, err)

	require.Len(t, r.commands, 1)
	cmd := r.commands[0]
	assert.Equal(t, "sshpass", cmd.Name)
	assert.Equal(t, []string{"-e", "scp", "-o", "ConnectTimeout=30", "deploy@h1:/var/log/a.log", "/tmp/out/a.log-h1"}, cmd.Args)
	assert.Equal(t, []string{"SSHPASS=hunter2"}, cmd.Env)
	for _, arg := range cmd.Args {
		assert.NotContains(t, arg, "hunter2")
	}
}

func TestScpCopyFailureCarriesStderr(t *testing.T) {
	r := &recordingRunner{
		stderr: "Warning: something\nscp: /var/log/a.log: No such file or directory\n",
		err:    errors.New("exit status 1"),
	}
	tr := newTestScpTransport(r, nil)

	err := tr.Copy(testContext(t), testSource, "/tmp/out/a.log-h1", "", 30*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy@h1:/var/log/a.log")
	assert.Contains(t, err.Error(), "No such file or directory")
	assert.NotContains(t, err.Error(), "Warning")
}

func TestScpCheckSecretInjection(t *testing.T) {
	found := newTestScpTransport(&recordingRunner{}, func(string) (string, error) { return "/usr/bin/sshpass", nil })
	assert.NoError(t, found.CheckSecretInjection())

	missing := newTestScpTransport(&recordingRunner{}, func(name string) (string, error) {
		return "", errors.Errorf("exec: %q: executable file not found in $PATH", name)
	})
	err := missing.CheckSecretInjection()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrCredentialHelperMissing)
}

func TestConnectTimeoutSeconds(t *testing.T) {
	assert.Equal(t, 30, connectTimeoutSeconds(30*time.Second))
	assert.Equal(t, 1, connectTimeoutSeconds(200*time.Millisecond))
	assert.Equal(t, 1, connectTimeoutSeconds(0))
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/abs/with:colon", localPath("/abs/with:colon"))
	assert.Equal(t, "downloaded_files/a.log-h1", localPath("downloaded_files/a.log-h1"))
	assert.Equal(t, "./dl:dir/a.log-h1", localPath("dl:dir/a.log-h1"))
}

func TestNew(t *testing.T) {
	for _, name := range Names {
		tr, err := New(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, tr.Name())
	}
	_, err := New("ftp", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scp, ssh")
}
