package transport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrshanahan/scp-fetch/internal/sshclient/sshtest"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSSHTransport(t *testing.T, server *sshtest.Server) config.Transport {
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, []byte(server.KnownHostsLine()+"\n"), 0600))
	return NewSSHTransport(nil, knownHosts)
}

func TestSSHCopy(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	server := sshtest.NewServer(t, "deploy", "s3cret", map[string][]byte{
		"/var/log/a.log": []byte("hello from h1\n"),
	})
	tr := newTestSSHTransport(t, server)

	dst := filepath.Join(t.TempDir(), "a.log-h1")
	source := config.Source{User: "deploy", Host: server.Addr, Path: "/var/log/a.log"}
	require.NoError(t, tr.Copy(testContext(t), source, dst, "s3cret", 5*time.Second))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello from h1\n", string(content))
}

func TestSSHCopyOverwritesExisting(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	server := sshtest.NewServer(t, "deploy", "s3cret", map[string][]byte{
		"/var/log/a.log": []byte("new"),
	})
	tr := newTestSSHTransport(t, server)

	dst := filepath.Join(t.TempDir(), "a.log-h1")
	require.NoError(t, os.WriteFile(dst, []byte("old contents"), 0644))

	source := config.Source{User: "deploy", Host: server.Addr, Path: "/var/log/a.log"}
	require.NoError(t, tr.Copy(testContext(t), source, dst, "s3cret", 5*time.Second))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestSSHCopyMissingFileLeavesNothingBehind(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	server := sshtest.NewServer(t, "deploy", "s3cret", map[string][]byte{})
	tr := newTestSSHTransport(t, server)

	dir := t.TempDir()
	dst := filepath.Join(dir, "a.log-h1")
	source := config.Source{User: "deploy", Host: server.Addr, Path: "/var/log/a.log"}
	err := tr.Copy(testContext(t), source, dst, "s3cret", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy@")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSSHCopyAuthFailure(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	server := sshtest.NewServer(t, "deploy", "s3cret", map[string][]byte{"/a": []byte("x")})
	tr := newTestSSHTransport(t, server)

	dst := filepath.Join(t.TempDir(), "a-h1")
	source := config.Source{User: "deploy", Host: server.Addr, Path: "/a"}
	err := tr.Copy(testContext(t), source, dst, "wrong", 5*time.Second)
	require.Error(t, err)
	assert.NoFileExists(t, dst)
}
