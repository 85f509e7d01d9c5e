package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/mrshanahan/scp-fetch/pkg/transport/transporttest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	events []string
}

func (p *recordingProgress) Fetching(index int, src config.Source, dstPath string) {
	p.events = append(p.events, "fetching "+src.String())
}

func (p *recordingProgress) Success(dstPath string) {
	p.events = append(p.events, "success "+filepath.Base(dstPath))
}

func (p *recordingProgress) Failure(src config.Source, err error) {
	p.events = append(p.events, "failure "+src.String())
}

func TestDestinationFileName(t *testing.T) {
	var tests = []struct {
		name     string
		req      config.TransferRequest
		expected string
	}{
		{"host suffix", config.TransferRequest{Host: "web1", RemotePath: "/a/b/file.log"}, "file.log-web1"},
		{"label suffix", config.TransferRequest{Label: "prod", Host: "10.0.0.1", RemotePath: "/a/b/file.log"}, "file.log-prod"},
		{"relative remote path", config.TransferRequest{Host: "h1", RemotePath: "notes.txt"}, "notes.txt-h1"},
		{"home relative path", config.TransferRequest{Host: "h2", RemotePath: "~/logs/b.log"}, "b.log-h2"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, DestinationFileName(test.req))
		})
	}
}

func newResolved(user, host, path, secret string) config.ResolvedTransfer {
	return config.ResolvedTransfer{
		TransferRequest: config.TransferRequest{User: user, Host: host, RemotePath: path},
		Secret:          secret,
	}
}

func TestExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	fake := transporttest.New(map[string][]byte{"deploy@h1:/var/log/a.log": []byte("a")})
	progress := &recordingProgress{}
	e := &Executor{Transport: fake, DestinationDir: dir, Timeout: 30 * time.Second, Progress: progress}

	outcome := e.Execute(context.Background(), 1, newResolved("deploy", "h1", "/var/log/a.log", "s3cret"))

	assert.True(t, outcome.Succeeded)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, filepath.Join(dir, "a.log-h1"), outcome.DestinationPath)
	content, err := os.ReadFile(outcome.DestinationPath)
	require.NoError(t, err)
	assert.Equal(t, "a", string(content))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "s3cret", calls[0].Secret)
	assert.Equal(t, 30*time.Second, calls[0].Timeout)
	assert.Equal(t, []string{"fetching deploy@h1:/var/log/a.log", "success a.log-h1"}, progress.events)
}

func TestExecuteFailureIsReportedNotRaised(t *testing.T) {
	dir := t.TempDir()
	fake := transporttest.New(map[string][]byte{})
	fake.Failures["deploy@h1:/var/log/a.log"] = errors.New("Permission denied")
	progress := &recordingProgress{}
	e := &Executor{Transport: fake, DestinationDir: dir, Progress: progress}

	outcome := e.Execute(context.Background(), 1, newResolved("deploy", "h1", "/var/log/a.log", ""))

	assert.False(t, outcome.Succeeded)
	assert.EqualError(t, outcome.Err, "Permission denied")
	assert.NoFileExists(t, outcome.DestinationPath)
	assert.Len(t, fake.Calls(), 1, "no retries")
	assert.Equal(t, []string{"fetching deploy@h1:/var/log/a.log", "failure deploy@h1:/var/log/a.log"}, progress.events)
}

func TestExecuteDefaultsTimeout(t *testing.T) {
	fake := transporttest.New(map[string][]byte{"u@h:/f": []byte("x")})
	e := &Executor{Transport: fake, DestinationDir: t.TempDir(), Progress: &recordingProgress{}}

	e.Execute(context.Background(), 1, newResolved("u", "h", "/f", ""))

	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, config.DefaultTimeout, fake.Calls()[0].Timeout)
}
