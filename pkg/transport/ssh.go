package transport

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mrshanahan/scp-fetch/internal/sshclient"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// NewSSHTransport fetches files over an in-process ssh connection instead of
// the scp binary. prompt may be nil, in which case entries without a secret
// rely on the ssh agent.
func NewSSHTransport(prompt sshclient.InteractivePrompt, knownHostsPath string) config.Transport {
	return &sshTransport{prompt, knownHostsPath}
}

type sshTransport struct {
	prompt         sshclient.InteractivePrompt
	knownHostsPath string
}

func (t *sshTransport) Name() string { return "ssh" }

func (t *sshTransport) Copy(ctx context.Context, src config.Source, dstPath string, secret string, timeout time.Duration) error {
	client, err := sshclient.CreateSshClient(ctx, sshclient.DialOptions{
		User:           src.User,
		Host:           src.Host,
		Secret:         secret,
		Timeout:        timeout,
		Prompt:         t.prompt,
		KnownHostsPath: t.knownHostsPath,
	})
	if err != nil {
		return errors.Wrapf(err, "copy of %s failed", src)
	}
	defer client.Close()

	// Write next to the destination and rename, so a failed read never
	// leaves a truncated file under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(dstPath), "."+filepath.Base(dstPath)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmpPath := tmp.Name()

	fetchErr := client.Fetch(ctx, src.Path, tmp)
	closeErr := tmp.Close()
	if fetchErr == nil {
		fetchErr = closeErr
	}
	if fetchErr != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(fetchErr, "copy of %s failed", src)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to move download into place at %s", dstPath)
	}
	zerolog.Ctx(ctx).Debug().Str("source", src.String()).Str("destination", dstPath).Msg("fetched over ssh")
	return nil
}
