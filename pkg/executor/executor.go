package executor

import (
	"context"
	"path"
	"path/filepath"
	"time"

	"github.com/mrshanahan/scp-fetch/pkg/config"
)

// Progress receives the per-entry console lines.
type Progress interface {
	Fetching(index int, src config.Source, dstPath string)
	Success(dstPath string)
	Failure(src config.Source, err error)
}

type Executor struct {
	Transport      config.Transport
	DestinationDir string
	Timeout        time.Duration
	Progress       Progress
}

// DestinationFileName is the remote file's base name followed by the entry's
// suffix, e.g. /a/b/file.log fetched from web1 becomes file.log-web1.
func DestinationFileName(req config.TransferRequest) string {
	return path.Base(req.RemotePath) + "-" + req.Suffix()
}

// Execute performs a single transfer. Failures are reported in the outcome
// and never abort the run; there are no retries.
func (e *Executor) Execute(ctx context.Context, index int, t config.ResolvedTransfer) config.TransferOutcome {
	dstPath := filepath.Join(e.DestinationDir, DestinationFileName(t.TransferRequest))
	src := t.Source()

	e.Progress.Fetching(index, src, dstPath)
	err := e.Transport.Copy(ctx, src, dstPath, t.Secret, e.timeout())
	if err != nil {
		e.Progress.Failure(src, err)
		return config.TransferOutcome{Transfer: t, DestinationPath: dstPath, Succeeded: false, Err: err}
	}
	e.Progress.Success(dstPath)
	return config.TransferOutcome{Transfer: t, DestinationPath: dstPath, Succeeded: true}
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return config.DefaultTimeout
	}
	return e.Timeout
}
