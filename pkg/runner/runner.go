package runner

import (
	"bufio"
	"context"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mrshanahan/scp-fetch/internal/console"
	"github.com/mrshanahan/scp-fetch/internal/credential"
	"github.com/mrshanahan/scp-fetch/internal/entry"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/mrshanahan/scp-fetch/pkg/executor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Deps struct {
	Transport config.Transport
	// Nil disables the one-time password prompt.
	Prompter credential.Prompter
	Console  *console.Console
}

// Execute runs every entry of the configuration file in order. Only an
// unusable configuration file or destination directory is returned as an
// error; per-entry problems are reported and folded into the summary. When
// ctx is cancelled the partial summary is still reported and returned along
// with ctx.Err().
func Execute(ctx context.Context, cfg config.RunConfiguration, deps Deps) (*config.RunSummary, error) {
	logger := zerolog.Ctx(ctx)

	if err := checkConfigFile(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DestinationDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create destination directory %s", cfg.DestinationDir)
	}

	deps.Console.Header(cfg.ConfigFilePath, cfg.DestinationDir)

	secret := credential.Acquire(ctx, cfg, deps.Transport, deps.Prompter, deps.Console)

	file, err := os.Open(cfg.ConfigFilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open configuration file %s", cfg.ConfigFilePath)
	}
	defer file.Close()

	transfers := &executor.Executor{
		Transport:      deps.Transport,
		DestinationDir: cfg.DestinationDir,
		Timeout:        cfg.Timeout,
		Progress:       deps.Console,
	}

	summary := &config.RunSummary{}
	reader := bufio.NewReader(file)
	lineNo := 0
	for ctx.Err() == nil {
		raw, readErr := reader.ReadString('\n')
		if raw == "" && readErr != nil {
			if readErr != io.EOF {
				deps.Console.Warningf("stopped reading %s after line %d: %v", cfg.ConfigFilePath, lineNo, readErr)
			}
			break
		}
		lineNo++
		line := strings.TrimRight(raw, "\r\n")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		req, err := entry.Parse(line, cfg.DefaultUser)
		if errors.Is(err, entry.ErrSkip) {
			continue
		}
		if err != nil {
			deps.Console.Warningf("line %d: %v", lineNo, err)
			continue
		}

		if !HostAllowed(cfg.HostPatterns, req.Host) {
			logger.Debug().Int("line", lineNo).Str("host", req.Host).Strs("patterns", cfg.HostPatterns).Msg("host filtered out")
			continue
		}

		resolved := credential.Resolve(*req, cfg, secret)
		logger.Debug().
			Int("line", lineNo).
			Str("form", req.Form.String()).
			Str("user", resolved.User).
			Bool("has_secret", resolved.HasSecret()).
			Msg("entry resolved")

		outcome := transfers.Execute(ctx, summary.Total+1, resolved)
		summary.Record(outcome)
	}

	report(cfg, summary, deps.Console)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func checkConfigFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(config.ErrConfigMissing, path)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read configuration file %s", path)
	}
	if info.IsDir() {
		return errors.Wrapf(config.ErrConfigMissing, "%s is a directory", path)
	}
	if info.Size() == 0 {
		return errors.Wrap(config.ErrConfigEmpty, path)
	}
	return nil
}

func report(cfg config.RunConfiguration, summary *config.RunSummary, c *console.Console) {
	c.Summary(summary)
	if summary.Succeeded == 0 {
		return
	}
	entries, err := os.ReadDir(cfg.DestinationDir)
	if err != nil {
		c.Warningf("could not list %s: %v", cfg.DestinationDir, err)
		return
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, e := range entries {
		if info, err := e.Info(); err == nil {
			infos = append(infos, info)
		}
	}
	c.Listing(cfg.DestinationDir, infos)
}

// HostAllowed reports whether host matches one of the patterns. An empty
// pattern list allows every host.
func HostAllowed(patterns []string, host string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, host); err == nil && ok {
			return true
		}
	}
	return false
}

func ValidateHostPatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid host pattern %q", p)
		}
	}
	return nil
}
