package console

import (
	"fmt"
	"io"
	"io/fs"
	"slices"
	"sync"

	"github.com/fatih/color"
	"github.com/mrshanahan/scp-fetch/internal/util"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/rs/zerolog"
)

const entryIndent = 4

// Console prints the human-readable progress of a run and mirrors each line
// into the structured log at debug level.
type Console struct {
	out  io.Writer
	zlog zerolog.Logger
	mu   sync.Mutex
}

func New(out io.Writer, zlog zerolog.Logger) *Console {
	return &Console{out: out, zlog: zlog}
}

func (c *Console) Header(configPath, destDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n",
		color.New(color.Bold, color.FgCyan).Sprint("scp-fetch"),
		color.New(color.Faint).Sprintf("• %s -> %s", configPath, destDir))
	c.zlog.Debug().Str("config", configPath).Str("destination", destDir).Msg("starting run")
}

func (c *Console) Fetching(index int, src config.Source, dstPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%d] fetching %s -> %s\n", index, color.New(color.Bold).Sprint(src), dstPath)
	c.zlog.Debug().Int("entry", index).Str("source", src.String()).Str("destination", dstPath).Msg("fetching")
}

func (c *Console) Success(dstPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%*s%s saved %s\n", entryIndent, "", color.New(color.FgGreen).Sprint("✓"), dstPath)
	c.zlog.Debug().Str("destination", dstPath).Msg("transfer succeeded")
}

func (c *Console) Failure(src config.Source, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%*s%s %s\n", entryIndent, "", color.New(color.FgRed).Sprint("✗"),
		color.New(color.FgRed).Sprintf("failed: %v", err))
	c.zlog.Debug().Err(err).Str("source", src.String()).Msg("transfer failed")
}

func (c *Console) Warning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgYellow).Sprint("!"), color.New(color.FgYellow).Sprint(msg))
	c.zlog.Debug().Str("kind", "warning").Msg(msg)
}

func (c *Console) Warningf(format string, args ...interface{}) {
	c.Warning(fmt.Sprintf(format, args...))
}

func (c *Console) Summary(s *config.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	failed := fmt.Sprint(s.Failed())
	if s.Failed() > 0 {
		failed = color.New(color.FgRed).Sprint(failed)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "=== Summary ===")
	fmt.Fprintf(c.out, "Total:     %d\n", s.Total)
	fmt.Fprintf(c.out, "Succeeded: %s\n", color.New(color.FgGreen).Sprint(s.Succeeded))
	fmt.Fprintf(c.out, "Failed:    %s\n", failed)
	c.zlog.Debug().Int("total", s.Total).Int("succeeded", s.Succeeded).Int("failed", s.Failed()).Msg("run complete")
}

// Listing prints the regular files found in the destination directory.
func (c *Console) Listing(dir string, files []fs.FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	regular := slices.DeleteFunc(slices.Clone(files), func(f fs.FileInfo) bool { return !f.Mode().IsRegular() })
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Files in %s:\n", color.New(color.FgCyan).Sprint(dir))
	for _, f := range regular {
		fmt.Fprintf(c.out, "%*s%-40s %8s\n", entryIndent, "", f.Name(), util.FormatSize(f.Size()))
	}
}
