package localproc

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mrshanahan/scp-fetch/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Command struct {
	Name string
	Args []string
	// Extra environment entries appended to the current process environment.
	Env   []string
	Stdin io.Reader
}

// Redacted renders the command line for logs. Env values are never included.
func (c Command) Redacted() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// How long Wait keeps reading output after the process was killed. ssh
// started by scp or sshpass can hold the pipes open past its parent.
var waitDelay = 5 * time.Second

type RunFunc func(ctx context.Context, cmd Command) (string, string, error)

// Run executes the command, streaming every output line to the debug log
// while also capturing stdout and stderr for the caller.
func Run(ctx context.Context, cmd Command) (string, string, error) {
	logger := zerolog.Ctx(ctx)

	command := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if len(cmd.Env) > 0 {
		command.Env = append(os.Environ(), cmd.Env...)
	}
	command.Stdin = cmd.Stdin
	command.WaitDelay = waitDelay

	stdoutReader, stdoutWriter := io.Pipe()
	defer stdoutReader.Close()
	stdoutBuilder := &strings.Builder{}
	command.Stdout = io.MultiWriter(stdoutWriter, stdoutBuilder)

	stderrReader, stderrWriter := io.Pipe()
	defer stderrReader.Close()
	stderrBuilder := &strings.Builder{}
	command.Stderr = io.MultiWriter(stderrWriter, stderrBuilder)

	if err := command.Start(); err != nil {
		stdoutWriter.Close()
		stderrWriter.Close()
		return "", "", errors.Wrapf(err, "failed to start %s", cmd.Name)
	}

	stdoutDone, stderrDone := make(chan bool), make(chan bool)
	go streamLines(stdoutReader, stdoutDone, func(line string) {
		logger.Debug().Str("command-name", cmd.Name).Str("line", line).Msg("local stdout")
	})
	go streamLines(stderrReader, stderrDone, func(line string) {
		logger.Debug().Str("command-name", cmd.Name).Str("line", line).Msg("local stderr")
	})

	err := command.Wait()
	stdoutWriter.Close()
	stderrWriter.Close()
	<-stdoutDone
	<-stderrDone

	stdout := stdoutBuilder.String()
	stderr := stderrBuilder.String()
	logger.Debug().
		Str("command", cmd.Redacted()).
		Str("stdout", stdout).
		Str("stderr", stderr).
		Err(err).
		Msg("executed local command")
	if err != nil {
		return stdout, stderr, errors.Wrapf(err, "%s failed", cmd.Name)
	}
	return stdout, stderr, nil
}

func streamLines(r io.Reader, done chan<- bool, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Split(util.ScanUntil('\n', '\r'))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			emit(line)
		}
	}
	// An oversized token stops the scanner; keep draining so the writer
	// side never blocks.
	io.Copy(io.Discard, r)
	done <- true
}
