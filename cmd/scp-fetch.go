package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mrshanahan/scp-fetch/internal/console"
	"github.com/mrshanahan/scp-fetch/internal/credential"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/mrshanahan/scp-fetch/pkg/runner"
	"github.com/mrshanahan/scp-fetch/pkg/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

type options struct {
	user       string
	configPath string
	transport  string
	timeout    time.Duration
	only       []string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status. Help
// output and usage errors exit non-zero; per-entry transfer failures do not.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	exitCode := exitOK
	helpShown := false

	rootCmd := &cobra.Command{
		Use:   "scp-fetch [--user USERNAME] [destination_directory]",
		Short: "Fetch one file from each server listed in Sourceservers.txt",
		Long: `scp-fetch reads a list of remote files, one per line, and copies each of them
into the destination directory (default ` + config.DefaultDestinationDir + `), appending the
host name or label to the file name.

Entry formats:
  user@host:/path/to/file          fetch as user
  @host:/path/to/file              fetch as the --user default user
  label:user@host:/path/to/file    name the local copy file-label instead of file-host

Blank lines and lines starting with # are ignored.`,
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(transport.Names, opts.transport) {
				return errors.Errorf("invalid --transport %q (expected one of: %s)", opts.transport, strings.Join(transport.Names, ", "))
			}
			if err := runner.ValidateHostPatterns(opts.only); err != nil {
				return err
			}

			// Past this point errors are about the run, not the invocation.
			cmd.SilenceUsage = true
			code, err := run(cmd.Context(), opts, args, stdout, stderr)
			exitCode = code
			return err
		},
	}

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(c *cobra.Command, a []string) {
		helpShown = true
		defaultHelp(c, a)
	})

	rootCmd.Flags().StringVarP(&opts.user, "user", "u", "", "default user for @host:path entries; its password is asked once")
	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "server list (default $HOME/"+config.DefaultConfigFileName+")")
	rootCmd.Flags().StringVar(&opts.transport, "transport", "scp", "copy mechanism: "+strings.Join(transport.Names, " or "))
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", config.DefaultTimeout, "connection establishment timeout")
	rootCmd.Flags().StringArrayVar(&opts.only, "only", nil, "only fetch from hosts matching this glob (repeatable)")
	rootCmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if exitCode == exitOK {
			exitCode = exitFailure
		}
		return exitCode
	}
	if helpShown {
		return exitFailure
	}
	return exitCode
}

func run(ctx context.Context, opts *options, args []string, stdout, stderr io.Writer) (int, error) {
	level := zerolog.WarnLevel
	if opts.debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: color.NoColor}).
		Level(level).
		With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)

	cfg, err := buildRunConfiguration(opts, args)
	if err != nil {
		return exitFailure, err
	}

	prompter := credential.NewTerminalPrompter()
	tr, err := transport.New(opts.transport, prompter.PromptHost)
	if err != nil {
		return exitFailure, err
	}

	c := console.New(stdout, logger)
	_, err = runner.Execute(ctx, cfg, runner.Deps{
		Transport: tr,
		Prompter:  prompter,
		Console:   c,
	})
	if errors.Is(err, context.Canceled) {
		c.Warning("interrupted; remaining entries were not fetched")
		return exitInterrupted, nil
	}
	if err != nil {
		return exitFailure, err
	}
	return exitOK, nil
}

func buildRunConfiguration(opts *options, args []string) (config.RunConfiguration, error) {
	configPath := opts.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.RunConfiguration{}, errors.Wrap(err, "could not determine home directory")
		}
		configPath = filepath.Join(home, config.DefaultConfigFileName)
	}

	destDir := config.DefaultDestinationDir
	if len(args) > 0 {
		destDir = args[0]
	}

	return config.RunConfiguration{
		DestinationDir: destDir,
		DefaultUser:    opts.user,
		ConfigFilePath: configPath,
		Timeout:        opts.timeout,
		HostPatterns:   opts.only,
	}, nil
}
