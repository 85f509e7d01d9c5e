package config

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultDestinationDir = "./downloaded_files"
	DefaultConfigFileName = "Sourceservers.txt"
	DefaultTimeout        = 30 * time.Second
)

var (
	ErrConfigMissing           = errors.New("configuration file does not exist")
	ErrConfigEmpty             = errors.New("configuration file is empty")
	ErrCredentialHelperMissing = errors.New("credential helper not available")
)

type RunConfiguration struct {
	DestinationDir string
	DefaultUser    string
	ConfigFilePath string
	Timeout        time.Duration
	// Glob patterns an entry's host must match; empty means every host.
	HostPatterns []string
}

type Form int

const (
	FormInvalid Form = iota
	FormLabeled
	FormFull
	FormShort
)

func (f Form) String() string {
	switch f {
	case FormLabeled:
		return "labeled"
	case FormFull:
		return "full"
	case FormShort:
		return "short"
	default:
		return "invalid"
	}
}

type TransferRequest struct {
	RawLine    string
	Form       Form
	Label      string
	User       string
	Host       string
	RemotePath string
}

// Suffix is appended to the downloaded file name: the explicit label when
// one was given, otherwise the host.
func (r TransferRequest) Suffix() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Host
}

func (r TransferRequest) Source() Source {
	return Source{User: r.User, Host: r.Host, Path: r.RemotePath}
}

type Source struct {
	User string
	Host string
	Path string
}

func (s Source) String() string {
	return fmt.Sprintf("%s@%s:%s", s.User, s.Host, s.Path)
}

type ResolvedTransfer struct {
	TransferRequest
	// Empty when the transport should fall back to agent or interactive auth.
	Secret string
}

func (t ResolvedTransfer) HasSecret() bool { return t.Secret != "" }

type TransferOutcome struct {
	Transfer        ResolvedTransfer
	DestinationPath string
	Succeeded       bool
	Err             error
}

type RunSummary struct {
	Total     int
	Succeeded int
}

func (s *RunSummary) Record(o TransferOutcome) {
	s.Total++
	if o.Succeeded {
		s.Succeeded++
	}
}

func (s *RunSummary) Failed() int { return s.Total - s.Succeeded }

type Transport interface {
	Name() string
	Copy(ctx context.Context, src Source, dstPath string, secret string, timeout time.Duration) error
}

// SecretInjector is implemented by transports that need an external helper
// to pass a secret non-interactively.
type SecretInjector interface {
	CheckSecretInjection() error
}
