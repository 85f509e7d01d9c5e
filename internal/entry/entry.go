package entry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
)

// ErrSkip is returned for blank lines and comments. Callers drop these
// silently; they are not counted and not reported.
var ErrSkip = errors.New("skip line")

const (
	ReasonInvalidFormat         = "invalid format"
	ReasonShortFormRequiresUser = "short form requires default user"
	ReasonSuffixHasSeparator    = "label or host contains a path separator"
)

type RejectedError struct {
	Line   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}

func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

var (
	labeledPatt *regexp.Regexp = regexp.MustCompile(`^([^:@\s]+):(.+)$`)
	fullPatt    *regexp.Regexp = regexp.MustCompile(`^([^@]+)@([^:]+):(.+)$`)
	shortPatt   *regexp.Regexp = regexp.MustCompile(`^@([^:]+):(.+)$`)
)

type grammar struct {
	form    config.Form
	extract func(text string, defaultUser string) (*config.TransferRequest, error)
}

// Tried in order; the first grammar whose pattern matches decides the result.
var grammars = []grammar{
	{config.FormLabeled, parseLabeled},
	{config.FormFull, parseFull},
	{config.FormShort, parseShort},
}

var errNoMatch = errors.New("no match")

// Parse turns a single configuration line into a transfer request. It
// returns ErrSkip for blank and comment lines and a *RejectedError for lines
// that cannot be used.
func Parse(line string, defaultUser string) (*config.TransferRequest, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, ErrSkip
	}

	for _, g := range grammars {
		req, err := g.extract(trimmed, defaultUser)
		if errors.Is(err, errNoMatch) {
			continue
		}
		if err != nil {
			return nil, &RejectedError{Line: trimmed, Reason: err.Error()}
		}
		// The suffix becomes part of a local file name.
		if strings.ContainsAny(req.Suffix(), `/\`) {
			return nil, &RejectedError{Line: trimmed, Reason: ReasonSuffixHasSeparator}
		}
		req.RawLine = line
		req.Form = g.form
		return req, nil
	}
	return nil, &RejectedError{Line: trimmed, Reason: ReasonInvalidFormat}
}

func parseLabeled(text string, defaultUser string) (*config.TransferRequest, error) {
	m := labeledPatt.FindStringSubmatch(text)
	if m == nil {
		return nil, errNoMatch
	}
	label, rest := m[1], m[2]
	req, err := parseFull(rest, defaultUser)
	if errors.Is(err, errNoMatch) {
		req, err = parseShort(rest, defaultUser)
	}
	if errors.Is(err, errNoMatch) {
		// label-like prefix without a transfer target behind it
		return nil, errors.New(ReasonInvalidFormat)
	}
	if err != nil {
		return nil, err
	}
	req.Label = label
	return req, nil
}

func parseFull(text string, _ string) (*config.TransferRequest, error) {
	m := fullPatt.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return nil, errNoMatch
	}
	return &config.TransferRequest{User: m[1], Host: m[2], RemotePath: m[3]}, nil
}

func parseShort(text string, defaultUser string) (*config.TransferRequest, error) {
	m := shortPatt.FindStringSubmatch(text)
	if m == nil {
		return nil, errNoMatch
	}
	if defaultUser == "" {
		return nil, errors.New(ReasonShortFormRequiresUser)
	}
	return &config.TransferRequest{User: defaultUser, Host: m[1], RemotePath: m[2]}, nil
}
