package transport

import (
	"strings"

	"github.com/mrshanahan/scp-fetch/internal/sshclient"
	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
)

var Names = []string{"scp", "ssh"}

func New(name string, prompt sshclient.InteractivePrompt) (config.Transport, error) {
	switch name {
	case "scp":
		return NewScpTransport(), nil
	case "ssh":
		return NewSSHTransport(prompt, ""), nil
	default:
		return nil, errors.Errorf("unknown transport %q (expected one of: %s)", name, strings.Join(Names, ", "))
	}
}
