package credential

import (
	"context"

	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Prompter interface {
	PromptSecret(ctx context.Context, user string) (string, error)
}

// Warner receives the user-facing warnings emitted while acquiring the secret.
type Warner interface {
	Warning(msg string)
}

// Resolve fills in the default user for entries that do not name one and
// attaches the cached secret only to entries whose user is the default user.
func Resolve(req config.TransferRequest, cfg config.RunConfiguration, cachedSecret string) config.ResolvedTransfer {
	if req.User == "" {
		req.User = cfg.DefaultUser
	}
	resolved := config.ResolvedTransfer{TransferRequest: req}
	if cfg.DefaultUser != "" && req.User == cfg.DefaultUser && cachedSecret != "" {
		resolved.Secret = cachedSecret
	}
	return resolved
}

// Acquire obtains the run-wide secret once, before any transfer starts. It
// never fails the run: a missing helper or a failed prompt results in an
// empty secret and a warning.
func Acquire(ctx context.Context, cfg config.RunConfiguration, transport config.Transport, prompter Prompter, warn Warner) string {
	logger := zerolog.Ctx(ctx)
	if cfg.DefaultUser == "" {
		logger.Debug().Msg("no default user configured; skipping secret prompt")
		return ""
	}

	if injector, ok := transport.(config.SecretInjector); ok {
		if err := injector.CheckSecretInjection(); err != nil {
			logger.Debug().Err(err).Str("transport", transport.Name()).Msg("secret injection unavailable")
			if errors.Is(err, config.ErrCredentialHelperMissing) {
				warn.Warning("password helper not found; falling back to interactive or agent authentication")
			} else {
				warn.Warning("cannot pass password to transport; falling back to interactive or agent authentication")
			}
			return ""
		}
	}

	if prompter == nil {
		return ""
	}
	secret, err := prompter.PromptSecret(ctx, cfg.DefaultUser)
	if ctx.Err() != nil {
		logger.Debug().Msg("password prompt interrupted")
		return ""
	}
	if err != nil {
		logger.Debug().Err(err).Str("user", cfg.DefaultUser).Msg("failed to read password")
		warn.Warning("could not read password; falling back to interactive or agent authentication")
		return ""
	}
	logger.Debug().Str("user", cfg.DefaultUser).Bool("has_secret", secret != "").Msg("password acquired")
	return secret
}
