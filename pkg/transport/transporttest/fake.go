// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mrshanahan/scp-fetch/pkg/config"
	"github.com/pkg/errors"
)

type Call struct {
	Source  config.Source
	DstPath string
	Secret  string
	Timeout time.Duration
}

// FakeTransport serves Files keyed by Source.String() and fails for any
// source listed in Failures or missing from Files.
type FakeTransport struct {
	Files    map[string][]byte
	Failures map[string]error
	// When set, CheckSecretInjection returns it.
	InjectionErr error

	mu    sync.Mutex
	calls []Call
}

func New(files map[string][]byte) *FakeTransport {
	return &FakeTransport{Files: files, Failures: map[string]error{}}
}

func (f *FakeTransport) Name() string { return "fake" }

func (f *FakeTransport) CheckSecretInjection() error { return f.InjectionErr }

func (f *FakeTransport) Copy(ctx context.Context, src config.Source, dstPath string, secret string, timeout time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{src, dstPath, secret, timeout})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	key := src.String()
	if err, ok := f.Failures[key]; ok {
		return err
	}
	content, ok := f.Files[key]
	if !ok {
		return errors.Errorf("%s: No such file or directory", key)
	}
	return os.WriteFile(dstPath, content, 0644)
}

func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call{}, f.calls...)
}
