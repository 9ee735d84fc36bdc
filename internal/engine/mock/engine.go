// Package mock provides a configurable fake inference engine for tests and
// developer mode.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pocketsage/pocketsage/internal/engine"
)

// Engine is a fake inference runtime. The zero value echoes prompts back.
type Engine struct {
	// Reply, when set, is returned verbatim for every prompt.
	Reply string

	// Err, when set, is returned from Generate.
	Err error

	// Delay is applied before responding, to exercise cancellation paths.
	Delay time.Duration

	// GenerateFunc overrides the default behavior entirely when set.
	GenerateFunc func(ctx context.Context, prompt, imagePath string) (string, error)

	closed atomic.Bool
	calls  atomic.Int64
}

var _ engine.Engine = (*Engine)(nil)

// Generate implements engine.Engine.
func (e *Engine) Generate(ctx context.Context, prompt, imagePath string) (string, error) {
	e.calls.Add(1)

	if e.GenerateFunc != nil {
		return e.GenerateFunc(ctx, prompt, imagePath)
	}
	if e.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.Delay):
		}
	}
	if e.Err != nil {
		return "", e.Err
	}
	if e.Reply != "" {
		return e.Reply, nil
	}
	if imagePath != "" {
		return fmt.Sprintf("echo(%s + %s)", prompt, imagePath), nil
	}
	return "echo(" + prompt + ")", nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool { return e.closed.Load() }

// Calls returns how many times Generate was invoked.
func (e *Engine) Calls() int64 { return e.calls.Load() }

// Factory returns an engine.Factory that yields eng for any model path.
func Factory(eng *Engine) engine.Factory {
	return func(_ context.Context, _ string) (engine.Engine, error) {
		return eng, nil
	}
}

// FailingFactory returns an engine.Factory that always fails with err.
func FailingFactory(err error) engine.Factory {
	return func(_ context.Context, _ string) (engine.Engine, error) {
		return nil, err
	}
}
