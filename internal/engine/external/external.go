// Package external adapts a command-line inference runtime (llama.cpp style)
// to the engine contract. Each Generate call runs the configured binary with
// the model path and prompt and returns its stdout.
package external

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/engine"
)

// Config describes the external runtime invocation.
type Config struct {
	// Command is the runtime binary, looked up in PATH when not absolute.
	Command string

	// ExtraArgs are appended to every invocation, before the prompt.
	ExtraArgs []string
}

// Engine shells out to a local inference binary.
type Engine struct {
	cfg       Config
	modelPath string
	logger    zerolog.Logger
}

var _ engine.Engine = (*Engine)(nil)

// Factory returns an engine.Factory that binds the runtime to the verified
// model path. The binary must be present in PATH at construction time.
func Factory(cfg Config, logger zerolog.Logger) engine.Factory {
	return func(_ context.Context, modelPath string) (engine.Engine, error) {
		bin, err := exec.LookPath(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("inference runtime %q not found: %w", cfg.Command, err)
		}
		cfg.Command = bin
		return &Engine{
			cfg:       cfg,
			modelPath: modelPath,
			logger:    logger.With().Str("component", "engine").Logger(),
		}, nil
	}
}

// Generate implements engine.Engine.
func (e *Engine) Generate(ctx context.Context, prompt, imagePath string) (string, error) {
	args := []string{"--model", e.modelPath}
	args = append(args, e.cfg.ExtraArgs...)
	if imagePath != "" {
		args = append(args, "--image", imagePath)
	}
	args = append(args, "--prompt", prompt)

	cmd := exec.CommandContext(ctx, e.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug().Str("binary", e.cfg.Command).Int("promptLen", len(prompt)).Msg("Running inference")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		tail := stderr.String()
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return "", fmt.Errorf("inference runtime failed: %w: %s", err, strings.TrimSpace(tail))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Close implements engine.Engine. The runtime is per-invocation, so there is
// no persistent state to release.
func (e *Engine) Close() error { return nil }
