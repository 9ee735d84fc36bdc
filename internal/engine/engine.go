// Package engine defines the contract for the local inference runtime. The
// model lifecycle hands a verified asset path to a Factory and treats the
// returned Engine as an opaque handle; nothing here inspects how generation
// is implemented.
package engine

import "context"

// Engine is a ready inference runtime bound to a local model file.
type Engine interface {
	// Generate produces a response for the prompt. imagePath is optional and
	// empty for text-only requests.
	Generate(ctx context.Context, prompt, imagePath string) (string, error)

	// Close releases the runtime and any memory-mapped model state.
	Close() error
}

// Factory constructs an engine from a verified local model path. Returning
// an error moves the lifecycle controller to its error state.
type Factory func(ctx context.Context, modelPath string) (Engine, error)
