package model

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// session tracks a single accepted download: destination paths, resume
// offset, attempt count and cancellation state. The controller replaces the
// session object on each accepted start instead of mutating a shared one;
// it is destroyed on a terminal outcome.
type session struct {
	id       string
	destPath string
	tempPath string

	// resumedFrom and attempt are written only by the download goroutine.
	resumedFrom int64
	attempt     int

	cancelled atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func newSession(ctx context.Context, d Descriptor, dir string) (*session, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &session{
		id:       uuid.NewString(),
		destPath: d.DestPath(dir),
		tempPath: d.TempPath(dir),
		cancel:   cancel,
		done:     make(chan struct{}),
	}, ctx
}

// Cancel flips the cooperative flag and aborts the in-flight HTTP call so
// cancellation completes in bounded time. Safe to call more than once.
func (s *session) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

func (s *session) isCancelled() bool {
	return s.cancelled.Load()
}
