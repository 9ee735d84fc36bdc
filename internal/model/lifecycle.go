package model

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/engine"
)

// State is a lifecycle controller state. Transitions follow a fixed graph:
//
//	Checking  --found & valid-->  Available --(auto)--> Initializing
//	Checking  --not found/invalid--> Missing
//	Missing   --StartDownload--> Downloading
//	Downloading --success--> Initializing (auto)
//	Downloading --exhausted retries--> DownloadFailed
//	Downloading --cancel--> Missing
//	DownloadFailed --Retry--> Downloading
//	Initializing --engine constructed--> Ready
//	Initializing --engine construction fails--> Error
//	Error     --Retry--> Checking
type State string

const (
	StateChecking       State = "checking"
	StateAvailable      State = "available"
	StateMissing        State = "missing"
	StateDownloading    State = "downloading"
	StateDownloadFailed State = "download_failed"
	StateInitializing   State = "initializing"
	StateReady          State = "ready"
	StateError          State = "error"
)

// Status is the externally visible controller state, served over the API
// and broadcast to websocket clients.
type Status struct {
	State     State     `json:"state"`
	ModelName string    `json:"modelName"`
	ModelPath string    `json:"modelPath,omitempty"`
	Progress  *Snapshot `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Controller sequences locate, download, verify, initialize and ready for
// one asset descriptor. It is constructed and owned by its caller rather
// than exposed as an ambient singleton, and it serializes
// Start/StartDownload/Cancel/Retry so no two transfer protocols ever run
// against the same destination. No lock is held across blocking work.
type Controller struct {
	desc       Descriptor
	storageDir string
	locator    *Locator
	downloader *Downloader
	factory    engine.Factory
	dispatcher *dispatcher
	logger     zerolog.Logger

	mu        sync.Mutex
	state     State
	sess      *session
	eng       engine.Engine
	modelPath string
	lastErr   string
	progress  *Snapshot
}

// NewController creates a controller in the Checking state. Nothing happens
// until Start is called.
func NewController(desc Descriptor, storageDir string, loc *Locator, dl *Downloader, factory engine.Factory, logger zerolog.Logger) *Controller {
	return &Controller{
		desc:       desc,
		storageDir: storageDir,
		locator:    loc,
		downloader: dl,
		factory:    factory,
		dispatcher: newDispatcher(),
		logger:     logger.With().Str("component", "lifecycle").Str("model", desc.Name).Logger(),
		state:      StateChecking,
	}
}

// Subscribe registers an observer for status, progress and terminal events
// and returns its unsubscribe function.
func (c *Controller) Subscribe(o Observer) func() {
	return c.dispatcher.subscribe(o)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a copy of the externally visible state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:     c.state,
		ModelName: c.desc.Name,
		ModelPath: c.modelPath,
		Error:     c.lastErr,
	}
	if c.progress != nil {
		snap := *c.progress
		st.Progress = &snap
	}
	return st
}

// Engine returns the constructed inference engine while the controller is
// Ready.
func (c *Controller) Engine() (engine.Engine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.eng == nil {
		return nil, false
	}
	return c.eng, true
}

// Start checks local state: a verified candidate moves straight to engine
// initialization, otherwise the controller lands in Missing. Calling Start
// while a download or initialization is in flight is a no-op that returns
// the current state unchanged.
func (c *Controller) Start(ctx context.Context) State {
	c.mu.Lock()
	if c.state == StateDownloading || c.state == StateInitializing || c.state == StateReady {
		st := c.state
		c.mu.Unlock()
		return st
	}
	c.setStateLocked(StateChecking)
	c.mu.Unlock()

	// Filesystem scan happens outside the lock.
	path, found := c.locator.Locate(c.desc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateChecking {
		// A concurrent call won the race; keep its outcome.
		return c.state
	}
	if found {
		c.setStateLocked(StateAvailable)
		c.initializeLocked(ctx, path)
		return c.state
	}
	c.setStateLocked(StateMissing)
	return c.state
}

// StartDownload begins (or resumes) the transfer. It is accepted from
// Missing and DownloadFailed; while Downloading or Initializing it is a
// no-op returning the current state. Pre-flight storage failures surface
// synchronously and leave the state untouched with zero bytes written.
func (c *Controller) StartDownload(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateMissing, StateDownloadFailed:
	default:
		// Includes Downloading and Initializing: idempotent no-op, no second
		// session, no second network sequence.
		return c.state, nil
	}

	if err := c.downloader.Preflight(c.desc, c.storageDir); err != nil {
		c.logger.Error().Err(err).Msg("Download pre-flight failed")
		return c.state, err
	}

	sess, dctx := newSession(ctx, c.desc, c.storageDir)
	c.sess = sess
	c.lastErr = ""
	c.progress = nil
	c.setStateLocked(StateDownloading)

	go c.runDownload(dctx, sess)
	return c.state, nil
}

// Cancel requests cooperative cancellation of the in-flight transfer. The
// partial file is preserved and the controller returns to Missing; it is
// not reported as an error.
func (c *Controller) Cancel() {
	c.mu.Lock()
	sess := c.sess
	state := c.state
	c.mu.Unlock()

	if state != StateDownloading || sess == nil {
		return
	}
	c.logger.Info().Str("session", sess.id).Msg("Cancelling download")
	sess.Cancel()
}

// Retry re-enters the lifecycle without reconstructing the controller:
// DownloadFailed resumes the transfer, Error re-runs the local check.
func (c *Controller) Retry(ctx context.Context) State {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateDownloadFailed:
		st, _ := c.StartDownload(ctx)
		return st
	case StateError:
		c.mu.Lock()
		c.lastErr = ""
		c.mu.Unlock()
		return c.Start(ctx)
	default:
		return state
	}
}

// Close cancels any live session, releases the engine and stops event
// delivery.
func (c *Controller) Close() {
	c.mu.Lock()
	sess := c.sess
	eng := c.eng
	c.eng = nil
	c.mu.Unlock()

	if sess != nil {
		sess.Cancel()
		<-sess.done
	}
	if eng != nil {
		if err := eng.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close engine")
		}
	}
	c.dispatcher.close()
}

// runDownload executes the transfer on a background goroutine and applies
// the terminal transition.
func (c *Controller) runDownload(ctx context.Context, sess *session) {
	defer close(sess.done)

	events := transferEvents{
		progress: func(snap Snapshot) {
			c.mu.Lock()
			copied := snap
			c.progress = &copied
			c.mu.Unlock()
			c.dispatcher.publish(event{kind: eventProgress, snap: snap, session: sess.id})
		},
		attempt: func(n int) {
			if n > 1 {
				// Each retry re-announces Downloading so observers see the
				// attempt boundary.
				c.dispatcher.publish(event{kind: eventStatus, state: StateDownloading, session: sess.id})
			}
		},
	}

	path, err := c.downloader.Download(ctx, c.desc, sess, events)

	c.mu.Lock()
	if c.sess != sess {
		// Superseded by a later session; its outcome owns the state.
		c.mu.Unlock()
		return
	}
	c.sess = nil

	switch {
	case err == nil:
		c.modelPath = path
		c.dispatcher.publish(event{kind: eventSuccess, path: path, session: sess.id, terminal: true})
		c.initializeLocked(context.Background(), path)
	case errors.Is(err, ErrCancelled):
		c.setStateLocked(StateMissing)
		c.dispatcher.publish(event{kind: eventCancelled, session: sess.id, terminal: true})
	default:
		c.lastErr = err.Error()
		c.setStateLocked(StateDownloadFailed)
		c.dispatcher.publish(event{kind: eventError, message: err.Error(), session: sess.id, terminal: true})
	}
	c.mu.Unlock()
}

// initializeLocked hands the verified path to the engine factory on a
// background goroutine. Caller holds the mutex.
func (c *Controller) initializeLocked(ctx context.Context, path string) {
	c.modelPath = path
	c.setStateLocked(StateInitializing)

	go func() {
		eng, err := c.factory(ctx, path)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state != StateInitializing {
			if eng != nil {
				eng.Close()
			}
			return
		}
		if err != nil {
			c.lastErr = err.Error()
			c.setStateLocked(StateError)
			c.dispatcher.publish(event{kind: eventError, message: err.Error()})
			return
		}
		c.eng = eng
		c.setStateLocked(StateReady)
	}()
}

// setStateLocked applies a transition and emits the status event. Caller
// holds the mutex; publish only appends to the dispatcher queue, so no
// blocking work happens here.
func (c *Controller) setStateLocked(s State) {
	if c.state != s {
		c.logger.Info().Str("from", string(c.state)).Str("to", string(s)).Msg("State changed")
	}
	c.state = s
	c.dispatcher.publish(event{kind: eventStatus, state: s})
}
