package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/engine"
	"github.com/pocketsage/pocketsage/internal/engine/mock"
)

// recorder captures observer callbacks for assertions.
type recorder struct {
	mu        sync.Mutex
	states    []State
	progress  []Snapshot
	successes []string
	errs      []string
	cancels   int
}

func (r *recorder) OnStatusChanged(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) OnProgress(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, snap)
}

func (r *recorder) OnSuccess(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, path)
}

func (r *recorder) OnError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, message)
}

func (r *recorder) OnCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}

func (r *recorder) stateSeq() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) sawState(s State) bool {
	for _, st := range r.stateSeq() {
		if st == s {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func newTestController(t *testing.T, d Descriptor, dir string, factory engine.Factory) *Controller {
	t.Helper()
	verifier := NewVerifier(zerolog.Nop())
	locator := NewLocator(verifier, zerolog.Nop())
	dl := NewDownloader(DownloaderConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		SafetyMargin:   1,
		EmitInterval:   time.Millisecond,
		EmitBytes:      1,
		UserAgent:      "test-agent",
	}, verifier, zerolog.Nop())
	dl.diskFree = func(string) (int64, error) { return 1 << 40, nil }

	ctrl := NewController(d, dir, locator, dl, factory, zerolog.Nop())
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestLifecycleMissingThenRetriedDownloadToReady(t *testing.T) {
	data := []byte("lifecycle-model-content-0123456789")
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		// One transient failure so the transfer spans two attempts.
		if gets.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDescriptor(4, 1024)
	d.URL = srv.URL
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.Factory(&mock.Engine{Reply: "hello"}))
	rec := &recorder{}
	defer ctrl.Subscribe(rec)()

	if state := ctrl.Start(context.Background()); state != StateMissing {
		t.Fatalf("Start = %v, want missing", state)
	}

	state, err := ctrl.StartDownload(context.Background())
	if err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}
	if state != StateDownloading {
		t.Fatalf("StartDownload = %v, want downloading", state)
	}

	waitFor(t, func() bool { return ctrl.State() == StateReady })
	waitFor(t, func() bool { return rec.sawState(StateReady) })

	want := []State{StateChecking, StateMissing, StateDownloading, StateDownloading, StateInitializing, StateReady}
	got := rec.stateSeq()
	if len(got) != len(want) {
		t.Fatalf("State sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("State sequence %v, want %v", got, want)
		}
	}

	rec.mu.Lock()
	successes := len(rec.successes)
	progressCount := len(rec.progress)
	rec.mu.Unlock()
	if successes != 1 {
		t.Fatalf("Got %d success events, want 1", successes)
	}
	if progressCount == 0 {
		t.Fatal("Expected progress events")
	}

	eng, ok := ctrl.Engine()
	if !ok {
		t.Fatal("Engine should be available when ready")
	}
	reply, err := eng.Generate(context.Background(), "hi", "")
	if err != nil || reply != "hello" {
		t.Fatalf("Generate = %q, %v", reply, err)
	}
}

func TestLifecycleFindsExistingAsset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.task", []byte("pre-existing-model-data"))

	d := testDescriptor(4, 1024)
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.Factory(&mock.Engine{}))

	ctrl.Start(context.Background())
	waitFor(t, func() bool { return ctrl.State() == StateReady })

	st := ctrl.Status()
	if st.ModelPath == "" {
		t.Fatal("Status should carry the located path")
	}
}

func TestLifecycleConcurrentStartsShareOneTransfer(t *testing.T) {
	data := []byte("single-session-content-0123456789")
	release := make(chan struct{})
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		gets.Add(1)
		<-release
		w.Write(data)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDescriptor(4, 1024)
	d.URL = srv.URL
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.Factory(&mock.Engine{}))
	ctrl.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ctrl.StartDownload(context.Background()); err != nil {
				t.Errorf("StartDownload failed: %v", err)
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return gets.Load() >= 1 })
	close(release)
	waitFor(t, func() bool { return ctrl.State() == StateReady })

	if n := gets.Load(); n != 1 {
		t.Fatalf("Observed %d transfers, want exactly 1", n)
	}
}

func TestLifecycleCancelReturnsToMissing(t *testing.T) {
	data := []byte("cancellable-content-0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(data[:8])
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDescriptor(4, 1024)
	d.URL = srv.URL
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.Factory(&mock.Engine{}))
	rec := &recorder{}
	defer ctrl.Subscribe(rec)()

	ctrl.Start(context.Background())
	if _, err := ctrl.StartDownload(context.Background()); err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}

	// Wait for the first bytes before cancelling.
	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.progress) > 0
	})
	ctrl.Cancel()

	waitFor(t, func() bool { return ctrl.State() == StateMissing })
	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.cancels == 1
	})

	rec.mu.Lock()
	errCount := len(rec.errs)
	rec.mu.Unlock()
	if errCount != 0 {
		t.Fatalf("Cancellation must not be reported as an error, got %d error events", errCount)
	}

	// Partial survives for a later resume.
	if _, err := os.Stat(d.TempPath(dir)); err != nil {
		t.Fatalf("Expected partial file to remain: %v", err)
	}
}

func TestLifecycleRetryAfterDownloadFailed(t *testing.T) {
	data := []byte("recovered-content-0123456789")
	var broken atomic.Bool
	broken.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		if broken.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDescriptor(4, 1024)
	d.URL = srv.URL
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.Factory(&mock.Engine{}))
	rec := &recorder{}
	defer ctrl.Subscribe(rec)()

	ctrl.Start(context.Background())
	if _, err := ctrl.StartDownload(context.Background()); err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}
	waitFor(t, func() bool { return ctrl.State() == StateDownloadFailed })

	if st := ctrl.Status(); st.Error == "" {
		t.Fatal("Failed download should surface an error message")
	}

	broken.Store(false)
	if state := ctrl.Retry(context.Background()); state != StateDownloading {
		t.Fatalf("Retry = %v, want downloading", state)
	}
	waitFor(t, func() bool { return ctrl.State() == StateReady })
}

func TestLifecycleEngineFailureIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.task", []byte("pre-existing-model-data"))

	d := testDescriptor(4, 1024)
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.FailingFactory(errors.New("runtime missing")))

	ctrl.Start(context.Background())
	waitFor(t, func() bool { return ctrl.State() == StateError })

	if st := ctrl.Status(); st.Error == "" {
		t.Fatal("Engine failure should surface an error message")
	}
	if _, ok := ctrl.Engine(); ok {
		t.Fatal("Engine must not be available in the error state")
	}
}

func TestLifecyclePreflightFailureIsSynchronous(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDescriptor(4, 1024)
	d.URL = srv.URL
	d.Candidates = []string{dir}

	verifier := NewVerifier(zerolog.Nop())
	dl := NewDownloader(DefaultDownloaderConfig(), verifier, zerolog.Nop())
	dl.diskFree = func(string) (int64, error) { return 100, nil }
	ctrl := NewController(d, dir, NewLocator(verifier, zerolog.Nop()), dl, mock.Factory(&mock.Engine{}), zerolog.Nop())
	defer ctrl.Close()

	state := ctrl.Start(context.Background())
	if state != StateMissing {
		t.Fatalf("Start = %v, want missing", state)
	}

	_, err := ctrl.StartDownload(context.Background())
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected StorageError, got %v", err)
	}
	if ctrl.State() != StateMissing {
		t.Fatalf("State = %v, want missing after pre-flight failure", ctrl.State())
	}
	if requests.Load() != 0 {
		t.Fatal("Pre-flight failure must not touch the network")
	}
}

func TestLifecycleStartIsIdempotentWhileBusy(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		<-release
		w.Write([]byte("busy-state-content-0123456789"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := testDescriptor(4, 1024)
	d.URL = srv.URL
	d.Candidates = []string{dir}

	ctrl := newTestController(t, d, dir, mock.Factory(&mock.Engine{}))
	ctrl.Start(context.Background())
	ctrl.StartDownload(context.Background())

	if state := ctrl.Start(context.Background()); state != StateDownloading {
		t.Fatalf("Start during transfer = %v, want downloading (no-op)", state)
	}

	close(release)
	waitFor(t, func() bool { return ctrl.State() == StateReady })
}
