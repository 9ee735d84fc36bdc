package model

import (
	"sync"
	"time"
)

const (
	// defaultEmitInterval and defaultEmitBytes bound callback volume: an
	// update fires when either threshold is crossed, whichever comes first.
	defaultEmitInterval = 500 * time.Millisecond
	defaultEmitBytes    = 8 << 20

	// speedWindow is how far back samples contribute to the instantaneous
	// speed estimate.
	speedWindow = 5 * time.Second
)

// Snapshot is a derived, point-in-time view of transfer progress. Never
// persisted.
type Snapshot struct {
	BytesDownloaded int64   `json:"bytesDownloaded"`
	TotalBytes      int64   `json:"totalBytes"`
	Percent         float64 `json:"percent"`
	SpeedMBps       float64 `json:"speedMBps"`
	ETASeconds      int64   `json:"etaSeconds"`
}

type progressSample struct {
	bytes int64
	at    time.Time
}

// Reporter throttles raw byte counts into rate-limited progress snapshots.
// It keeps a sliding window of (bytes, timestamp) samples to compute
// instantaneous speed; ETA is remaining bytes over speed, zero when the
// speed is zero.
type Reporter struct {
	total    int64
	interval time.Duration
	byteStep int64
	emit     func(Snapshot)

	mu            sync.Mutex
	window        []progressSample
	lastEmitAt    time.Time
	lastEmitBytes int64
	emittedOnce   bool

	now func() time.Time // overridable for tests
}

// NewReporter creates a reporter for a transfer of total bytes. Emit is
// invoked with at most one snapshot per interval or per byteStep bytes.
func NewReporter(total int64, interval time.Duration, byteStep int64, emit func(Snapshot)) *Reporter {
	if interval <= 0 {
		interval = defaultEmitInterval
	}
	if byteStep <= 0 {
		byteStep = defaultEmitBytes
	}
	return &Reporter{
		total:    total,
		interval: interval,
		byteStep: byteStep,
		emit:     emit,
		now:      time.Now,
	}
}

// Record notes the cumulative byte count and emits a snapshot when a
// threshold is crossed.
func (r *Reporter) Record(bytes int64) {
	r.mu.Lock()
	now := r.now()
	r.window = append(r.window, progressSample{bytes: bytes, at: now})
	r.pruneLocked(now)

	due := !r.emittedOnce ||
		now.Sub(r.lastEmitAt) >= r.interval ||
		bytes-r.lastEmitBytes >= r.byteStep
	if !due {
		r.mu.Unlock()
		return
	}

	snap := r.snapshotLocked(bytes, now)
	r.lastEmitAt = now
	r.lastEmitBytes = bytes
	r.emittedOnce = true
	r.mu.Unlock()

	if r.emit != nil {
		r.emit(snap)
	}
}

// Flush emits a final snapshot regardless of thresholds.
func (r *Reporter) Flush(bytes int64) {
	r.mu.Lock()
	now := r.now()
	r.window = append(r.window, progressSample{bytes: bytes, at: now})
	snap := r.snapshotLocked(bytes, now)
	r.lastEmitAt = now
	r.lastEmitBytes = bytes
	r.emittedOnce = true
	r.mu.Unlock()

	if r.emit != nil {
		r.emit(snap)
	}
}

func (r *Reporter) pruneLocked(now time.Time) {
	cutoff := now.Add(-speedWindow)
	drop := 0
	for drop < len(r.window)-1 && r.window[drop].at.Before(cutoff) {
		drop++
	}
	r.window = r.window[drop:]
}

func (r *Reporter) snapshotLocked(bytes int64, now time.Time) Snapshot {
	snap := Snapshot{
		BytesDownloaded: bytes,
		TotalBytes:      r.total,
	}
	if r.total > 0 {
		snap.Percent = float64(bytes) / float64(r.total) * 100
		if snap.Percent > 100 {
			snap.Percent = 100
		}
	}

	first := r.window[0]
	elapsed := now.Sub(first.at).Seconds()
	if elapsed > 0 && bytes > first.bytes {
		bytesPerSec := float64(bytes-first.bytes) / elapsed
		snap.SpeedMBps = bytesPerSec / (1024 * 1024)
		if r.total > bytes {
			snap.ETASeconds = int64(float64(r.total-bytes) / bytesPerSec)
		}
	}
	return snap
}
