package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	// Backoff starts at one second, doubles each retryable failure and is
	// capped at eight seconds.
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 8 * time.Second
	defaultMaxAttempts    = 5

	// defaultSafetyMargin is free space required on top of the asset's
	// expected maximum size before any byte is written.
	defaultSafetyMargin = 512 << 20

	downloadChunkBytes  = 32 * 1024
	reachabilityTimeout = 10 * time.Second
)

// DownloaderConfig tunes retry, pre-flight and progress behavior.
type DownloaderConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SafetyMargin   int64
	EmitInterval   time.Duration
	EmitBytes      int64
	UserAgent      string
}

// DefaultDownloaderConfig returns the tuning fixed by the product: up to five
// attempts with 1s..8s exponential backoff and a 512 MiB disk margin.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		SafetyMargin:   defaultSafetyMargin,
		EmitInterval:   defaultEmitInterval,
		EmitBytes:      defaultEmitBytes,
		UserAgent:      "PocketSage/1.0",
	}
}

// transferEvents carries the callbacks a transfer reports through. Progress
// is already throttled by the Reporter; attempt fires at the start of every
// attempt, including retries.
type transferEvents struct {
	progress func(Snapshot)
	attempt  func(n int)
}

// Downloader transfers a descriptor's remote resource into the storage
// directory, resuming partial transfers via range requests and bounding
// retries with exponential backoff.
type Downloader struct {
	cfg      DownloaderConfig
	verifier *Verifier
	logger   zerolog.Logger

	// No overall timeout: assets are multi-gigabyte and cancellation is
	// handled via context.
	client      *http.Client
	probeClient *http.Client

	// diskFree and sleep are overridable in tests.
	diskFree func(dir string) (int64, error)
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewDownloader creates a downloader.
func NewDownloader(cfg DownloaderConfig, verifier *Verifier, logger zerolog.Logger) *Downloader {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	return &Downloader{
		cfg:         cfg,
		verifier:    verifier,
		logger:      logger.With().Str("component", "downloader").Logger(),
		client:      &http.Client{},
		probeClient: &http.Client{Timeout: reachabilityTimeout},
		diskFree:    freeDiskSpace,
		sleep:       waitBackoff,
	}
}

// Preflight checks that the storage directory exists and holds enough free
// space for the asset plus the safety margin. It is synchronous and writes
// nothing; an insufficient-space result is a *StorageError.
func (dl *Downloader) Preflight(d Descriptor, dir string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &StorageError{Op: "create storage directory", Err: err}
	}

	free, err := dl.diskFree(dir)
	if err != nil {
		return &StorageError{Op: "check free space", Err: err}
	}
	required := d.MaxBytes + dl.cfg.SafetyMargin
	if free < required {
		return &StorageError{
			Op:  "check free space",
			Err: fmt.Errorf("insufficient disk space: %d bytes free, %d required", free, required),
		}
	}
	return nil
}

// Download runs the attempt loop for one session and returns the verified
// destination path. Retryable failures resume from the last known offset
// after backoff; non-retryable failures and exhausted retries surface
// directly. A failed post-download verification deletes the corrupt output
// and consumes one cleanup-and-retry cycle.
func (dl *Downloader) Download(ctx context.Context, d Descriptor, sess *session, events transferEvents) (string, error) {
	dir := filepath.Dir(sess.destPath)
	backoff := dl.cfg.InitialBackoff
	integrityRetried := false

	var lastErr error
	for attempt := 1; attempt <= dl.cfg.MaxAttempts; attempt++ {
		sess.attempt = attempt
		if events.attempt != nil {
			events.attempt(attempt)
		}

		err := dl.attempt(ctx, d, sess, events)
		if err == nil {
			verr := dl.verifier.Verify(sess.destPath, d)
			if verr == nil {
				return sess.destPath, nil
			}
			dl.logger.Warn().Err(verr).Str("path", sess.destPath).Msg("Downloaded file failed verification")
			RemoveWithPartials(dir, d.FileName, dl.logger)
			if integrityRetried || attempt == dl.cfg.MaxAttempts {
				return "", verr
			}
			integrityRetried = true
			lastErr = verr
			continue
		}

		if errors.Is(err, ErrCancelled) {
			// The temp file stays behind so a later start can resume.
			return "", ErrCancelled
		}
		if !retryable(err) {
			RemovePartials(dir, d.FileName, dl.logger)
			return "", err
		}

		lastErr = err
		if attempt == dl.cfg.MaxAttempts {
			break
		}

		dl.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", dl.cfg.MaxAttempts).
			Dur("nextRetryIn", backoff).
			Msg("Retryable download failure, backing off")

		if err := dl.sleep(ctx, backoff); err != nil {
			if sess.isCancelled() {
				return "", ErrCancelled
			}
			return "", err
		}
		backoff *= 2
		if backoff > dl.cfg.MaxBackoff {
			backoff = dl.cfg.MaxBackoff
		}
	}

	dl.logger.Error().Err(lastErr).Int("attempts", dl.cfg.MaxAttempts).Msg("Download failed after all retries")
	RemovePartials(dir, d.FileName, dl.logger)
	return "", fmt.Errorf("download failed after %d attempts: %w", dl.cfg.MaxAttempts, lastErr)
}

// waitBackoff blocks for d or until the context is done.
func waitBackoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attempt performs one transfer pass: reachability probe, resume-offset
// discovery, ranged GET, streamed write, atomic rename.
func (dl *Downloader) attempt(ctx context.Context, d Descriptor, sess *session, events transferEvents) error {
	if err := dl.checkReachable(ctx, d); err != nil {
		return err
	}

	offset, err := dl.resumeOffset(sess.tempPath, d)
	if err != nil {
		return err
	}
	sess.resumedFrom = offset

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, http.NoBody)
	if err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if d.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.AuthToken)
	}
	req.Header.Set("User-Agent", dl.cfg.UserAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	dl.logger.Info().
		Str("url", d.URL).
		Int64("offset", offset).
		Int("attempt", sess.attempt).
		Msg("Starting transfer")

	resp, err := dl.client.Do(req)
	if err != nil {
		if sess.isCancelled() {
			return ErrCancelled
		}
		return &NetworkError{Op: "request asset", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Server ignored the range header; start over from zero.
		if offset > 0 {
			if err := os.Remove(sess.tempPath); err != nil && !os.IsNotExist(err) {
				return &StorageError{Op: "reset partial file", Err: err}
			}
			offset = 0
			sess.resumedFrom = 0
		}
	case resp.StatusCode == http.StatusPartialContent:
		// Resuming from offset.
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &NetworkError{Op: "request asset", StatusCode: resp.StatusCode, Retryable: false,
			Err: errors.New("authorization rejected")}
	case resp.StatusCode == http.StatusNotFound:
		return &NetworkError{Op: "request asset", StatusCode: resp.StatusCode, Retryable: false,
			Err: errors.New("asset not found")}
	case resp.StatusCode >= 500:
		return &NetworkError{Op: "request asset", StatusCode: resp.StatusCode, Retryable: true,
			Err: errors.New("server error")}
	default:
		return &NetworkError{Op: "request asset", StatusCode: resp.StatusCode, Retryable: false,
			Err: errors.New("unexpected status")}
	}

	total := d.MaxBytes
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	if err := dl.stream(resp.Body, d, sess, offset, total, events); err != nil {
		if sess.isCancelled() {
			return ErrCancelled
		}
		return err
	}

	if err := os.Rename(sess.tempPath, sess.destPath); err != nil {
		return &StorageError{Op: "finalize download", Err: err}
	}
	return nil
}

// stream appends the response body to the temp file, reporting throttled
// progress and honoring the session's cancellation flag at chunk boundaries.
func (dl *Downloader) stream(body io.Reader, d Descriptor, sess *session, offset, total int64, events transferEvents) error {
	f, err := os.OpenFile(sess.tempPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return &StorageError{Op: "open partial file", Err: err}
	}
	defer f.Close()

	reporter := NewReporter(total, dl.cfg.EmitInterval, dl.cfg.EmitBytes, events.progress)
	written := offset
	buf := make([]byte, downloadChunkBytes)

	for {
		if sess.isCancelled() {
			// Leave the temp file in place: a cancelled transfer stays
			// resumable.
			return ErrCancelled
		}

		n, err := body.Read(buf)
		if n > 0 {
			if written+int64(n) > d.MaxBytes {
				f.Close()
				os.Remove(sess.tempPath)
				return &IntegrityError{
					Path:   sess.tempPath,
					Reason: fmt.Sprintf("transfer exceeded expected maximum size %d", d.MaxBytes),
				}
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return &StorageError{Op: "write partial file", Err: werr}
			}
			written += int64(n)
			reporter.Record(written)
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &NetworkError{Op: "read asset body", Retryable: true, Err: err}
		}
	}

	if err := f.Sync(); err != nil {
		return &StorageError{Op: "sync partial file", Err: err}
	}
	reporter.Flush(written)
	return nil
}

// checkReachable probes the remote host before committing to a transfer
// attempt. Any response, regardless of status, proves reachability; only
// transport failures count, and they are retryable.
func (dl *Downloader) checkReachable(ctx context.Context, d Descriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.URL, http.NoBody)
	if err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if d.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.AuthToken)
	}
	req.Header.Set("User-Agent", dl.cfg.UserAgent)

	resp, err := dl.probeClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "reach asset host", Retryable: true, Err: err}
	}
	resp.Body.Close()
	return nil
}

// resumeOffset returns the size of the existing temp file, discarding it
// when it already exceeds the expected maximum.
func (dl *Downloader) resumeOffset(tempPath string, d Descriptor) (int64, error) {
	info, err := os.Stat(tempPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, &StorageError{Op: "inspect partial file", Err: err}
	}
	if info.Size() > d.MaxBytes {
		dl.logger.Warn().Int64("size", info.Size()).Msg("Oversized partial file, discarding")
		if err := os.Remove(tempPath); err != nil {
			return 0, &StorageError{Op: "discard partial file", Err: err}
		}
		return 0, nil
	}
	return info.Size(), nil
}
