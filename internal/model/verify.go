package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// defaultMinBytes is the size floor applied when a descriptor leaves
	// MinBytes unset. Anything smaller cannot be a usable model file.
	defaultMinBytes = 10 << 20

	// headerProbeBytes is how much of the file head is read for the
	// plausibility check. The check only requires a readable, non-empty
	// header; it does not parse any particular container format.
	headerProbeBytes = 8

	hashBufferBytes = 1 << 20
)

// Verifier validates a local file against a descriptor's expectations.
type Verifier struct {
	logger zerolog.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(logger zerolog.Logger) *Verifier {
	return &Verifier{logger: logger.With().Str("component", "verifier").Logger()}
}

// Verify checks, in order: the file exists and is readable, its size falls
// within the descriptor's bounds, its leading bytes are present, and (when
// the descriptor carries a checksum) its full SHA-256 matches. The first
// failed check short-circuits with an *IntegrityError naming the reason.
func (v *Verifier) Verify(path string, d Descriptor) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &IntegrityError{Path: path, Reason: "file does not exist"}
		}
		return &IntegrityError{Path: path, Reason: fmt.Sprintf("file not accessible: %v", err)}
	}
	if info.IsDir() {
		return &IntegrityError{Path: path, Reason: "path is a directory"}
	}

	minBytes := d.MinBytes
	if minBytes <= 0 {
		minBytes = defaultMinBytes
	}
	if info.Size() < minBytes {
		return &IntegrityError{
			Path:   path,
			Reason: fmt.Sprintf("size %d below expected minimum %d", info.Size(), minBytes),
		}
	}
	if info.Size() > d.MaxBytes {
		return &IntegrityError{
			Path:   path,
			Reason: fmt.Sprintf("size %d exceeds expected maximum %d", info.Size(), d.MaxBytes),
		}
	}

	if err := v.checkHeader(path); err != nil {
		return err
	}

	if d.SHA256 != "" {
		if err := v.checkSHA256(path, d.SHA256); err != nil {
			return err
		}
	}

	v.logger.Debug().Str("path", path).Int64("size", info.Size()).Msg("File verified")
	return nil
}

// checkHeader reads the leading bytes and rejects files that are unreadable
// or start with nothing but zero padding.
func (v *Verifier) checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &IntegrityError{Path: path, Reason: fmt.Sprintf("cannot open file: %v", err)}
	}
	defer f.Close()

	head := make([]byte, headerProbeBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return &IntegrityError{Path: path, Reason: "cannot read file header"}
	}

	for _, b := range head[:n] {
		if b != 0 {
			return nil
		}
	}
	return &IntegrityError{Path: path, Reason: "file header is empty"}
}

// checkSHA256 streams the file through SHA-256 in fixed-size chunks so the
// memory footprint stays constant regardless of asset size.
func (v *Verifier) checkSHA256(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return &IntegrityError{Path: path, Reason: fmt.Sprintf("cannot open file: %v", err)}
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufferBytes)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return &IntegrityError{Path: path, Reason: fmt.Sprintf("cannot hash file: %v", err)}
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return &IntegrityError{
			Path:   path,
			Reason: fmt.Sprintf("checksum mismatch: got %s, want %s", actual, strings.ToLower(expected)),
		}
	}
	return nil
}
