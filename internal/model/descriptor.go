package model

import (
	"net/url"
	"path/filepath"
	"strings"
)

// TempSuffix marks an in-progress transfer next to its final destination.
const TempSuffix = ".tmp"

// partialSuffixes are the extensions cleanup treats as leftover transfer
// state when scanning a storage directory.
var partialSuffixes = []string{TempSuffix, ".partial", ".download"}

// Descriptor identifies the model asset: where it may already exist locally,
// where to fetch it from, and what a valid copy looks like. Treated as
// immutable after construction.
type Descriptor struct {
	// Name is the logical model name used in logs and API responses.
	Name string

	// FileName is the destination file name under the storage directory.
	FileName string

	// URL is the remote resource the downloader fetches.
	URL string

	// AuthToken, when set, is sent as a bearer credential.
	AuthToken string

	// MinBytes and MaxBytes bound the acceptable file size. MinBytes of zero
	// falls back to a fixed floor; MaxBytes must allow slack above the
	// nominal size and also drives the free-disk pre-flight check.
	MinBytes int64
	MaxBytes int64

	// SHA256 is an optional lowercase hex checksum. When empty, verification
	// stops at the size and header checks.
	SHA256 string

	// Candidates are directories scanned in priority order for an existing
	// valid copy of the asset.
	Candidates []string
}

// Validate checks the descriptor before any filesystem or network work.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(d.FileName) == "" {
		return &ValidationError{Field: "fileName", Reason: "must not be empty"}
	}
	if d.FileName != filepath.Base(d.FileName) {
		return &ValidationError{Field: "fileName", Reason: "must not contain path separators"}
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}
	if d.MaxBytes <= 0 {
		return &ValidationError{Field: "maxBytes", Reason: "must be positive"}
	}
	if d.MinBytes < 0 || d.MinBytes > d.MaxBytes {
		return &ValidationError{Field: "minBytes", Reason: "must be within [0, maxBytes]"}
	}
	return nil
}

// DestPath returns the final asset path under dir.
func (d Descriptor) DestPath(dir string) string {
	return filepath.Join(dir, d.FileName)
}

// TempPath returns the in-progress transfer path under dir.
func (d Descriptor) TempPath(dir string) string {
	return filepath.Join(dir, d.FileName+TempSuffix)
}
