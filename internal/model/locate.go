package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Locator searches candidate directories for an existing valid copy of the
// asset. Candidates that exist but fail verification are deleted, together
// with any stray partial files sharing the asset's name prefix, so corrupted
// leftovers can neither mask a later valid candidate nor pass as valid.
type Locator struct {
	verifier *Verifier
	logger   zerolog.Logger
}

// NewLocator creates a locator backed by the given verifier.
func NewLocator(verifier *Verifier, logger zerolog.Logger) *Locator {
	return &Locator{
		verifier: verifier,
		logger:   logger.With().Str("component", "locator").Logger(),
	}
}

// Locate scans the descriptor's candidate directories in priority order and
// returns the first path the verifier accepts.
func (l *Locator) Locate(d Descriptor) (string, bool) {
	for _, dir := range d.Candidates {
		path := d.DestPath(dir)

		if _, err := os.Stat(path); err != nil {
			continue
		}

		if err := l.verifier.Verify(path, d); err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Removing invalid candidate")
			RemoveWithPartials(dir, d.FileName, l.logger)
			continue
		}

		l.logger.Info().Str("path", path).Msg("Found valid local asset")
		return path, true
	}
	return "", false
}

// RemoveWithPartials deletes the named file under dir plus every file whose
// name starts with the same prefix and ends in a partial/temp suffix. Used on
// corruption cleanup and failed-download cleanup.
func RemoveWithPartials(dir, fileName string, logger zerolog.Logger) {
	path := filepath.Join(dir, fileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove file")
	}
	RemovePartials(dir, fileName, logger)
}

// RemovePartials deletes partial/temp files under dir whose names share the
// asset's prefix, leaving the final file untouched.
func RemovePartials(dir, fileName string, logger zerolog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), fileName) {
			continue
		}
		if !hasPartialSuffix(entry.Name()) {
			continue
		}
		stray := filepath.Join(dir, entry.Name())
		if err := os.Remove(stray); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", stray).Msg("Failed to remove partial file")
		}
	}
}

// RemoveStalePartials deletes partial files older than maxAge. Used by the
// maintenance scheduler; callers must ensure no transfer is live.
func RemoveStalePartials(dir, fileName string, maxAge time.Duration, logger zerolog.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), fileName) || !hasPartialSuffix(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		stray := filepath.Join(dir, entry.Name())
		if err := os.Remove(stray); err == nil {
			removed++
			logger.Info().Str("path", stray).Msg("Removed stale partial file")
		}
	}
	return removed
}

func hasPartialSuffix(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
