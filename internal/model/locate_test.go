package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLocateFindsFirstValidCandidate(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, second, "model.task", []byte("valid-model-data"))

	d := testDescriptor(4, 1024)
	d.Candidates = []string{first, second}

	loc := NewLocator(NewVerifier(zerolog.Nop()), zerolog.Nop())
	path, found := loc.Locate(d)
	if !found {
		t.Fatal("Expected candidate to be found")
	}
	if want := filepath.Join(second, "model.task"); path != want {
		t.Fatalf("Located %q, want %q", path, want)
	}
}

func TestLocateNothingFound(t *testing.T) {
	d := testDescriptor(4, 1024)
	d.Candidates = []string{t.TempDir(), t.TempDir()}

	loc := NewLocator(NewVerifier(zerolog.Nop()), zerolog.Nop())
	if _, found := loc.Locate(d); found {
		t.Fatal("Expected no candidate")
	}
}

func TestLocateRemovesInvalidCandidate(t *testing.T) {
	dir := t.TempDir()
	// Zero header fails verification.
	invalid := writeFile(t, dir, "model.task", make([]byte, 64))
	stray := writeFile(t, dir, "model.task.tmp", []byte("partial"))

	d := testDescriptor(4, 1024)
	d.Candidates = []string{dir}

	loc := NewLocator(NewVerifier(zerolog.Nop()), zerolog.Nop())
	if _, found := loc.Locate(d); found {
		t.Fatal("Expected invalid candidate to be rejected")
	}
	if _, err := os.Stat(invalid); !os.IsNotExist(err) {
		t.Fatal("Invalid candidate should have been deleted")
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Fatal("Partial file should have been deleted with the candidate")
	}
}

func TestRemovePartialsLeavesFinalFile(t *testing.T) {
	dir := t.TempDir()
	final := writeFile(t, dir, "model.task", []byte("final"))
	tmp := writeFile(t, dir, "model.task.tmp", []byte("tmp"))
	part := writeFile(t, dir, "model.task.partial", []byte("part"))
	other := writeFile(t, dir, "other.bin", []byte("other"))

	RemovePartials(dir, "model.task", zerolog.Nop())

	for _, kept := range []string{final, other} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("File %q should have been kept: %v", kept, err)
		}
	}
	for _, gone := range []string{tmp, part} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("File %q should have been removed", gone)
		}
	}
}

func TestRemoveStalePartials(t *testing.T) {
	dir := t.TempDir()
	stale := writeFile(t, dir, "model.task.tmp", []byte("old"))
	fresh := writeFile(t, dir, "model.task.partial", []byte("new"))

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("Failed to age file: %v", err)
	}

	removed := RemoveStalePartials(dir, "model.task", 24*time.Hour, zerolog.Nop())
	if removed != 1 {
		t.Fatalf("Removed %d files, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("Stale partial should have been removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("Fresh partial should have been kept: %v", err)
	}
}
