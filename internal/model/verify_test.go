package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testDescriptor(minBytes, maxBytes int64) Descriptor {
	return Descriptor{
		Name:     "test-model",
		FileName: "model.task",
		URL:      "https://example.com/model.task",
		MinBytes: minBytes,
		MaxBytes: maxBytes,
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestVerifyValidFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("model-bytes-0123456789")
	path := writeFile(t, dir, "model.task", data)

	v := NewVerifier(zerolog.Nop())
	if err := v.Verify(path, testDescriptor(4, 1024)); err != nil {
		t.Fatalf("Verify returned error for valid file: %v", err)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	err := v.Verify(filepath.Join(t.TempDir(), "missing.task"), testDescriptor(4, 1024))

	var ierr *IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("Expected IntegrityError, got %v", err)
	}
}

func TestVerifySizeBounds(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(zerolog.Nop())

	small := writeFile(t, dir, "small.task", []byte("ab"))
	if err := v.Verify(small, testDescriptor(16, 1024)); err == nil {
		t.Fatal("Expected error for undersized file")
	}

	big := writeFile(t, dir, "big.task", make([]byte, 64))
	if err := v.Verify(big, testDescriptor(4, 32)); err == nil {
		t.Fatal("Expected error for oversized file")
	}
}

func TestVerifyDefaultMinimumApplies(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(zerolog.Nop())

	// Well-formed but far below the built-in floor.
	path := writeFile(t, dir, "model.task", []byte("tiny-but-nonzero"))
	err := v.Verify(path, testDescriptor(0, 1<<30))
	if err == nil {
		t.Fatal("Expected error when size falls below the default minimum")
	}
}

func TestVerifyZeroHeader(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(zerolog.Nop())

	data := make([]byte, 64)
	path := writeFile(t, dir, "zeros.task", data)

	err := v.Verify(path, testDescriptor(4, 1024))
	var ierr *IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("Expected IntegrityError for zero header, got %v", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(zerolog.Nop())

	data := []byte("checksummed-model-data")
	path := writeFile(t, dir, "model.task", data)

	sum := sha256.Sum256(data)
	d := testDescriptor(4, 1024)
	d.SHA256 = hex.EncodeToString(sum[:])
	if err := v.Verify(path, d); err != nil {
		t.Fatalf("Verify rejected correct checksum: %v", err)
	}

	d.SHA256 = "deadbeef"
	if err := v.Verify(path, d); err == nil {
		t.Fatal("Expected error for checksum mismatch")
	}
}

func TestVerifyDirectory(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(zerolog.Nop())
	if err := v.Verify(dir, testDescriptor(4, 1024)); err == nil {
		t.Fatal("Expected error when path is a directory")
	}
}
