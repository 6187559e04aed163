// Package testing holds test doubles shared by package tests.
package testing

import (
	"errors"
	"io"
	"os"
	"testing"
)

// ErrWrite is returned by the failing writers below.
var ErrWrite = errors.New("write failed")

// BrokenWriter rejects every write.
type BrokenWriter struct{}

func (BrokenWriter) Write([]byte) (int, error) {
	return 0, ErrWrite
}

// FlakyWriter forwards a fixed number of writes and rejects the rest.
type FlakyWriter struct {
	w         io.Writer
	remaining int
}

// FailAfter returns a writer that lets n writes through to w.
func FailAfter(n int, w io.Writer) *FlakyWriter {
	return &FlakyWriter{w: w, remaining: n}
}

func (f *FlakyWriter) Write(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, ErrWrite
	}
	f.remaining--
	return f.w.Write(p)
}

// RequireFile fails the test unless path exists and is a regular file.
func RequireFile(t testing.TB, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file %s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		t.Fatalf("expected %s to be a regular file, got %s", path, info.Mode())
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	RequireFile(t, path)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
