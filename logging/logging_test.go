package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestWriter(t *testing.T, maxSize int64) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	rw, err := Setup(path, maxSize)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		rw.Close()
		log.SetOutput(os.Stderr)
	})
	return rw, path
}

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	rw, path := newTestWriter(t, 64)

	line := strings.Repeat("a", 40) + "\n"
	for i := 0; i < 3; i++ {
		if _, err := rw.Write([]byte(line)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected a backup after exceeding the limit: %v", err)
	}
	if len(backup) == 0 {
		t.Fatal("backup is empty")
	}

	// The live file started over after the rotation.
	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	if int64(len(live)) > 64 {
		t.Fatalf("live file was not reset, has %d bytes", len(live))
	}
}

func TestSetup_DefaultsMaxSize(t *testing.T) {
	rw, _ := newTestWriter(t, 0)

	if rw.maxSize != DefaultMaxSize {
		t.Fatalf("expected default max size %d, got %d", DefaultMaxSize, rw.maxSize)
	}
}

func TestSetup_RotatesOversizedFileFromPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 200)), 0644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	rw, err := Setup(path, 100)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		rw.Close()
		log.SetOutput(os.Stderr)
	})

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("oversized file should have been moved aside: %v", err)
	}
	if rw.size != 0 {
		t.Fatalf("fresh file should start empty, got size %d", rw.size)
	}
}
