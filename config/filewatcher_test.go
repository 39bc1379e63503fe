package config

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileWatcherFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, "port: 1\n")

	fw, err := NewFileWatcher(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()
	if err := fw.WatchFile(path); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	changed := make(chan struct{}, 4)
	go fw.Run(ctx, path, func() {
		atomic.AddInt32(&calls, 1)
		changed <- struct{}{}
	})

	writeFile(t, path, "port: 2\n")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was never invoked after a write")
	}
}

func TestFileWatcherDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, "port: 1\n")

	fw, err := NewFileWatcher(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()
	if err := fw.WatchFile(path); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	go fw.Run(ctx, path, func() { atomic.AddInt32(&calls, 1) })

	for i := 0; i < 5; i++ {
		writeFile(t, path, "port: 2\n")
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1 after debouncing 5 rapid writes", got)
	}
}

func TestFileWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, "port: 1\n")
	otherPath := filepath.Join(dir, "other.yml")
	writeFile(t, otherPath, "port: 1\n")

	fw, err := NewFileWatcher(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()
	if err := fw.WatchFile(path); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	go fw.Run(ctx, path, func() { atomic.AddInt32(&calls, 1) })

	writeFile(t, otherPath, "port: 2\n")
	time.Sleep(150 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("calls = %d, want 0: a write to an unrelated file must not trigger a reload", got)
	}
}
