package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/storekit/internal/watch"
)

func TestWatcherReportsDebouncedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	other := filepath.Join(dir, "other.yaml")
	for _, p := range []string{path, other} {
		if err := os.WriteFile(p, []byte("name: a\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w, err := watch.New(watch.WithDelay(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	for i := range 3 {
		if err := os.WriteFile(path, []byte("name: b\n"+string(rune('a'+i))), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(other, []byte("ignored\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events():
		want, _ := filepath.Abs(path)
		if ev.Path != want {
			t.Errorf("expected event for %s, got %s", want, ev.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}

	select {
	case ev := <-w.Events():
		t.Errorf("expected writes to be coalesced, got extra event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherAddMissingFile(t *testing.T) {
	w, err := watch.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestWatcherClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := watch.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}
	if len(w.Files()) != 1 {
		t.Errorf("expected one watched file, got %v", w.Files())
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Add(path); !errors.Is(err, watch.ErrWatcherClosed) {
		t.Errorf("expected ErrWatcherClosed, got %v", err)
	}

	if err := w.Run(context.Background(), func(watch.Event) error { return nil }, nil); err != nil {
		t.Errorf("expected Run on closed watcher to return nil, got %v", err)
	}
}
