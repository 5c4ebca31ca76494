package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type dropCollector struct {
	mu    sync.Mutex
	paths []string
}

func (c *dropCollector) onDrop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *dropCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func TestWatcherIngestsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	c := &dropCollector{}

	w := New([]string{dir}, []string{".txt"}, c.onDrop, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(800 * time.Millisecond)

	paths := c.snapshot()
	if len(paths) < 1 {
		t.Fatalf("expected at least one drop callback, got %v", paths)
	}
	for _, p := range paths {
		if strings.HasSuffix(p, "skip.xyz") {
			t.Errorf("extension filter failed: %v", paths)
		}
	}
}

func TestWatcherIngestsDroppedFolder(t *testing.T) {
	dir := t.TempDir()
	c := &dropCollector{}

	w := New([]string{dir}, []string{".txt", ".md"}, c.onDrop, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	folder := filepath.Join(dir, "batch")
	if err := os.MkdirAll(folder, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "a.txt"), []byte("a"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "b.md"), []byte("b"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(800 * time.Millisecond)

	paths := c.snapshot()
	txt, md := false, false
	for _, p := range paths {
		if strings.HasSuffix(p, "a.txt") {
			txt = true
		}
		if strings.HasSuffix(p, "b.md") {
			md = true
		}
	}
	if !txt || !md {
		t.Errorf("expected a.txt and b.md to be ingested, got %v", paths)
	}
}

func TestWatcherSyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("present before start"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old.bin"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	c := &dropCollector{}
	w := New([]string{dir}, []string{".txt"}, c.onDrop, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExisting()

	paths := c.snapshot()
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "old.txt") {
		t.Errorf("expected only old.txt, got %v", paths)
	}
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop", "here")

	w := New([]string{root}, []string{".txt"}, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/d/a.txt", []string{".txt"}, true},
		{"/d/a.TXT", []string{".txt"}, true},
		{"/d/a.pdf", []string{".txt", ".md"}, false},
		{"/d/noext", nil, true},
		{"/d/noext", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}
