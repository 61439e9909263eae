package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imyousuf/codecaliper/internal/input"
)

func startWatcher(t *testing.T, cfg Config) <-chan Batch {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	batches, err := w.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to initialize.
	time.Sleep(200 * time.Millisecond)
	return batches
}

func collect(batches <-chan Batch, wait time.Duration) []Batch {
	var collected []Batch
	timeout := time.After(wait)
	for {
		select {
		case b, ok := <-batches:
			if !ok {
				return collected
			}
			collected = append(collected, b)
		case <-timeout:
			return collected
		}
	}
}

func isSource(path string) bool {
	return strings.HasSuffix(path, ".cs") || strings.HasSuffix(path, ".java")
}

func TestBatchDebouncing(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "A.cs")
	if err := os.WriteFile(testFile, []byte("class A {}"), 0644); err != nil {
		t.Fatal(err)
	}

	batches := startWatcher(t, Config{Root: tmpDir})

	// Write to the file multiple times in rapid succession.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(testFile, []byte("class A { int x = "+string(rune('0'+i))+"; }"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	collected := collect(batches, 800*time.Millisecond)
	if len(collected) == 0 {
		t.Fatal("expected at least one batch, got none")
	}
	if len(collected) >= 5 {
		t.Errorf("expected debouncing to reduce batches, got %d for 5 writes", len(collected))
	}
	for _, b := range collected {
		if len(b) != 1 || b[0].Path != testFile {
			t.Errorf("expected a single event for %s, got %+v", testFile, b)
		}
	}
}

func TestBatchGroupsPaths(t *testing.T) {
	tmpDir := t.TempDir()
	batches := startWatcher(t, Config{Root: tmpDir, Debounce: 300 * time.Millisecond})

	for _, name := range []string{"B.java", "A.cs"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("class X {}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	collected := collect(batches, time.Second)
	if len(collected) != 1 {
		t.Fatalf("expected one batch, got %d: %+v", len(collected), collected)
	}
	paths := collected[0].Paths()
	if len(paths) != 2 || paths[0] != filepath.Join(tmpDir, "A.cs") || paths[1] != filepath.Join(tmpDir, "B.java") {
		t.Errorf("expected both paths sorted, got %v", paths)
	}
}

func TestWatcherNewDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	batches := startWatcher(t, Config{Root: tmpDir, Accept: isSource})

	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Wait a bit for the directory to be added to the watcher.
	time.Sleep(300 * time.Millisecond)

	newFile := filepath.Join(subDir, "New.java")
	if err := os.WriteFile(newFile, []byte("class New {}"), 0644); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, b := range collect(batches, 800*time.Millisecond) {
		for _, e := range b {
			if e.Path == subDir {
				t.Errorf("directories must not be reported: %+v", e)
			}
			if e.Path == newFile {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected an event for %s", newFile)
	}
}

func TestWatcherDirectoryMovedIn(t *testing.T) {
	tmpDir := t.TempDir()
	staging := filepath.Join(t.TempDir(), "pkg")
	files := map[string]string{
		"A.cs":          "class A {}",
		"nested/B.java": "class B {}",
		"README.txt":    "notes",
	}
	for rel, content := range files {
		path := filepath.Join(staging, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	batches := startWatcher(t, Config{Root: tmpDir, Accept: isSource})

	target := filepath.Join(tmpDir, "pkg")
	if err := os.Rename(staging, target); err != nil {
		t.Fatal(err)
	}

	got := make(map[string]EventOp)
	for _, b := range collect(batches, 800*time.Millisecond) {
		for _, e := range b {
			got[e.Path] = e.Op
		}
	}
	want := []string{
		filepath.Join(target, "A.cs"),
		filepath.Join(target, "nested", "B.java"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for _, path := range want {
		if op, ok := got[path]; !ok || op != Create {
			t.Errorf("expected a create event for %s, got %v", path, got)
		}
	}
}

func TestWatcherFilters(t *testing.T) {
	tmpDir := t.TempDir()
	objDir := filepath.Join(tmpDir, "obj")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := input.NewMatcher(nil, []string{`/obj(/|$)`})
	if err != nil {
		t.Fatal(err)
	}
	batches := startWatcher(t, Config{Root: tmpDir, Matcher: m, Accept: isSource})

	writes := map[string]string{
		filepath.Join(objDir, "Gen.cs"):    "class Gen {}",
		filepath.Join(tmpDir, "notes.txt"): "hello",
		filepath.Join(tmpDir, "Main.cs"):   "class Main {}",
	}
	for p, content := range writes {
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var paths []string
	for _, b := range collect(batches, 800*time.Millisecond) {
		paths = append(paths, b.Paths()...)
	}
	for _, p := range paths {
		if p != filepath.Join(tmpDir, "Main.cs") {
			t.Errorf("unexpected event path: %s", p)
		}
	}
	if len(paths) == 0 {
		t.Error("expected an event for Main.cs")
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	f := filepath.Join(t.TempDir(), "A.cs")
	if err := os.WriteFile(f, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{Root: f}); err == nil {
		t.Error("expected error for a file root")
	}
	if _, err := New(Config{Root: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for a missing root")
	}
}

func TestConvertOp(t *testing.T) {
	tests := []struct {
		name   string
		op     fsnotify.Op
		want   EventOp
		wantOk bool
	}{
		{"create", fsnotify.Create, Create, true},
		{"write", fsnotify.Write, Write, true},
		{"remove", fsnotify.Remove, Remove, true},
		{"rename", fsnotify.Rename, Rename, true},
		{"chmod only", fsnotify.Chmod, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertOp(tt.op)
			if ok != tt.wantOk {
				t.Errorf("convertOp(%v) ok = %v, want %v", tt.op, ok, tt.wantOk)
			}
			if ok && got != tt.want {
				t.Errorf("convertOp(%v) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestEventOpString(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{Create, "Create"},
		{Write, "Write"},
		{Remove, "Remove"},
		{Rename, "Rename"},
		{EventOp(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.op.String(); got != tt.want {
				t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.want)
			}
		})
	}
}
