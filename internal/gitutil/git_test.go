package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// initRepo creates a repository whose main branch holds A.cs and D.cs, then
// switches to a feature branch that modifies A.cs, commits B.java, deletes
// D.cs and leaves C.cs untracked.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		if _, err := runGit(context.Background(), dir, args...); err != nil {
			t.Fatal(err)
		}
	}
	write := func(name, content string) {
		t.Helper()
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	git("init", "-q")
	git("symbolic-ref", "HEAD", "refs/heads/main")
	write("src/A.cs", "class A {}\n")
	write("src/D.cs", "class D {}\n")
	git("add", ".")
	git("commit", "-q", "-m", "initial")

	git("checkout", "-q", "-b", "feature")
	write("src/B.java", "class B {}\n")
	git("add", "src/B.java")
	git("rm", "-q", "src/D.cs")
	git("commit", "-q", "-m", "feature work")
	write("src/A.cs", "class A { void M() {} }\n")
	write("src/C.cs", "class C {}\n")
	return dir
}

func TestChanges(t *testing.T) {
	dir := initRepo(t)

	diff, err := Changes(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if diff.Base != "main" {
		t.Errorf("expected base main, got %q", diff.Base)
	}
	if diff.MergeBase == "" {
		t.Error("expected a merge-base commit")
	}

	want := []ChangedFile{
		{Path: "src/A.cs", Status: StatusModified},
		{Path: "src/B.java", Status: StatusAdded},
		{Path: "src/C.cs", Status: StatusAdded},
		{Path: "src/D.cs", Status: StatusDeleted},
	}
	if len(diff.Files) != len(want) {
		t.Fatalf("expected %d files, got %+v", len(want), diff.Files)
	}
	for i, w := range want {
		if diff.Files[i] != w {
			t.Errorf("file %d = %+v, want %+v", i, diff.Files[i], w)
		}
	}

	paths := diff.Paths()
	if len(paths) != 3 {
		t.Fatalf("expected 3 existing paths, got %v", paths)
	}
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			t.Errorf("expected absolute path, got %q", p)
		}
		if strings.HasSuffix(p, "D.cs") {
			t.Errorf("deleted file must not be listed: %q", p)
		}
	}
}

func TestChangesExplicitBase(t *testing.T) {
	dir := initRepo(t)

	diff, err := Changes(context.Background(), dir, "feature")
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	// Against its own tip only the working tree changes remain.
	if len(diff.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", diff.Files)
	}
	if diff.Files[0].Path != "src/A.cs" || diff.Files[1].Path != "src/C.cs" {
		t.Errorf("unexpected files: %+v", diff.Files)
	}
}

func TestChangesUnknownBase(t *testing.T) {
	dir := initRepo(t)

	if _, err := Changes(context.Background(), dir, "no-such-branch"); err == nil {
		t.Fatal("expected error for an unknown base")
	}
}

func TestChangesOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())

	if _, err := Changes(context.Background(), t.TempDir(), ""); err == nil {
		t.Fatal("expected error outside a repository")
	}
}

func TestParseNameStatus(t *testing.T) {
	input := "A\tnew_file.cs\n" +
		"M\tmodified file.cs\n" +
		"D\tdeleted_file.cs\n" +
		"R100\told_name.java\tnew_name.java\n" +
		"C75\tbase.java\tcopy.java"

	result := parseNameStatus(input)

	cases := map[string]string{
		"new_file.cs":      StatusAdded,
		"modified file.cs": StatusModified,
		"deleted_file.cs":  StatusDeleted,
		"new_name.java":    StatusRenamed,
		"copy.java":        StatusAdded,
	}
	for path, want := range cases {
		if result[path] != want {
			t.Errorf("status of %q = %q, want %q", path, result[path], want)
		}
	}
	if _, ok := result["old_name.java"]; ok {
		t.Error("rename source must not be listed")
	}
}

func TestParseNameStatusEmpty(t *testing.T) {
	result := parseNameStatus("")
	if len(result) != 0 {
		t.Errorf("expected empty map, got %d entries", len(result))
	}
}

func TestRunGitInvalidRepo(t *testing.T) {
	_, err := runGit(context.Background(), "/tmp/nonexistent-repo-path-12345", "status")
	if err == nil {
		t.Fatal("expected error for invalid repo path, got nil")
	}
}
