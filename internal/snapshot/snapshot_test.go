package snapshot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/imyousuf/codecaliper/internal/store"
)

func populated(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()

	fd := store.NewFileDescriptor("src/A.cs", "/repo/src/A.cs", nil)
	fd.Dialect = "csharp"
	fd.Hash = 42
	fd.Lines = store.LineCounts{Total: 12, Blank: 2, Comment: 3, Code: 7}
	fd.CyclomaticComplexity = 4
	fd.SourceLinesOfCode = 5
	if _, _, err := st.Register(fd); err != nil {
		t.Fatal(err)
	}
	st.Put(&store.ScopeRecord{Identifier: "src/A.cs:A", Kind: store.ScopeType, CyclomaticComplexity: 4, SourceLinesOfCode: 5})
	st.Put(&store.ScopeRecord{Identifier: "src/A.cs:A:Run()void", Kind: store.ScopeFunction, CyclomaticComplexity: 3, SourceLinesOfCode: 4})
	st.Put(&store.ScopeRecord{Identifier: "src/A.cs:A:Size:get", Kind: store.ScopeAccessor, CyclomaticComplexity: 1, SourceLinesOfCode: 1})
	st.Put(&store.ScopeRecord{Identifier: "src/A.cs:AB", Kind: store.ScopeType})
	return st
}

func exported(t *testing.T) *Snapshot {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snap")
	n, err := Export(path, populated(t))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 records written, got %d", n)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetFileRecord(t *testing.T) {
	s := exported(t)

	r, err := s.Get("src/A.cs")
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != "file" || r.Dialect != "csharp" || r.Hash != 42 || r.CodeLines != 7 {
		t.Errorf("unexpected file record: %+v", r)
	}
	sc := r.Scope()
	if sc.Kind != store.ScopeFile || sc.CyclomaticComplexity != 4 || sc.SourceLinesOfCode != 5 {
		t.Errorf("unexpected scope: %+v", sc)
	}
}

func TestGetMissing(t *testing.T) {
	s := exported(t)
	if _, err := s.Get("src/Nope.cs"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestScanContainment(t *testing.T) {
	s := exported(t)

	recs, err := s.Scan("src/A.cs:A")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"src/A.cs:A", "src/A.cs:A:Run()void", "src/A.cs:A:Size:get"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %+v", len(want), recs)
	}
	for i, r := range recs {
		if r.Identifier != want[i] {
			t.Errorf("record %d: got %q, want %q", i, r.Identifier, want[i])
		}
	}

	all, err := s.Scan("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 records, got %d", len(all))
	}
}

func TestExportReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap")
	if _, err := Export(path, populated(t)); err != nil {
		t.Fatal(err)
	}

	st := store.New()
	st.Put(&store.ScopeRecord{Identifier: "x.java:X", Kind: store.ScopeType, CyclomaticComplexity: 1})
	if _, err := Export(path, st); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	all, err := s.Scan("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Identifier != "x.java:X" {
		t.Errorf("expected only the second export, got %+v", all)
	}
}

func TestOpenWithoutSchema(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty")
	db, err := openDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(dir); !errors.Is(err, ErrSchema) {
		t.Errorf("expected ErrSchema, got %v", err)
	}
}

func TestStoreRestoresEntries(t *testing.T) {
	s := exported(t)

	st, err := s.Store("src/A.cs")
	if err != nil {
		t.Fatal(err)
	}
	if st.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", st.Len())
	}
	fd, err := st.File("src/A.cs")
	if err != nil {
		t.Fatal(err)
	}
	if fd.Lines.Comment != 3 || fd.Dialect != "csharp" || fd.CyclomaticComplexity != 4 {
		t.Errorf("unexpected file descriptor: %+v", fd)
	}
	rec, err := st.Scope("src/A.cs:A:Run()void")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != store.ScopeFunction || rec.CyclomaticComplexity != 3 {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, err := s.Store("src/Nope.cs"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestOpenLeavesMissingPathAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo")

	if _, err := Open(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open must not create %s", path)
	}
}

func TestOpenRejectsPlainDirectory(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(dir); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Open must not write into %s, found %d entries", dir, len(entries))
	}
}
