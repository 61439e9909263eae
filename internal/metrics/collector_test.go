package metrics

import (
	"errors"
	"testing"

	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/parser/csharp"
	"github.com/imyousuf/codecaliper/internal/parser/java"
	"github.com/imyousuf/codecaliper/internal/store"
)

const csharpSource = `class T
{
    void M()
    {
        if (a == a)
        {
            x();
        }
        y();
    }

    int Count
    {
        get { return c; }
        set { c = value; }
    }
}
`

const javaSource = `class T {
    int m(int a, int b) {
        while (a > 0 && b > 0) {
            a--;
        }
        return a;
    }
}
`

// Stacked labels share one section; a section holding a default label adds
// nothing even when other labels precede it.
const csharpSwitchSource = `class S
{
    void M(int k)
    {
        switch (k)
        {
            case 1:
            case 2:
                a();
                break;
            default:
                b();
                break;
        }
    }

    void D(int k)
    {
        switch (k)
        {
            case 1:
            default:
                b();
                break;
        }
    }
}
`

const javaSwitchSource = `class S {
    void m(int k) {
        switch (k) {
            case 1:
            case 2:
                a();
                break;
            default:
                b();
                break;
        }
    }

    void d(int k) {
        switch (k) {
            case 1:
            default:
                b();
                break;
        }
    }
}
`

func setupFile(t *testing.T, st *store.Store, id, src string, p parser.Parser) {
	t.Helper()
	fd := store.NewFileDescriptor(id, "/repo/"+id, []byte(src))
	tree, err := p.Parse(fd.Path, fd.Source)
	if err != nil {
		t.Fatalf("parse %s: %v", id, err)
	}
	fd.Tree = tree
	st.Put(fd)
}

func TestCollectCSharp(t *testing.T) {
	st := store.New()
	setupFile(t, st, "src/T.cs", csharpSource, csharp.NewParser())

	file, err := NewDefaultCollector(st).CollectMetrics("src/T.cs")
	if err != nil {
		t.Fatalf("CollectMetrics: %v", err)
	}

	assertMetrics(t, scope(t, st, "src/T.cs:T:M()void"), 2, 3)
	assertMetrics(t, scope(t, st, "src/T.cs:T:Count:get"), 1, 1)
	assertMetrics(t, scope(t, st, "src/T.cs:T:Count:set"), 1, 1)
	assertMetrics(t, scope(t, st, "src/T.cs:T"), 4, 5)
	assertMetrics(t, file, 4, 5)

	// the returned record is a copy of the stored file scope
	assertMetrics(t, scope(t, st, "src/T.cs"), 4, 5)
}

func TestCollectJava(t *testing.T) {
	st := store.New()
	setupFile(t, st, "src/T.java", javaSource, java.NewParser())

	if _, err := NewDefaultCollector(st).CollectMetrics("src/T.java"); err != nil {
		t.Fatalf("CollectMetrics: %v", err)
	}
	assertMetrics(t, scope(t, st, "src/T.java:T:m(int, int)int"), 3, 3)
}

func TestCollectCSharpStackedCaseLabels(t *testing.T) {
	st := store.New()
	setupFile(t, st, "src/S.cs", csharpSwitchSource, csharp.NewParser())

	if _, err := NewDefaultCollector(st).CollectMetrics("src/S.cs"); err != nil {
		t.Fatalf("CollectMetrics: %v", err)
	}
	assertMetrics(t, scope(t, st, "src/S.cs:S:M(int)void"), 2, 5)
	assertMetrics(t, scope(t, st, "src/S.cs:S:D(int)void"), 1, 3)
}

func TestCollectJavaStackedCaseLabels(t *testing.T) {
	st := store.New()
	setupFile(t, st, "src/S.java", javaSwitchSource, java.NewParser())

	if _, err := NewDefaultCollector(st).CollectMetrics("src/S.java"); err != nil {
		t.Fatalf("CollectMetrics: %v", err)
	}
	assertMetrics(t, scope(t, st, "src/S.java:S:m(int)void"), 2, 5)
	assertMetrics(t, scope(t, st, "src/S.java:S:d(int)void"), 1, 3)
}

func TestCollectErrors(t *testing.T) {
	st := store.New()
	c := NewDefaultCollector(st)

	if _, err := c.CollectMetrics("missing.cs"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}

	st.Put(store.NewFileDescriptor("legacy.vb", "/repo/legacy.vb", nil))
	if _, err := c.CollectMetrics("legacy.vb"); !errors.Is(err, ErrUnsupportedDialect) {
		t.Errorf("expected ErrUnsupportedDialect, got %v", err)
	}

	st.Put(store.NewFileDescriptor("raw.cs", "/repo/raw.cs", []byte("class A {}")))
	if _, err := c.CollectMetrics("raw.cs"); !errors.Is(err, ErrNotParsed) {
		t.Errorf("expected ErrNotParsed, got %v", err)
	}

	empty := NewCollector(st)
	if empty.Supports("a.cs") {
		t.Error("collector without walkers should support nothing")
	}
	if !c.Supports("A.CS") {
		t.Error("default collector should support .CS")
	}
}

func TestCountLines(t *testing.T) {
	src := []byte(`using System;

// Entry point.
class Program
{
    /*
      Multi-line comment
    */
    static void Main() { /* inline */ Run(); }
    /* single */
}
`)
	got := CountLines(src)
	want := store.LineCounts{Total: 11, Blank: 1, Comment: 5, Code: 5}
	if got != want {
		t.Errorf("CountLines = %+v, want %+v", got, want)
	}
}

func TestCountLinesCodeAfterBlockClose(t *testing.T) {
	src := []byte("/* start\n end */ int x = 1;\n")
	got := CountLines(src)
	if got.Comment != 1 || got.Code != 1 {
		t.Errorf("CountLines = %+v, want 1 comment and 1 code line", got)
	}
}
