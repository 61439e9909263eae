// Package snapshot persists the scope records of a finished run in a BadgerDB
// directory so they can be queried later without re-parsing.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/imyousuf/codecaliper/internal/store"
)

// Key layout.
const (
	prefixScope = "s:"
	keySchema   = "meta:schema"
)

// badgerManifest is the file every badger directory holds.
const badgerManifest = "MANIFEST"

// schemaVersion is bumped whenever Record changes shape.
const schemaVersion uint16 = 1

// ErrSchema is returned when a snapshot was written by an incompatible version.
var ErrSchema = errors.New("unsupported snapshot schema")

// Record is the persisted form of a scope. File scopes also carry the file's
// dialect, content hash and line counts.
type Record struct {
	Identifier           string `msgpack:"id"`
	Kind                 string `msgpack:"kind"`
	CyclomaticComplexity int    `msgpack:"cc"`
	SourceLinesOfCode    int    `msgpack:"sloc"`

	Dialect      string `msgpack:"dialect,omitempty"`
	Hash         uint64 `msgpack:"hash,omitempty"`
	TotalLines   int    `msgpack:"total,omitempty"`
	BlankLines   int    `msgpack:"blank,omitempty"`
	CommentLines int    `msgpack:"comment,omitempty"`
	CodeLines    int    `msgpack:"code,omitempty"`
}

// Scope converts r back into a scope record.
func (r Record) Scope() store.ScopeRecord {
	kind, _ := store.ParseScopeKind(r.Kind)
	return store.ScopeRecord{
		Identifier:           r.Identifier,
		Kind:                 kind,
		CyclomaticComplexity: r.CyclomaticComplexity,
		SourceLinesOfCode:    r.SourceLinesOfCode,
	}
}

func recordFor(e store.Entry) Record {
	switch v := e.(type) {
	case *store.FileDescriptor:
		r := fromScope(v.ScopeRecord)
		r.Dialect = v.Dialect
		r.Hash = v.Hash
		r.TotalLines = v.Lines.Total
		r.BlankLines = v.Lines.Blank
		r.CommentLines = v.Lines.Comment
		r.CodeLines = v.Lines.Code
		return r
	case *store.ScopeRecord:
		return fromScope(*v)
	default:
		panic(fmt.Sprintf("snapshot: unexpected entry type %T", e))
	}
}

func fromScope(s store.ScopeRecord) Record {
	return Record{
		Identifier:           s.Identifier,
		Kind:                 s.Kind.String(),
		CyclomaticComplexity: s.CyclomaticComplexity,
		SourceLinesOfCode:    s.SourceLinesOfCode,
	}
}

func scopeKey(id string) []byte { return []byte(prefixScope + id) }

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // suppress badger logs
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	return db, nil
}

// Export replaces the contents of the snapshot at path with every entry of
// st and returns the number of records written.
func Export(path string, st *store.Store) (int, error) {
	db, err := openDB(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := db.DropAll(); err != nil {
		return 0, fmt.Errorf("clear snapshot: %w", err)
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	schema, err := msgpack.Marshal(schemaVersion)
	if err != nil {
		return 0, fmt.Errorf("marshal schema: %w", err)
	}
	if err := wb.Set([]byte(keySchema), schema); err != nil {
		return 0, err
	}

	n := 0
	var setErr error
	st.Range(func(e store.Entry) bool {
		data, err := msgpack.Marshal(recordFor(e))
		if err != nil {
			setErr = fmt.Errorf("marshal %q: %w", e.Key(), err)
			return false
		}
		if err := wb.Set(scopeKey(e.Key()), data); err != nil {
			setErr = fmt.Errorf("write %q: %w", e.Key(), err)
			return false
		}
		n++
		return true
	})
	if setErr != nil {
		return 0, setErr
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush snapshot: %w", err)
	}
	return n, nil
}

// Snapshot is an open snapshot directory.
type Snapshot struct {
	db *badger.DB
}

// Open opens an existing snapshot. Paths that are not badger directories are
// rejected before badger gets a chance to create one.
func Open(path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open snapshot %s: not a directory", path)
	}
	if _, err := os.Stat(filepath.Join(path, badgerManifest)); err != nil {
		return nil, fmt.Errorf("%w: %s is not a snapshot directory", ErrSchema, path)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{db: db}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) checkSchema() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchema))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: missing schema marker", ErrSchema)
		}
		if err != nil {
			return err
		}
		var v uint16
		if err := item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &v)
		}); err != nil {
			return fmt.Errorf("decode schema: %w", err)
		}
		if v != schemaVersion {
			return fmt.Errorf("%w: version %d", ErrSchema, v)
		}
		return nil
	})
}

// Close closes the snapshot.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Get returns the record stored under id.
func (s *Snapshot) Get(id string) (Record, error) {
	var r Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(scopeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%q: %w", id, store.ErrKeyNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &r)
		})
	})
	return r, err
}

// Scan returns the record under id and every record nested inside it, in key
// order. An empty id returns every record.
func (s *Snapshot) Scan(id string) ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = scopeKey(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefixScope)
			if id != "" && !store.Contains(id, key) {
				continue
			}
			var r Record
			if err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode %q: %w", key, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Store loads the records returned by Scan(id) into a fresh store, so a
// snapshot can be reported like a live run. File records become file
// descriptors without source text or tree.
func (s *Snapshot) Store(id string) (*store.Store, error) {
	recs, err := s.Scan(id)
	if err != nil {
		return nil, err
	}
	if id != "" && len(recs) == 0 {
		return nil, fmt.Errorf("%q: %w", id, store.ErrKeyNotFound)
	}
	st := store.New()
	for _, r := range recs {
		sc := r.Scope()
		if sc.Kind != store.ScopeFile {
			st.Put(&sc)
			continue
		}
		st.Put(&store.FileDescriptor{
			ScopeRecord: sc,
			Dialect:     r.Dialect,
			Hash:        r.Hash,
			Lines: store.LineCounts{
				Total:   r.TotalLines,
				Blank:   r.BlankLines,
				Comment: r.CommentLines,
				Code:    r.CodeLines,
			},
		})
	}
	return st, nil
}
