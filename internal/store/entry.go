package store

import "github.com/imyousuf/codecaliper/internal/syntax"

// ScopeKind identifies what kind of lexical scope a record measures.
type ScopeKind int

const (
	ScopeFile ScopeKind = iota
	ScopeType
	ScopeFunction
	ScopeAccessor
)

// String returns the string representation of ScopeKind.
func (k ScopeKind) String() string {
	switch k {
	case ScopeFile:
		return "file"
	case ScopeType:
		return "type"
	case ScopeFunction:
		return "function"
	case ScopeAccessor:
		return "accessor"
	default:
		return "unknown"
	}
}

// ParseScopeKind returns the ScopeKind named s.
func ParseScopeKind(s string) (ScopeKind, bool) {
	for k := ScopeFile; k <= ScopeAccessor; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Entry is a value held by the Store. It is implemented only by
// *ScopeRecord and *FileDescriptor.
type Entry interface {
	Key() string
	entry()
}

// ScopeRecord holds the metrics of one scope.
type ScopeRecord struct {
	Identifier           string
	Kind                 ScopeKind
	CyclomaticComplexity int
	SourceLinesOfCode    int
}

// Key returns the scope identifier.
func (r *ScopeRecord) Key() string { return r.Identifier }

func (*ScopeRecord) entry() {}

// Add folds the totals of a closed child scope into r.
func (r *ScopeRecord) Add(child *ScopeRecord) {
	r.CyclomaticComplexity += child.CyclomaticComplexity
	r.SourceLinesOfCode += child.SourceLinesOfCode
}

// LineCounts holds physical line counts of a source file.
type LineCounts struct {
	Total   int
	Blank   int
	Comment int
	Code    int
}

// FileDescriptor describes a loaded source file. The embedded ScopeRecord is
// the file scope, so a file id resolves to both the file and its totals.
type FileDescriptor struct {
	ScopeRecord

	Path    string
	Source  []byte
	Dialect string
	Hash    uint64
	Lines   LineCounts

	// Tree is set by the parse stage.
	Tree *syntax.Tree
}

// NewFileDescriptor creates a descriptor for the file id with an empty file
// scope.
func NewFileDescriptor(id, path string, source []byte) *FileDescriptor {
	return &FileDescriptor{
		ScopeRecord: ScopeRecord{Identifier: id, Kind: ScopeFile},
		Path:        path,
		Source:      source,
	}
}
