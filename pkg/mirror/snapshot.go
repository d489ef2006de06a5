package mirror

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sdejongh/dirmirror/pkg/storage"
)

// Snapshot is the immutable set of file keys found under one root at one
// instant. Keys are slash separated paths relative to the root and are
// compared byte for byte.
type Snapshot struct {
	root    string
	paths   mapset.Set[string]
	entries map[string]storage.FileInfo
}

// NewSnapshot builds a snapshot from bare keys
func NewSnapshot(root string, paths ...string) *Snapshot {
	return &Snapshot{
		root:    root,
		paths:   mapset.NewSet(paths...),
		entries: map[string]storage.FileInfo{},
	}
}

func newSnapshotFromEntries(root string, entries []storage.FileInfo) *Snapshot {
	s := &Snapshot{
		root:    root,
		paths:   mapset.NewSetWithSize[string](len(entries)),
		entries: make(map[string]storage.FileInfo, len(entries)),
	}
	for _, e := range entries {
		s.paths.Add(e.RelativePath)
		s.entries[e.RelativePath] = e
	}
	return s
}

// Root returns the tree root the snapshot was taken from
func (s *Snapshot) Root() string {
	return s.root
}

// Contains reports whether key is in the snapshot
func (s *Snapshot) Contains(key string) bool {
	return s.paths.Contains(key)
}

// Len returns the number of files
func (s *Snapshot) Len() int {
	return s.paths.Cardinality()
}

// Paths returns the keys in lexical order
func (s *Snapshot) Paths() []string {
	return sortedKeys(s.paths)
}

// Entry returns the metadata captured for key, if any
func (s *Snapshot) Entry(key string) (storage.FileInfo, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Size returns the total size of the captured regular files
func (s *Snapshot) Size() int64 {
	var total int64
	for _, e := range s.entries {
		if e.IsRegular {
			total += e.Size
		}
	}
	return total
}

func sortedKeys(set mapset.Set[string]) []string {
	keys := set.ToSlice()
	sort.Strings(keys)
	return keys
}
