package mirror

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// DiffResult partitions the union of two snapshots
type DiffResult struct {
	Source  *Snapshot
	Replica *Snapshot

	// ToCopy holds source keys missing from the replica
	ToCopy mapset.Set[string]

	// ToRemove holds replica keys with no source counterpart
	ToRemove mapset.Set[string]

	// Unchanged holds keys present on both sides. Their content is never
	// compared, so they are left alone.
	Unchanged mapset.Set[string]
}

// Diff computes the work needed to make replica match source by key
// equality only. It is a pure function of its inputs.
func Diff(source, replica *Snapshot) *DiffResult {
	return &DiffResult{
		Source:    source,
		Replica:   replica,
		ToCopy:    source.paths.Difference(replica.paths),
		ToRemove:  replica.paths.Difference(source.paths),
		Unchanged: source.paths.Intersect(replica.paths),
	}
}

// CopyPaths returns the keys to copy in lexical order
func (d *DiffResult) CopyPaths() []string {
	return sortedKeys(d.ToCopy)
}

// RemovePaths returns the keys to remove in lexical order
func (d *DiffResult) RemovePaths() []string {
	return sortedKeys(d.ToRemove)
}

// Total returns the number of actions the diff calls for
func (d *DiffResult) Total() int {
	return d.ToCopy.Cardinality() + d.ToRemove.Cardinality()
}
