// Package sync implements one mirror synchronization cycle:
// catalog -> diff -> fetch -> verify -> commit.
package sync

import (
	"sort"

	"github.com/openlang/packsync/internal/catalog"
	"github.com/openlang/packsync/internal/mirror"
)

// Actions is the minimal set of work for one cycle. Once computed it is
// treated as an immutable input to the fetch and commit phases.
type Actions struct {
	ToFetch   []catalog.Entry
	ToRemove  []string
	Unchanged []string
}

// Diff compares the fresh catalog against the checksum records and the
// actual mirror listing. An entry needs fetching when it has no record, its
// upstream digest changed, or its file is missing from disk despite a record
// (the repair case). Names known locally but absent from the catalog are
// removals when pruneStale is set. Matching is exact name equality.
func Diff(entries []catalog.Entry, records map[string]mirror.Record, mirrored map[string]struct{}, pruneStale bool) *Actions {
	actions := &Actions{}

	listed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		listed[entry.Name] = struct{}{}

		record, recorded := records[entry.Name]
		_, onDisk := mirrored[entry.Name]

		if !recorded || record.Hash != entry.Hash || !onDisk {
			actions.ToFetch = append(actions.ToFetch, entry)
			continue
		}
		actions.Unchanged = append(actions.Unchanged, entry.Name)
	}

	if pruneStale {
		stale := make(map[string]struct{})
		for name := range records {
			if _, ok := listed[name]; !ok {
				stale[name] = struct{}{}
			}
		}
		for name := range mirrored {
			if _, ok := listed[name]; !ok {
				stale[name] = struct{}{}
			}
		}
		for name := range stale {
			actions.ToRemove = append(actions.ToRemove, name)
		}
		sort.Strings(actions.ToRemove)
	}

	return actions
}
