// Package catalog reads the upstream listing of available resource pack
// archives and their published digests.
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrUpstreamUnavailable means the upstream source could not be reached
	// or answered with an error status.
	ErrUpstreamUnavailable = errors.New("catalog: upstream unavailable")

	// ErrParse means the upstream answered but no entries could be extracted.
	ErrParse = errors.New("catalog: unparseable listing")
)

// Entry describes one remotely available archive. Entries are produced fresh
// on every run and never persisted.
type Entry struct {
	// Name is the archive filename, unique within the catalog. It carries
	// the version and loader tags, e.g.
	// "Minecraft-Mod-Language-Modpack-1-20-1-Fabric.zip".
	Name string

	// URL is the absolute download location.
	URL string

	// Hash is the upstream-published MD5 digest (lowercase hex). An entry
	// without a resolvable digest is dropped before it reaches the diff.
	Hash string

	// Size in bytes when the listing reports one, 0 otherwise.
	Size int64
}

// Source yields the current catalog. Implementations must not have side
// effects beyond network I/O.
type Source interface {
	Fetch(ctx context.Context) ([]Entry, error)
}
