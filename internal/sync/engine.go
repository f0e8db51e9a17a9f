package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlang/packsync/internal/catalog"
	"github.com/openlang/packsync/internal/mirror"
)

// ErrSyncAlreadyRunning means a run is active in this process. The caller
// should skip, not fail.
var ErrSyncAlreadyRunning = errors.New("sync already running")

// State of the engine within one run.
type State uint8

const (
	StateIdle State = iota
	StateCatalogLoaded
	StateDiffed
	StateFetching
	StateCommitting
	StateFailed
)

var stateNames = []string{"Idle", "CatalogLoaded", "Diffed", "Fetching", "Committing", "Failed"}

func (s State) String() string {
	return stateNames[s]
}

// Engine drives the full cycle against one mirror. It exclusively owns all
// mutations of the mirror directory and the checksum store.
type Engine struct {
	source     catalog.Source
	mirror     *mirror.Mirror
	store      *mirror.ChecksumStore
	fetcher    *Fetcher
	pruneStale bool

	state  State
	muSync gosync.Mutex
}

func NewEngine(source catalog.Source, m *mirror.Mirror, fetcher *Fetcher, pruneStale bool) *Engine {
	return &Engine{
		source:     source,
		mirror:     m,
		store:      m.Checksums(),
		fetcher:    fetcher,
		pruneStale: pruneStale,
	}
}

// State returns the engine's current phase, for introspection only.
func (e *Engine) State() State {
	return e.state
}

// Run executes one cycle. The returned error is non-nil only for run-level
// aborts: the catalog could not be loaded, or another run is in flight
// (ErrSyncAlreadyRunning, mirror.ErrMirrorLocked). Per-entry failures are
// reported in the Result and never escalate.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.muSync.TryLock() {
		return nil, ErrSyncAlreadyRunning
	}
	defer e.muSync.Unlock()

	if err := e.mirror.Setup(); err != nil {
		e.state = StateFailed
		return nil, fmt.Errorf("setup mirror: %w", err)
	}

	if err := e.mirror.TryLock(); err != nil {
		return nil, err
	}
	defer e.mirror.Unlock()

	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Fetched:   []string{},
		Removed:   []string{},
		Unchanged: []string{},
		Failed:    []Failure{},
	}

	// no catalog means no safe diff; this is the only fatal path
	entries, err := e.source.Fetch(ctx)
	if err != nil {
		e.state = StateFailed
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	e.state = StateCatalogLoaded
	slog.Debug("catalog loaded", "run", result.RunID, "entries", len(entries))

	records, err := e.store.Load()
	if err != nil {
		if !errors.Is(err, mirror.ErrStoreCorrupt) {
			e.state = StateFailed
			return nil, fmt.Errorf("load checksum store: %w", err)
		}
		// over-fetching beats trusting bad records
		slog.Warn("checksum store corrupt, treating as empty", "run", result.RunID)
		records = map[string]mirror.Record{}
	}

	mirrored, err := e.mirror.List()
	if err != nil {
		e.state = StateFailed
		return nil, fmt.Errorf("list mirror: %w", err)
	}

	actions := Diff(entries, records, mirrored, e.pruneStale)
	e.state = StateDiffed
	result.Unchanged = append(result.Unchanged, actions.Unchanged...)
	slog.Debug("diff computed", "run", result.RunID,
		"fetch", len(actions.ToFetch), "remove", len(actions.ToRemove), "unchanged", len(actions.Unchanged))

	e.state = StateFetching
	fetched := e.fetchAll(ctx, actions.ToFetch, result)

	e.state = StateCommitting
	e.commit(fetched, actions.ToRemove, result)

	e.state = StateIdle
	sort.Strings(result.Fetched)
	sort.Strings(result.Unchanged)
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Name < result.Failed[j].Name })
	result.FinishedAt = time.Now().UTC()

	slog.Info("sync run complete", "run", result.RunID, "summary", result.String())
	return result, nil
}

// fetchAll downloads every to-fetch entry, collecting failures instead of
// escalating them.
func (e *Engine) fetchAll(ctx context.Context, entries []catalog.Entry, result *Result) []*FetchResult {
	if len(entries) == 0 {
		return nil
	}

	fetched := make([]*FetchResult, 0, len(entries))
	for res := range e.fetcher.FetchAll(ctx, entries) {
		if res.Err != nil {
			slog.Warn("fetch failed", "name", res.Entry.Name, "error", res.Err)
			result.Failed = append(result.Failed, Failure{Name: res.Entry.Name, Reason: res.Err.Error()})
			continue
		}
		fetched = append(fetched, res)
	}
	return fetched
}

// commit applies the run's changes. For each fetched entry the archive is
// written before its record, so a crash between the two steps only causes a
// safe re-fetch next run. Removals delete the file first and the record
// last, so a crash mid-removal leaves a record the next diff will repair.
func (e *Engine) commit(fetched []*FetchResult, toRemove []string, result *Result) {
	for _, res := range fetched {
		name := res.Entry.Name

		if err := e.mirror.Write(name, res.Data); err != nil {
			slog.Error("commit write failed", "name", name, "error", err)
			result.Failed = append(result.Failed, Failure{Name: name, Reason: err.Error()})
			continue
		}
		if err := e.store.Record(name, res.Hash); err != nil {
			slog.Error("commit record failed", "name", name, "error", err)
			result.Failed = append(result.Failed, Failure{Name: name, Reason: err.Error()})
			continue
		}

		result.Fetched = append(result.Fetched, name)
		result.BytesFetched += int64(len(res.Data))
	}

	for _, name := range toRemove {
		if err := e.mirror.Remove(name); err != nil {
			slog.Error("prune failed", "name", name, "error", err)
			result.Failed = append(result.Failed, Failure{Name: name, Reason: err.Error()})
			continue
		}
		if err := e.store.Remove(name); err != nil {
			slog.Error("prune record failed", "name", name, "error", err)
			result.Failed = append(result.Failed, Failure{Name: name, Reason: err.Error()})
			continue
		}
		result.Removed = append(result.Removed, name)
	}
	sort.Strings(result.Removed)
}
