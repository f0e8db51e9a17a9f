package sync

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Failure names one entry that could not be mirrored this run and why.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the structured summary of one completed run. It is the only
// output the publish collaborator consumes; the last-sync timestamp lives
// here rather than in any process-wide state.
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetched   []string  `json:"fetched"`
	Removed   []string  `json:"removed"`
	Unchanged []string  `json:"unchanged"`
	Failed    []Failure `json:"failed"`

	BytesFetched int64 `json:"bytes_fetched"`
}

// Mirrored is the number of files in the mirror after this run.
func (r *Result) Mirrored() int {
	return len(r.Fetched) + len(r.Unchanged)
}

func (r *Result) String() string {
	return fmt.Sprintf("fetched=%d removed=%d unchanged=%d failed=%d size=%s took=%s",
		len(r.Fetched), len(r.Removed), len(r.Unchanged), len(r.Failed),
		humanize.Bytes(uint64(r.BytesFetched)), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
