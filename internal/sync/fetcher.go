package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/imroc/req/v3"

	"github.com/openlang/packsync/internal/catalog"
	"github.com/openlang/packsync/internal/utils"
	"github.com/openlang/packsync/internal/version"
)

const AutoDetectWorkers = 0

var userAgent = fmt.Sprintf("packsync/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

var (
	// ErrFetchFailed means the retry budget for an entry is exhausted.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrIntegrityMismatch means the downloaded bytes do not hash to the
	// digest the catalog declared. The bytes are discarded.
	ErrIntegrityMismatch = errors.New("integrity mismatch")
)

// FetchResult carries the outcome for one entry. Exactly one of Data or Err
// is meaningful.
type FetchResult struct {
	Entry catalog.Entry
	Data  []byte
	Hash  string
	Err   error
}

// Fetcher downloads archives with bounded parallelism. One entry's failure
// never aborts the rest of the batch.
type Fetcher struct {
	client     *req.Client
	numWorkers int
}

func NewFetcher(timeout time.Duration, retries int, numWorkers int) *Fetcher {
	if numWorkers <= AutoDetectWorkers {
		numWorkers = runtime.NumCPU()
	}

	client := req.C().
		SetTimeout(timeout).
		SetCommonRetryCount(retries).
		SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second).
		SetUserAgent(userAgent)

	return &Fetcher{
		client:     client,
		numWorkers: numWorkers,
	}
}

// Fetch downloads a single entry and verifies its digest against the one the
// catalog declared, when it declared one.
func (f *Fetcher) Fetch(ctx context.Context, entry catalog.Entry) ([]byte, string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(entry.URL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, entry.URL, err)
	}
	if resp.IsErrorState() {
		return nil, "", fmt.Errorf("%w: %s: %s", ErrFetchFailed, entry.URL, resp.Status)
	}

	data := resp.Bytes()
	if entry.Size > 0 && int64(len(data)) != entry.Size {
		slog.Warn("size differs from listing", "name", entry.Name, "listed", entry.Size, "got", len(data))
	}

	hash := utils.MD5Hex(data)
	if entry.Hash != "" && hash != entry.Hash {
		return nil, "", fmt.Errorf("%w: %s: want %s got %s", ErrIntegrityMismatch, entry.Name, entry.Hash, hash)
	}

	return data, hash, nil
}

// FetchAll downloads a batch through a worker pool and streams results on
// the returned channel, which closes once all entries are accounted for.
func (f *Fetcher) FetchAll(ctx context.Context, entries []catalog.Entry) <-chan *FetchResult {
	jobs := make(chan catalog.Entry, len(entries))
	results := make(chan *FetchResult, len(entries))

	var wg sync.WaitGroup
	wg.Add(f.numWorkers)

	for range f.numWorkers {
		go func() {
			defer wg.Done()
			for entry := range jobs {
				select {
				case <-ctx.Done():
					results <- &FetchResult{Entry: entry, Err: ctx.Err()}
				default:
					data, hash, err := f.Fetch(ctx, entry)
					results <- &FetchResult{Entry: entry, Data: data, Hash: hash, Err: err}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return
			case jobs <- entry:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
