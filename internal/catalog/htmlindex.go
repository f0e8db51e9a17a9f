package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/imroc/req/v3"
	"golang.org/x/sync/errgroup"

	"github.com/openlang/packsync/internal/version"
)

// digestFetchLimit bounds concurrent sidecar digest requests per run.
const digestFetchLimit = 4

var userAgent = fmt.Sprintf("packsync/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

// HTMLIndexSource reads the catalog from an HTML index page that links the
// pack archives and their digest sidecar files.
type HTMLIndexSource struct {
	baseURL string
	client  *req.Client
}

type HTMLIndexOption func(*HTMLIndexSource)

// WithClient overrides the HTTP client, used by tests to disable retries.
func WithClient(client *req.Client) HTMLIndexOption {
	return func(s *HTMLIndexSource) {
		s.client = client
	}
}

func NewHTMLIndexSource(baseURL string, timeout time.Duration, retries int, opts ...HTMLIndexOption) *HTMLIndexSource {
	s := &HTMLIndexSource{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		client: req.C().
			SetTimeout(timeout).
			SetCommonRetryCount(retries).
			SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second).
			SetUserAgent(userAgent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves the index page and resolves the digest sidecar for every
// pack link on it. Entries whose digest cannot be resolved are dropped with
// a warning; the rest of the catalog still proceeds.
func (s *HTMLIndexSource) Fetch(ctx context.Context) ([]Entry, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, s.baseURL, err)
	}
	if resp.IsErrorState() {
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstreamUnavailable, s.baseURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	links := doc.Find("a")
	if links.Length() == 0 {
		return nil, fmt.Errorf("%w: no links on index page", ErrParse)
	}

	entries := make([]*Entry, 0, links.Length())
	links.Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		name := href[strings.LastIndex(href, "/")+1:]
		if !IsPackName(name) {
			return
		}
		entries = append(entries, &Entry{Name: name, URL: s.absoluteURL(href)})
	})

	// resolve digest sidecars concurrently, order preserved
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(digestFetchLimit)
	for _, entry := range entries {
		g.Go(func() error {
			hash, err := s.fetchDigest(gctx, entry.Name)
			if err != nil {
				// a cancelled run must not masquerade as an empty catalog
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("catalog entry dropped", "name", entry.Name, "error", err)
				return nil
			}
			entry.Hash = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Hash == "" {
			continue
		}
		catalog = append(catalog, *entry)
	}
	return catalog, nil
}

// fetchDigest resolves the published MD5 for a pack by fetching its sidecar
// file, e.g. "1.20.1-fabric.md5" for the 1.20.1 Fabric archive.
func (s *HTMLIndexSource) fetchDigest(ctx context.Context, name string) (string, error) {
	info, err := ParsePackName(name)
	if err != nil {
		return "", err
	}

	digestURL := s.baseURL + info.DigestName()
	resp, err := s.client.R().SetContext(ctx).Get(digestURL)
	if err != nil {
		return "", fmt.Errorf("fetch digest %s: %w", digestURL, err)
	}
	if resp.IsErrorState() {
		return "", fmt.Errorf("fetch digest %s: %s", digestURL, resp.Status)
	}

	digest := strings.ToLower(strings.TrimSpace(resp.String()))
	if !ValidDigest(digest) {
		return "", fmt.Errorf("invalid digest %q from %s", digest, digestURL)
	}
	return digest, nil
}

func (s *HTMLIndexSource) absoluteURL(href string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}
	return s.baseURL + strings.TrimLeft(href, "/")
}
