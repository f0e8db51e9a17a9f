package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imroc/req/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const digestA = "0123456789abcdef0123456789abcdef"
const digestB = "fedcba9876543210fedcba9876543210"

func newTestSource(baseURL string) *HTMLIndexSource {
	return NewHTMLIndexSource(baseURL, 5*time.Second, 0,
		WithClient(req.C().SetTimeout(5*time.Second)))
}

func newIndexServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			body, ok := files[r.URL.Path[1:]]
			if !ok {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, body)
			return
		}

		fmt.Fprint(w, "<html><body><pre>")
		fmt.Fprint(w, `<a href="../">../</a>`)
		for name := range files {
			fmt.Fprintf(w, `<a href="%s">%s</a>`, name, name)
		}
		fmt.Fprint(w, "</pre></body></html>")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCatalog(t *testing.T) {
	srv := newIndexServer(t, map[string]string{
		"Minecraft-Mod-Language-Modpack-1-20-1.zip":        "zipbytes",
		"Minecraft-Mod-Language-Modpack-1-20-1-Fabric.zip": "zipbytes",
		"1.20.1.md5":        digestA,
		"1.20.1-fabric.md5": digestB + "\n",
		"notes.txt":         "ignore me",
	})

	entries, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	forge := byName["Minecraft-Mod-Language-Modpack-1-20-1.zip"]
	assert.Equal(t, digestA, forge.Hash)
	assert.Equal(t, srv.URL+"/Minecraft-Mod-Language-Modpack-1-20-1.zip", forge.URL)

	// sidecar digests are trimmed and lowercased
	fabric := byName["Minecraft-Mod-Language-Modpack-1-20-1-Fabric.zip"]
	assert.Equal(t, digestB, fabric.Hash)
}

func TestFetchDropsEntryWithoutDigest(t *testing.T) {
	srv := newIndexServer(t, map[string]string{
		"Minecraft-Mod-Language-Modpack-1-19.zip":   "zipbytes",
		"Minecraft-Mod-Language-Modpack-1-18-2.zip": "zipbytes",
		"1.18.2.md5": digestA,
		// no 1.19.md5 upstream
	})

	entries, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err, "a partial listing must not be fatal")
	require.Len(t, entries, 1)
	assert.Equal(t, "Minecraft-Mod-Language-Modpack-1-18-2.zip", entries[0].Name)
}

func TestFetchDropsEntryWithMalformedDigest(t *testing.T) {
	srv := newIndexServer(t, map[string]string{
		"Minecraft-Mod-Language-Modpack-1-19.zip": "zipbytes",
		"1.19.md5": "not-a-digest",
	})

	entries, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchUnreachableHost(t *testing.T) {
	_, err := newTestSource("http://127.0.0.1:1").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchParseErrorOnLinklessPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	}))
	t.Cleanup(srv.Close)

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}
