package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlang/packsync/internal/config"
	"github.com/openlang/packsync/internal/utils"
)

const packName = "Minecraft-Mod-Language-Modpack-1-20-1.zip"

func newUpstream(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	sum := utils.MD5Hex(payload)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><a href="%s">%s</a></body></html>`, packName, packName)
	})
	mux.HandleFunc("/1.20.1.md5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, sum)
	})
	mux.HandleFunc("/"+packName, func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunOnceEndToEnd(t *testing.T) {
	payload := []byte("localized strings")
	srv := newUpstream(t, payload)
	dir := t.TempDir()

	cfg := &config.Config{
		BaseURL:    srv.URL,
		MirrorDir:  dir,
		Workers:    2,
		Timeout:    5 * time.Second,
		PruneStale: true,
	}

	a, err := New(cfg)
	require.NoError(t, err)

	result, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{packName}, result.Fetched)
	assert.Empty(t, result.Failed)

	// archive bytes landed under the catalog name
	data, err := os.ReadFile(filepath.Join(dir, packName))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// the record holds the verified digest, bare hex
	record, err := os.ReadFile(filepath.Join(dir, ".checksums", packName+".md5"))
	require.NoError(t, err)
	assert.Equal(t, utils.MD5Hex(payload), strings.TrimSpace(string(record)))

	// a second cycle against the same upstream is a no-op
	result, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Fetched)
	assert.Equal(t, []string{packName}, result.Unchanged)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&config.Config{})
	assert.Error(t, err)
}
