package static

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHTTPFetcher(t *testing.T, handler http.HandlerFunc) *HTTPFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := NewHTTPFetcher(srv.URL+"/data", time.Second, discardLogger())
	require.NoError(t, err)
	return f
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	f := newHTTPFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/sample.JSON", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"A","latitude":1,"longitude":2}]`))
	})

	doc, err := f.Fetch(context.Background(), "sample.JSON")
	require.NoError(t, err)
	assert.Equal(t, "sample.JSON", doc.Name)
	assert.JSONEq(t, `[{"name":"A","latitude":1,"longitude":2}]`, string(doc.Raw))
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	f := newHTTPFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	_, err := f.Fetch(context.Background(), "missing.json")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "missing.json", fetchErr.Dataset)
}

func TestHTTPFetcher_ServerError(t *testing.T) {
	f := newHTTPFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.Fetch(context.Background(), "conf.json")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPFetcher_InvalidJSON(t *testing.T) {
	f := newHTTPFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := f.Fetch(context.Background(), "conf.json")
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestHTTPFetcher_RejectsTraversal(t *testing.T) {
	f := newHTTPFetcher(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request must not be sent")
	})

	for _, name := range []string{"../secret.json", "a/../../b.json", "/etc/passwd", ""} {
		_, err := f.Fetch(context.Background(), name)
		require.ErrorIs(t, err, errInvalidName, name)
	}
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	f := newHTTPFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, "conf.json")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewHTTPFetcher_RejectsNonHTTP(t *testing.T) {
	_, err := NewHTTPFetcher("file:///srv/www", time.Second, discardLogger())
	require.Error(t, err)
}

func TestDirFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "events"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events", "conf.json"), []byte(`{"happenings":[]}`), 0o600))

	f := NewDirFetcher(dir, discardLogger())

	doc, err := f.Fetch(context.Background(), "events/conf.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"happenings":[]}`, string(doc.Raw))

	_, err = f.Fetch(context.Background(), "events/missing.json")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.Fetch(context.Background(), "../conf.json")
	require.ErrorIs(t, err, errInvalidName)
}

func TestDirFetcher_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), nil, 0o600))

	_, err := NewDirFetcher(dir, discardLogger()).Fetch(context.Background(), "empty.json")
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestHTTPFetcher_OversizedDocument(t *testing.T) {
	f := newHTTPFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"happenings":[{"submissions":[]}]}`))
	})
	f.maxSize = 16

	_, err := f.Fetch(context.Background(), "icse.json")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, domain.ErrTooLarge)
	assert.Equal(t, "fetch", domain.ErrorKind(err))
}

func TestDirFetcher_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	payload := `[{"name":"A","latitude":1,"longitude":2}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.JSON"), []byte(payload), 0o600))

	f := NewDirFetcher(dir, discardLogger())
	f.maxSize = int64(len(payload))
	_, err := f.Fetch(context.Background(), "sample.JSON")
	require.NoError(t, err, "a document of exactly the limit is accepted")

	f.maxSize = int64(len(payload)) - 1
	_, err = f.Fetch(context.Background(), "sample.JSON")
	require.ErrorIs(t, err, domain.ErrTooLarge)
}
