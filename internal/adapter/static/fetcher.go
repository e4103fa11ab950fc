// Package static fetches dataset documents from the place the map page is
// served from: a web server or a local directory.
package static

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/submission-map/internal/domain"
)

// maxDocumentSize is the largest dataset body accepted.
const maxDocumentSize = 32 << 20

var errInvalidName = errors.New("invalid dataset resource name")

// cleanName rejects names that would escape the content root.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", errInvalidName
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", errInvalidName
		}
	}
	return path.Clean(name), nil
}

// HTTPFetcher retrieves documents relative to a base URL.
type HTTPFetcher struct {
	base       *url.URL
	httpClient *http.Client
	maxSize    int64
	logger     *slog.Logger
}

// NewHTTPFetcher creates a fetcher for documents under baseURL. A missing
// trailing slash is added so relative names resolve inside it.
func NewHTTPFetcher(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPFetcher, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse dataset base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("dataset base url %q must be http or https", baseURL)
	}
	return &HTTPFetcher{
		base:       base,
		httpClient: &http.Client{Timeout: timeout},
		maxSize:    maxDocumentSize,
		logger:     logger,
	}, nil
}

// Fetch GETs the named document and validates that it is JSON.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (domain.DatasetDocument, error) {
	clean, err := cleanName(name)
	if err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: err}
	}
	target := f.base.ResolveReference(&url.URL{Path: clean})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: domain.ErrNotFound}
	case resp.StatusCode != http.StatusOK:
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := domain.ReadDocument(name, resp.Body, f.maxSize)
	if err != nil {
		return domain.DatasetDocument{}, err
	}
	f.logger.Debug("dataset fetched", "url", target.String(), "bytes", len(doc.Raw))
	return doc, nil
}

// DirFetcher reads documents from a directory on disk.
type DirFetcher struct {
	root    string
	maxSize int64
	logger  *slog.Logger
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string, logger *slog.Logger) *DirFetcher {
	return &DirFetcher{root: dir, maxSize: maxDocumentSize, logger: logger}
}

// Fetch reads the named document below the root directory.
func (f *DirFetcher) Fetch(ctx context.Context, name string) (domain.DatasetDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: err}
	}
	clean, err := cleanName(name)
	if err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: err}
	}

	file, err := os.Open(filepath.Join(f.root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: domain.ErrNotFound}
		}
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: err}
	}
	defer file.Close()

	doc, err := domain.ReadDocument(name, file, f.maxSize)
	if err != nil {
		return domain.DatasetDocument{}, err
	}
	f.logger.Debug("dataset read", "path", file.Name(), "bytes", len(doc.Raw))
	return doc, nil
}
