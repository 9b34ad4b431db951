// Package fetch provides a small HTTP fetcher with a disk-backed
// conditional-GET cache (ETag / Last-Modified). It is shared by the
// sheet source and the busy-calendar import, which poll the same way.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "slotcal/internal/log"
)

// Source identifies one remote document to poll.
type Source struct {
	// ID is an internal identifier (e.g., config ICS ID or "sheet").
	ID string
	// URL is the document endpoint.
	URL string
}

// Result is the outcome of fetching one source.
type Result struct {
	Source    Source
	Body      []byte
	FromCache bool // true when the cached body was reused (304 or network error)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches remote documents with conditional requests and a
// per-URL disk cache, falling back to the last cached body when the
// network or the origin misbehaves.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// New creates a Fetcher rooted at cacheDir, e.g. "/var/lib/slotcal/cache".
func New(cacheDir string) *Fetcher {
	if cacheDir == "" {
		// Fallback to a relative dir so development runs without root.
		cacheDir = "./var/cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Fetch fetches a single source, honoring ETag and Last-Modified.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Result, error) {
	if src.URL == "" {
		return Result{}, errors.New("source URL is empty")
	}

	cachePath := filepath.Join(f.cacheDir, hashURL(src.URL))
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.dat"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("fetch start", "id", src.ID, "url", RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; serve the cached body if we have one.
		if len(cachedBody) > 0 {
			appLog.Error("fetch network error, using cached body", err, "id", src.ID, "url", RedactURL(src.URL))
			return Result{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Result{}, readErr
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("fetch cache save failed", err, "id", src.ID)
		}

		appLog.Info("fetch success", "id", src.ID, "url", RedactURL(src.URL), "bytes", len(body))
		return Result{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("fetch not modified; using cache", "id", src.ID)
		return Result{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("fetch non-OK, using cached body", errors.New(resp.Status), "id", src.ID, "status", resp.StatusCode)
			return Result{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, errors.New(resp.Status)
	}
}

func hashURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:8])
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.dat"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL hides query strings and paths of a source URL for logging.
// Published sheet and calendar URLs embed access tokens.
func RedactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
