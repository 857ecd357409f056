// Package model provides model artifact acquisition.
package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/scout-ai/scout/internal/errors"
)

// ProgressFunc receives download progress as a fraction in [0,1].
// The session guarantees the reported fraction never decreases.
type ProgressFunc func(fraction float64)

// ArtifactFetcher retrieves model weights by identifier.
type ArtifactFetcher interface {
	// Fetch downloads the artifact to dest, reporting progress.
	Fetch(ctx context.Context, identifier, dest string, progress ProgressFunc) error
}

// FetcherFunc adapts a function to the ArtifactFetcher interface.
type FetcherFunc func(ctx context.Context, identifier, dest string, progress ProgressFunc) error

// Fetch calls the wrapped function.
func (f FetcherFunc) Fetch(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
	return f(ctx, identifier, dest, progress)
}

// HTTPFetcher downloads model artifacts over HTTP.
type HTTPFetcher struct {
	// BaseURL is the artifact source; the identifier is appended as the
	// final path element. An empty BaseURL treats identifiers as full URLs.
	BaseURL string

	Client *http.Client
	Policy *errors.Policy
}

// NewHTTPFetcher creates a fetcher for the given artifact source.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Minute},
		Policy:  errors.DownloadPolicy(),
	}
}

// Fetch downloads the artifact, writing to a temp file first so a
// partial download never shadows a complete one.
func (f *HTTPFetcher) Fetch(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
	url := identifier
	if f.BaseURL != "" {
		url = f.BaseURL + "/" + identifier
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrap(err, errors.CodeDownloadFailed, "failed to create models directory", errors.CategorySystem)
	}

	return errors.Do(ctx, f.Policy, func() error {
		return f.fetchOnce(ctx, url, dest, progress)
	})
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url, dest string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDownloadFailed, "failed to create download request", errors.CategoryPermanent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeDownloadFailed, "artifact download failed", errors.CategoryTemporary)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		category := errors.CategoryTemporary
		if resp.StatusCode == http.StatusNotFound {
			category = errors.CategoryPermanent
		}
		return errors.New(errors.CodeDownloadFailed, fmt.Sprintf("artifact source returned %s", resp.Status), category)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeDownloadFailed, "failed to create temp file", errors.CategorySystem)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 256*1024)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
				tmp.Close()
				return errors.Wrap(writeErr, errors.CodeDownloadFailed, "failed to write artifact", errors.CategorySystem)
			}
			written += int64(n)
			if progress != nil && total > 0 {
				progress(float64(written) / float64(total))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tmp.Close()
			return errors.Wrap(readErr, errors.CodeDownloadFailed, "artifact download interrupted", errors.CategoryTemporary)
		}
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeDownloadFailed, "failed to finalize artifact", errors.CategorySystem)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return errors.Wrap(err, errors.CodeDownloadFailed, "failed to move artifact into place", errors.CategorySystem)
	}

	if progress != nil {
		progress(1.0)
	}
	return nil
}
