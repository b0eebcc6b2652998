package service

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
)

// FetchConfig names the upstream exports and their local cache locations
type FetchConfig struct {
	SanctionsURL  string
	SanctionsPath string
	PEPsURL       string
	PEPsPath      string
	Timeout       time.Duration
}

// Fetcher downloads consolidated exports to the local cache.
// A nil Fetcher skips downloading and refreshes from the files on disk
type Fetcher struct {
	client *http.Client
	cfg    FetchConfig
}

// NewFetcher builds a fetcher, nil when no URLs are configured
func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.SanctionsURL == "" && cfg.PEPsURL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Download refreshes the local cache files from upstream
func (f *Fetcher) Download(ctx context.Context, includePEPs bool) error {
	if f == nil {
		return nil
	}
	if f.cfg.SanctionsURL != "" {
		if err := f.fetchOne(ctx, f.cfg.SanctionsURL, f.cfg.SanctionsPath); err != nil {
			return err
		}
	}
	if includePEPs && f.cfg.PEPsURL != "" {
		if err := f.fetchOne(ctx, f.cfg.PEPsURL, f.cfg.PEPsPath); err != nil {
			return err
		}
	}
	return nil
}

// fetchOne streams one export to a temp file and renames it into place so a
// concurrent reload never observes a partial file
func (f *Fetcher) fetchOne(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return perr.Unavailablef("watchlist fetch request: %v", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return perr.Unavailablef("watchlist fetch: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return perr.Unavailablef("watchlist fetch: upstream returned %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Unavailablef("watchlist cache dir: %v", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".watchlist-*")
	if err != nil {
		return perr.Unavailablef("watchlist temp file: %v", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return perr.Unavailablef("watchlist download: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return perr.Unavailablef("watchlist cache swap: %v", err)
	}

	logger.C(ctx).Info().Str("url", url).Int64("bytes", n).Msg("watchlist export downloaded")
	return nil
}
