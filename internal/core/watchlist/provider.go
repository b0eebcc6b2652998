package watchlist

import (
	"sync"

	perr "opscreen/internal/platform/errors"
)

// Provider hands out the current snapshot and swaps it atomically on refresh.
// The zero value is unusable; construct with NewProvider
type Provider struct {
	mu    sync.RWMutex
	snap  *Snapshot
	files []File
}

// NewProvider builds a lazy provider over the given export files
func NewProvider(files ...File) *Provider {
	return &Provider{files: files}
}

// Get returns the current snapshot, loading it on first use.
// Unavailable when no files are configured or the load fails
func (p *Provider) Get() (*Snapshot, error) {
	p.mu.RLock()
	s := p.snap
	p.mu.RUnlock()
	if s != nil {
		return s, nil
	}
	return p.Reload()
}

// Reload re-reads the export files and publishes the new snapshot
func (p *Provider) Reload() (*Snapshot, error) {
	if len(p.files) == 0 {
		return nil, perr.Unavailablef("no watchlist files configured")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := Load(p.files...)
	if err != nil {
		return nil, err
	}
	p.snap = s
	return s, nil
}

// Set publishes a prebuilt snapshot, used by tests and the refresh path
func (p *Provider) Set(s *Snapshot) {
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()
}
