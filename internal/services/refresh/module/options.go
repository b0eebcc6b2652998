package module

import (
	"time"

	"opscreen/internal/platform/config"
	rsvc "opscreen/internal/services/refresh/service"
)

// Options holds configuration settings for the refresh module
type Options struct {
	APIKey         string
	CandidateLimit int
	Fetch          rsvc.FetchConfig
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	rf := cfg.Prefix("CORE_REFRESH_")
	wf := cfg.Prefix("CORE_WATCHLIST_")
	return Options{
		APIKey:         rf.MayString("API_KEY", ""),
		CandidateLimit: rf.MayInt("CANDIDATE_LIMIT", 10000),
		Fetch: rsvc.FetchConfig{
			SanctionsURL:  wf.MayString("SANCTIONS_URL", ""),
			SanctionsPath: wf.MayString("SANCTIONS_PATH", ""),
			PEPsURL:       wf.MayString("PEPS_URL", ""),
			PEPsPath:      wf.MayString("PEPS_PATH", ""),
			Timeout:       time.Duration(rf.MayInt("FETCH_TIMEOUT_SECONDS", 300)) * time.Second,
		},
	}
}
