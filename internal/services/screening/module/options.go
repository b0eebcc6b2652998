package module

import (
	"opscreen/internal/platform/config"
	"opscreen/internal/platform/net/middleware"
)

// Options holds configuration settings for the screening module
type Options struct {
	SyncThreshold           int
	ValidityDays            int
	MatchThreshold          int
	SuggestionThreshold     int
	MatcherDeadlineSeconds  int
	WorkerPollSeconds       int
	CleanupEveryNLoops      int
	JobRetentionDays        int
	EvidenceRetentionMonths int
	SearchLimit             int

	InternalAPIKey    string
	InternalAllowlist middleware.TrustedProxies
	TrustedProxies    middleware.TrustedProxies
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	sf := cfg.Prefix("CORE_SCREENING_")
	return Options{
		SyncThreshold:           sf.MayInt("SYNC_THRESHOLD", 5),
		ValidityDays:            sf.MayInt("VALIDITY_DAYS", 365),
		MatchThreshold:          sf.MayInt("MATCH_THRESHOLD", 75),
		SuggestionThreshold:     sf.MayInt("SUGGESTION_THRESHOLD", 60),
		MatcherDeadlineSeconds:  sf.MayInt("MATCHER_DEADLINE_SECONDS", 30),
		WorkerPollSeconds:       sf.MayInt("WORKER_POLL_SECONDS", 5),
		CleanupEveryNLoops:      sf.MayInt("CLEANUP_EVERY_N_LOOPS", 50),
		JobRetentionDays:        sf.MayInt("JOB_RETENTION_DAYS", 7),
		EvidenceRetentionMonths: sf.MayInt("EVIDENCE_RETENTION_MONTHS", 0),
		SearchLimit:             sf.MayInt("SEARCH_LIMIT", 50),

		InternalAPIKey:    sf.MayString("INTERNAL_API_KEY", ""),
		InternalAllowlist: middleware.ParseTrustedProxies(sf.MayString("INTERNAL_IP_ALLOWLIST", "")),
		TrustedProxies:    middleware.ParseTrustedProxies(cfg.Prefix("CORE_API_").MayString("TRUSTED_PROXY_IPS", "")),
	}
}

// WatchlistFiles reads the export file locations
func WatchlistFiles(cfg config.Conf) (sanctions, peps string) {
	wf := cfg.Prefix("CORE_WATCHLIST_")
	return wf.MayString("SANCTIONS_PATH", ""), wf.MayString("PEPS_PATH", "")
}
