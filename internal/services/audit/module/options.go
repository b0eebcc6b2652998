package module

import "opscreen/internal/platform/config"

// Options holds configuration settings for the audit module
type Options struct {
	ListLimit int
	Mirror    bool
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	af := cfg.Prefix("CORE_AUDIT_")
	return Options{
		ListLimit: af.MayInt("LIST_LIMIT", 100),
		Mirror:    af.MayBool("CH_MIRROR", false),
	}
}
