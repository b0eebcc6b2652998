package module

import "opscreen/internal/platform/config"

// Options holds configuration settings for the review module
type Options struct {
	QueueLimit int
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	rf := cfg.Prefix("CORE_REVIEW_")
	return Options{
		QueueLimit: rf.MayInt("QUEUE_LIMIT", 100),
	}
}
