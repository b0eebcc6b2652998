package module

import (
	"time"

	"opscreen/internal/platform/config"
	"opscreen/internal/platform/net/middleware"
)

// Options holds configuration settings for the auth module
type Options struct {
	SigningSecret string
	TokenTTL      time.Duration

	SignupEnabled bool
	SignupDomains []string

	SeedAdminEmail    string
	SeedAdminPassword string

	ListLimit      int
	TrustedProxies middleware.TrustedProxies
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	af := cfg.Prefix("CORE_AUTH_")
	return Options{
		SigningSecret: af.MayString("TOKEN_SIGNING_SECRET", ""),
		TokenTTL:      af.MayDuration("TOKEN_TTL", 24*time.Hour),

		SignupEnabled: af.MayBool("SIGNUP_ENABLED", false),
		SignupDomains: af.MayCSV("SIGNUP_ALLOWED_DOMAINS", nil),

		SeedAdminEmail:    af.MayString("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: af.MayString("SEED_ADMIN_PASSWORD", ""),

		ListLimit:      af.MayInt("LIST_LIMIT", 100),
		TrustedProxies: middleware.ParseTrustedProxies(cfg.Prefix("CORE_API_").MayString("TRUSTED_PROXY_IPS", "")),
	}
}
