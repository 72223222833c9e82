package module

import (
	"time"

	"finewatch/internal/platform/config"
)

// Options holds configuration options for the resolve service
type Options struct {
	CacheTTL   time.Duration
	CacheSweep time.Duration
}

// FromConfig reads the resolve options from config with CORE_RESOLVE_ prefix
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("CORE_RESOLVE_")
	return Options{
		CacheTTL:   rc.MayDuration("CACHE_TTL", 5*time.Minute),
		CacheSweep: rc.MayDuration("CACHE_SWEEP", 10*time.Minute),
	}
}
