package module

import (
	"time"

	"finewatch/internal/platform/config"
)

// Options holds configuration options for the rollup service
type Options struct {
	RecentK    int
	CacheTTL   time.Duration
	CacheSweep time.Duration
}

// FromConfig reads the rollup options from config with CORE_ROLLUP_ prefix
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("CORE_ROLLUP_")
	return Options{
		RecentK:    rc.MayInt("RECENT_K", 5),
		CacheTTL:   rc.MayDuration("CACHE_TTL", time.Minute),
		CacheSweep: rc.MayDuration("CACHE_SWEEP", 2*time.Minute),
	}
}
