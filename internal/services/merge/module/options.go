package module

import (
	"time"

	"finewatch/internal/platform/config"
)

// Options holds configuration options for the merge service
type Options struct {
	MaxAttempts int
	RetryBase   time.Duration
	RetryCap    time.Duration
}

// FromConfig reads the merge options from config with CORE_MERGE_ prefix
func FromConfig(cfg config.Conf) Options {
	mc := cfg.Prefix("CORE_MERGE_")
	return Options{
		MaxAttempts: mc.MayInt("MAX_ATTEMPTS", 5),
		RetryBase:   mc.MayDuration("RETRY_BASE", 200*time.Millisecond),
		RetryCap:    mc.MayDuration("RETRY_CAP", 10*time.Second),
	}
}
