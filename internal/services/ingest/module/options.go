package module

import (
	"time"

	"finewatch/internal/platform/config"
)

// Options holds configuration options for the ingest service
type Options struct {
	Workers          int
	DelayPerBatch    time.Duration
	BatchSize        int
	Visibility       time.Duration
	MaxBatchAttempts int
	PollInterval     time.Duration
}

// FromConfig reads the ingest options from config with CORE_INGEST_ prefix
func FromConfig(cfg config.Conf) Options {
	ic := cfg.Prefix("CORE_INGEST_")
	return Options{
		Workers:          ic.MayInt("WORKERS", 4),
		DelayPerBatch:    ic.MayDuration("DELAY", 0),
		BatchSize:        ic.MayInt("BATCH_SIZE", 10),
		Visibility:       ic.MayDuration("VISIBILITY", 5*time.Minute),
		MaxBatchAttempts: ic.MayInt("MAX_BATCH_ATTEMPTS", 5),
		PollInterval:     ic.MayDuration("POLL_INTERVAL", 0),
	}
}
