// Package utils provides small shared helpers (performance timing, process
// introspection) used across the pipeline.
package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Timer is a simple performance timer for measuring operation duration
type Timer struct {
	start   time.Time
	name    string
	log     zerolog.Logger
	enabled bool
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start:   time.Now(),
		name:    name,
		log:     log,
		enabled: true,
	}
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	if !t.enabled {
		return 0
	}

	duration := time.Since(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Float64("duration_seconds", duration.Seconds()).
		Msg("Performance measurement")

	// Warn if operation took longer than expected thresholds
	if duration > 30*time.Second {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected (>30s)")
	} else if duration > 10*time.Second {
		t.log.Info().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Operation took longer than expected (>10s)")
	}

	return duration
}

// LogMemoryUsage logs the current process RSS. Used around HMC sampling and
// discovery runs, the memory-heavy paths.
func LogMemoryUsage(log zerolog.Logger, operation string) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to inspect own process")
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil || memInfo == nil {
		log.Debug().Err(err).Msg("Failed to read process memory info")
		return
	}

	log.Debug().
		Str("operation", operation).
		Uint64("rss_bytes", memInfo.RSS).
		Float64("rss_mb", float64(memInfo.RSS)/(1024*1024)).
		Msg("Process memory usage")
}
