package utils

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTimerMeasuresDuration(t *testing.T) {
	timer := NewTimer("test_op", zerolog.Nop())
	time.Sleep(5 * time.Millisecond)

	duration := timer.Stop()
	assert.GreaterOrEqual(t, duration, 5*time.Millisecond)
}

func TestLogMemoryUsage(t *testing.T) {
	// Must not panic and must tolerate repeated calls.
	LogMemoryUsage(zerolog.Nop(), "test_op")
	LogMemoryUsage(zerolog.Nop(), "test_op")
}
