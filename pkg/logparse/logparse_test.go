package logparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_ExtractsLastPair(t *testing.T) {
	log := strings.Join([]string{
		"2026-01-01 00:00:00 INFO Session: 9 State: 2",
		"2026-01-01 00:00:01 INFO Session: 10 State: 3",
		"2026-01-01 00:00:02 DEBUG heartbeat",
	}, "\n")

	sample := Parse(log)

	require := assert.New(t)
	require.NotNil(sample.Pair)
	require.Equal(10, sample.Pair.SessionID)
	require.Equal(3, sample.Pair.State)
	require.False(sample.HasTraceback)
	require.Equal(0, sample.PingFailureCount)
}

func TestParse_NoMatch(t *testing.T) {
	sample := Parse("nothing interesting here\nor here")
	assert.Nil(t, sample.Pair)
}

func TestParse_Traceback(t *testing.T) {
	log := "some line\nTraceback (most recent call last):\n  File stuff\nValueError: boom"
	sample := Parse(log)
	assert.True(t, sample.HasTraceback)
	assert.NotEmpty(t, sample.TracebackDetail)
}

func TestParse_PingFailureCountWithinWindow(t *testing.T) {
	lines := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		lines = append(lines, "INFO heartbeat ok")
	}
	// Only the last 52 lines are considered; put 3 failures inside that
	// window and 2 failures before it, which must not be counted.
	lines[0] = "Failed to send ping attempt 1"
	lines[1] = "Failed to send ping attempt 2"
	lines[55] = "Failed to send ping attempt 3"
	lines[56] = "Failed to send ping attempt 4"
	lines[57] = "Failed to send ping attempt 5"

	sample := Parse(strings.Join(lines, "\n"))
	assert.Equal(t, 3, sample.PingFailureCount)
}
