// Package logparse extracts the (session_id, state) pair and symptom
// flags the supervisor needs from a container's raw log tail.
package logparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/watchtypes"
)

// reLogState captures two decimal integers in the node's state-report
// line, e.g. "... Session: 10 ... State: 3 ...". The exact surrounding
// text varies by node build; only the two capture groups are load-bearing.
var reLogState = regexp.MustCompile(`(?i)session[^0-9-]*(-?\d+).*?state[^0-9-]*(-?\d+)`)

const (
	patternTraceback = "Traceback (most recent call last)"
	patternPingFail  = "Failed to send ping"

	// pingFailWindowLines bounds how far back ping-failure occurrences
	// are counted, independent of the full tail length requested.
	pingFailWindowLines = 52
)

// Parse scans lines (oldest first, as returned by the container driver)
// and extracts the last reported (session_id, state) pair plus symptom
// flags.
func Parse(logText string) watchtypes.TickSample {
	lines := strings.Split(logText, "\n")

	sample := watchtypes.TickSample{}

	for i := len(lines) - 1; i >= 0; i-- {
		if m := reLogState.FindStringSubmatch(lines[i]); m != nil {
			sessionID, err1 := strconv.Atoi(m[1])
			state, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				sample.Pair = &watchtypes.SessionPair{SessionID: sessionID, State: state}
				break
			}
		}
	}

	for _, line := range lines {
		if strings.Contains(line, patternTraceback) {
			sample.HasTraceback = true
			sample.TracebackDetail = "A Python 'Traceback' was detected in the container logs."
			break
		}
	}

	window := lines
	if len(window) > pingFailWindowLines {
		window = window[len(window)-pingFailWindowLines:]
	}
	count := 0
	for _, line := range window {
		if strings.Contains(line, patternPingFail) {
			count++
		}
	}
	sample.PingFailureCount = count
	if count > 0 {
		sample.PingFailurePattern = fmt.Sprintf(
			"%d instances of '%s' found in the last %d log lines.",
			count, patternPingFail, pingFailWindowLines)
	}

	return sample
}
