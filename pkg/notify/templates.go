package notify

import (
	"fmt"
	"time"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/watchtypes"
)

// RestartAlert formats the message sent whenever the supervisor
// restarts a container. An operator /restart does not use it: the
// command handler replies with its own confirmation text.
func RestartAlert(container, reason, details string, at time.Time) string {
	return fmt.Sprintf(
		"<b>Restart</b>\nContainer: <code>%s</code>\nReason: %s\nDetails: %s\nTime: %s",
		container, reason, details, at.UTC().Format(time.RFC3339))
}

// RestartFailureAlert formats the message sent when the restart API
// call itself failed.
func RestartFailureAlert(container, reason string, err error) string {
	return fmt.Sprintf(
		"<b>Restart failed</b>\nContainer: <code>%s</code>\nReason: %s\nError: %s",
		container, reason, err.Error())
}

// StagnationAlert formats the message sent when the fleet majority
// pair has not moved for longer than the configured threshold.
func StagnationAlert(pair watchtypes.SessionPair, minutes int) string {
	return fmt.Sprintf(
		"<b>Stagnation detected</b>\nMajority pair %s has not advanced for %d minutes.",
		pair, minutes)
}

// WatcherStarted formats the startup notification.
func WatcherStarted(containerCount int) string {
	return fmt.Sprintf("<b>Watcher started</b>\nMonitoring %d container(s).", containerCount)
}

// WatcherStopped formats the orderly-shutdown notification.
func WatcherStopped() string {
	return "<b>Watcher stopped</b>"
}

// WatcherError formats a best-effort alert for an unhandled supervisor
// loop error.
func WatcherError(err error) string {
	return fmt.Sprintf("<b>Watcher error</b>\n%s", err.Error())
}
