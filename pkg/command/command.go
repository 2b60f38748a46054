// Package command dispatches a single inbound chat message to the
// container driver or the mutable config store. It never touches the
// supervisor's per-container state table: container lifecycle
// commands go straight to the driver, so a manual /restart does not
// reset the timers the supervisor uses to reason about convergence.
package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/config"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/metrics"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/rundriver"
)

const (
	defaultLogLines  = 20
	maxResponseChars = 4000
	restartTimeoutS  = 30
)

// Deps are the collaborators the handler needs, injected so tests can
// use a fake driver.
type Deps struct {
	Driver rundriver.Driver
	Config *config.Store
}

// Dispatch tokenizes text and runs the matching command, returning the
// reply to send back to the chat. It never panics: any error is
// surfaced as a templated response string.
func Dispatch(ctx context.Context, deps Deps, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return unknownCommand("")
	}

	cmd := strings.ToLower(fields[0])
	args := fields[1:]
	metrics.ChatCommandsTotal.WithLabelValues(cmd).Inc()

	switch cmd {
	case "/start":
		return dispatchLifecycle(ctx, deps, args, cmd, "started", deps.Driver.Start)
	case "/stop":
		return dispatchLifecycle(ctx, deps, args, cmd, "stopped", func(ctx context.Context, cid string) error {
			return deps.Driver.Stop(ctx, cid, restartTimeoutS)
		})
	case "/restart":
		return dispatchLifecycle(ctx, deps, args, cmd, "restarted", func(ctx context.Context, cid string) error {
			return deps.Driver.Restart(ctx, cid, restartTimeoutS)
		})
	case "/logs":
		return handleLogs(ctx, deps, args)
	case "/stagnation":
		return handleStagnationToggle(deps, args)
	case "/stagnation_timer":
		return handleStagnationTimer(deps, args)
	case "/status":
		return handleStatus(deps)
	case "/help":
		return helpText()
	default:
		return unknownCommand(cmd)
	}
}

func dispatchLifecycle(ctx context.Context, deps Deps, args []string, cmd, verb string, op func(context.Context, string) error) string {
	if len(args) != 1 {
		return fmt.Sprintf("Usage: %s <container>", cmd)
	}
	cid := args[0]
	if err := op(ctx, cid); err != nil {
		if err == rundriver.ErrNotFound {
			return fmt.Sprintf("Container %q not found.", cid)
		}
		return fmt.Sprintf("Failed to act on %q: %s", cid, err.Error())
	}
	return fmt.Sprintf("Container %q %s.", cid, verb)
}

func handleLogs(ctx context.Context, deps Deps, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /logs <container> [N]"
	}
	cid := args[0]
	n := defaultLogLines
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v <= 0 {
			return fmt.Sprintf("N must be a positive integer, got %q.", args[1])
		}
		n = v
	}

	logs, err := deps.Driver.TailLogs(ctx, cid, n)
	if err != nil {
		if err == rundriver.ErrNotFound {
			return fmt.Sprintf("Container %q not found.", cid)
		}
		return fmt.Sprintf("Failed to fetch logs for %q: %s", cid, err.Error())
	}
	if len(logs) > maxResponseChars {
		logs = logs[len(logs)-maxResponseChars:]
	}
	return logs
}

func handleStagnationToggle(deps Deps, args []string) string {
	if len(args) != 1 {
		return "Usage: /stagnation on|off"
	}
	switch strings.ToLower(args[0]) {
	case "on":
		deps.Config.SetStagnationAlertEnabled(true)
		return "Stagnation alerts enabled."
	case "off":
		deps.Config.SetStagnationAlertEnabled(false)
		return "Stagnation alerts disabled."
	default:
		return fmt.Sprintf("Expected on or off, got %q.", args[0])
	}
}

func handleStagnationTimer(deps Deps, args []string) string {
	if len(args) != 1 {
		return "Usage: /stagnation_timer <minutes>"
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes <= 0 {
		return fmt.Sprintf("Minutes must be a positive integer, got %q.", args[0])
	}
	deps.Config.SetStagnationThresholdMinutes(minutes)
	return fmt.Sprintf("Stagnation threshold set to %d minutes.", minutes)
}

func handleStatus(deps Deps) string {
	return fmt.Sprintf(
		"Watching %d container(s).\nStagnation alerts: %t\nStagnation threshold: %d minutes.",
		len(deps.Config.File.Containers),
		deps.Config.StagnationAlertEnabled(),
		deps.Config.StagnationThresholdMinutes(),
	)
}

func helpText() string {
	return strings.Join([]string{
		"Available commands:",
		"/start <container> - start a container",
		"/stop <container> - stop a container",
		"/restart <container> - restart a container",
		"/logs <container> [N] - tail the last N log lines (default 20)",
		"/stagnation on|off - enable or disable stagnation alerts",
		"/stagnation_timer <minutes> - set the stagnation alert threshold",
		"/status - summarize current watcher configuration",
		"/help - show this message",
	}, "\n")
}

func unknownCommand(cmd string) string {
	if cmd == "" {
		return "I didn't understand that. Send /help for a list of commands."
	}
	return fmt.Sprintf("Unknown command %q. Send /help for a list of commands.", cmd)
}
