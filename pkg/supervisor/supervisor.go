// Package supervisor is the watcher's core control loop: it tails
// every watched container once per tick, computes the fleet's
// majority (session_id, state) pair, tracks stagnation, and restarts
// containers that fall out of sync, lag the majority session id,
// exhibit a parser-recognized symptom, or fail their reputation check.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/config"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/eventlog"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/log"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/logparse"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/metrics"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/notify"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/reputation"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/rundriver"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/watchtypes"
)

// idLagThreshold is fixed per the source implementation rather than
// configurable.
const idLagThreshold = 2 * time.Minute

// warmupPeriod is the grace window after which a container's logs are
// trusted enough to act on. Also fixed rather than configurable.
const warmupPeriod = 60 * time.Second

// majorityStateInactive is the reported state value that means the
// node considers itself inactive; a non-running container whose
// majority state is this value is restarted on sight.
const majorityStateInactive = 6

const restartTimeoutSeconds = 30
const restartLogTailLines = 500

// Supervisor runs the tick loop described above.
type Supervisor struct {
	driver   rundriver.Driver
	notifier notify.Notifier
	events   *eventlog.Log
	cfg      *config.Store
	prober   *reputation.Prober

	logDir    string
	startedAt time.Time

	states  map[string]*watchtypes.PerContainerState
	tracker watchtypes.MajorityTracker

	logger zerolog.Logger
}

// New builds a Supervisor over the given container set. prober may be
// nil when reputation checking is disabled.
func New(driver rundriver.Driver, notifier notify.Notifier, events *eventlog.Log, cfg *config.Store, prober *reputation.Prober) *Supervisor {
	states := make(map[string]*watchtypes.PerContainerState, len(cfg.File.Containers))
	for _, c := range cfg.File.Containers {
		states[c] = &watchtypes.PerContainerState{}
	}

	return &Supervisor{
		driver:    driver,
		notifier:  notifier,
		events:    events,
		cfg:       cfg,
		prober:    prober,
		logDir:    cfg.File.LogDir,
		startedAt: time.Now(),
		states:    states,
		logger:    log.WithComponent("supervisor"),
	}
}

// Run blocks, ticking every check_interval_seconds, until ctx is
// cancelled. A panic or unexpected error inside a tick is contained:
// it is logged, alerted, and the loop sleeps 10s before resuming.
func (s *Supervisor) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.File.CheckIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Int("containers", len(s.cfg.File.Containers)).Msg("supervisor started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("supervisor stopped")
			return
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

func (s *Supervisor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in tick: %v", r)
			s.logger.Error().Err(err).Msg("supervisor tick failed")
			s.notifier.Send(notify.WatcherError(err))
			time.Sleep(10 * time.Second)
		}
	}()

	timer := metrics.NewTimer()
	if err := s.tick(ctx); err != nil {
		s.logger.Error().Err(err).Msg("supervisor tick failed")
		s.notifier.Send(notify.WatcherError(err))
		time.Sleep(10 * time.Second)
	}
	timer.ObserveDuration(metrics.TickDuration)
	metrics.TicksTotal.Inc()
}

// tick runs one full evaluation cycle, in the fixed order the
// concurrency model requires: reputation sweep, status gather,
// majority computation, stagnation update, per-container evaluation.
func (s *Supervisor) tick(ctx context.Context) error {
	now := time.Now()
	warmedUp := now.Sub(s.startedAt) >= warmupPeriod

	if s.prober != nil && s.cfg.File.ReputationCheckEnabled {
		s.reputationSweep(ctx, now, warmedUp)
	}

	samples := s.gatherStatus(ctx, warmedUp)

	majority, ok := computeMajority(s.cfg.File.Containers, samples)
	if !ok {
		s.logger.Warn().Msg("majority undefined: fewer than 2 containers reported a parsed pair")
		return nil
	}
	metrics.MajorityPair.Reset()
	metrics.MajorityPair.WithLabelValues(itoa(majority.SessionID), itoa(majority.State)).Set(1)

	s.updateStagnation(now, *majority)

	for _, name := range s.cfg.File.Containers {
		s.evaluateContainer(ctx, name, samples[name], *majority, warmedUp, now)
	}

	return nil
}

func (s *Supervisor) reputationSweep(ctx context.Context, now time.Time, warmedUp bool) {
	for addr, container := range s.cfg.File.NodeAddresses {
		state := s.states[container]
		if state == nil {
			continue
		}
		if state.ReputationCooldownUntil != nil && state.ReputationCooldownUntil.After(now) {
			continue
		}

		results, err := s.prober.Check(addr)
		if err != nil {
			if err != reputation.ErrNoData {
				s.logger.Warn().Err(err).Str("address", addr).Msg("reputation probe failed")
			}
			continue
		}

		for _, r := range results {
			if r.Failed >= s.cfg.File.ReputationFailureThreshold {
				if !warmedUp {
					break
				}
				s.restart(ctx, container, watchtypes.ReasonReputationFailure,
					fmt.Sprintf("%d of last %d %s attempts failed for %s", r.Failed, s.cfg.File.ReputationCheckWindow, r.Stage, addr))
				break
			}
		}
	}
}

func (s *Supervisor) gatherStatus(ctx context.Context, warmedUp bool) map[string]watchtypes.TickSample {
	samples := make(map[string]watchtypes.TickSample, len(s.cfg.File.Containers))
	running := 0

	for _, name := range s.cfg.File.Containers {
		sample := watchtypes.TickSample{Container: name}

		status, err := s.driver.Status(ctx, name)
		if err != nil {
			s.logger.Warn().Err(err).Str("container", name).Msg("could not fetch container status")
			samples[name] = sample
			continue
		}
		sample.Running = status.Running
		sample.DockerStatus = status.State

		if status.Running {
			running++
			logs, err := s.driver.TailLogs(ctx, name, s.cfg.File.TailLines)
			if err != nil {
				s.logger.Warn().Err(err).Str("container", name).Msg("could not fetch container logs")
				samples[name] = sample
				continue
			}

			parsed := logparse.Parse(logs)
			sample.Pair = parsed.Pair
			sample.HasTraceback = parsed.HasTraceback
			sample.TracebackDetail = parsed.TracebackDetail
			sample.PingFailureCount = parsed.PingFailureCount
			sample.PingFailurePattern = parsed.PingFailurePattern

			if warmedUp {
				if sample.HasTraceback {
					s.restart(ctx, name, watchtypes.ReasonPythonTraceback, sample.TracebackDetail)
					samples[name] = sample
					continue
				}
				if sample.PingFailureCount >= 2 {
					s.restart(ctx, name, watchtypes.ReasonPingFailure, sample.PingFailurePattern)
					samples[name] = sample
					continue
				}
			}
		}

		samples[name] = sample
	}

	metrics.ContainersTotal.WithLabelValues("true").Set(float64(running))
	metrics.ContainersTotal.WithLabelValues("false").Set(float64(len(s.cfg.File.Containers) - running))

	return samples
}

func (s *Supervisor) updateStagnation(now time.Time, majority watchtypes.SessionPair) {
	t := &s.tracker
	if t.LastSeenPair == nil || !t.LastSeenPair.Equal(majority) {
		t.LastSeenPair = &majority
		t.StagnationSince = nil
		t.AlertSentFor = nil
		return
	}

	if t.StagnationSince == nil {
		since := now
		t.StagnationSince = &since
		return
	}

	thresholdMinutes := s.cfg.StagnationThresholdMinutes()
	if now.Sub(*t.StagnationSince) >= time.Duration(thresholdMinutes)*time.Minute &&
		s.cfg.StagnationAlertEnabled() &&
		(t.AlertSentFor == nil || !t.AlertSentFor.Equal(majority)) {
		s.notifier.Send(notify.StagnationAlert(majority, thresholdMinutes))
		_ = s.events.Append(eventlog.Event{
			Kind:    eventlog.KindStagnation,
			Message: fmt.Sprintf("majority pair %s stagnant for %d minutes", majority, thresholdMinutes),
		})
		metrics.StagnationAlertsTotal.Inc()
		t.AlertSentFor = &majority
	}
}

func (s *Supervisor) evaluateContainer(ctx context.Context, name string, sample watchtypes.TickSample, majority watchtypes.SessionPair, warmedUp bool, now time.Time) {
	state := s.states[name]
	logger := s.logger.With().Str("container", name).Logger()

	if !sample.Running {
		if majority.State == majorityStateInactive {
			s.restart(ctx, name, watchtypes.ReasonInactiveNode, "container is not running and fleet majority state is inactive")
		} else {
			logger.Info().Msg("container not running")
		}
		return
	}

	if sample.Pair == nil {
		logger.Warn().Msg("could not parse session/state pair from logs")
		return
	}

	if sample.Pair.Equal(majority) {
		state.StateDeviationStart = nil
		state.IDLagStart = nil
		logger.Info().Int("session_id", sample.Pair.SessionID).Int("state", sample.Pair.State).Msg("in sync with majority")
		return
	}

	if sample.Pair.State != majority.State {
		state.IDLagStart = nil
		if state.StateDeviationStart == nil {
			t := now
			state.StateDeviationStart = &t
			logger.Warn().Msg("state deviation detected, timer armed")
			return
		}
		if now.Sub(*state.StateDeviationStart) >= time.Duration(s.cfg.File.GracePeriodSeconds)*time.Second {
			if warmedUp {
				s.restart(ctx, name, watchtypes.ReasonStateDeviation,
					fmt.Sprintf("state %d != majority state %d for over %ds", sample.Pair.State, majority.State, s.cfg.File.GracePeriodSeconds))
			} else {
				logger.Warn().Msg("state deviation past grace period but container not warmed up; not restarting")
			}
		}
		return
	}

	// Same state, differing session id: lag or lead.
	state.StateDeviationStart = nil
	if sample.Pair.SessionID < majority.SessionID {
		if state.IDLagStart == nil {
			t := now
			state.IDLagStart = &t
			logger.Warn().Msg("session id lag detected, timer armed")
			return
		}
		if now.Sub(*state.IDLagStart) >= idLagThreshold && warmedUp {
			s.restart(ctx, name, watchtypes.ReasonSessionIDLag,
				fmt.Sprintf("session id %d behind majority %d for over %s", sample.Pair.SessionID, majority.SessionID, idLagThreshold))
		}
		return
	}

	// Leading id: treated like in-sync for timer purposes.
	state.IDLagStart = nil
	logger.Info().Int("session_id", sample.Pair.SessionID).Msg("ahead of majority session id, not a lag")
}

// restart runs the full restart pipeline: log dump, event-log append,
// notification, timer/cooldown mutation, then the actual restart call.
// Event-log-before-restart-call is deliberate: the operator record
// must exist even if the restart API call fails.
func (s *Supervisor) restart(ctx context.Context, container string, reason watchtypes.RestartReason, details string) {
	now := time.Now()
	reasonSlug := slug(string(reason))
	tag := fmt.Sprintf("%s_%s_%s.log", container, reasonSlug, now.UTC().Format("20060102T150405"))

	if logs, err := s.driver.TailLogs(ctx, container, restartLogTailLines); err == nil {
		if err := s.writeLogDump(tag, logs); err != nil {
			s.logger.Warn().Err(err).Str("container", container).Msg("failed to write restart log dump")
		}
	} else {
		s.logger.Warn().Err(err).Str("container", container).Msg("failed to fetch logs for restart dump")
	}

	line := fmt.Sprintf("%s | RESTART | Container: %s | Reason: %s | Details: %s | Logfile: %s",
		now.UTC().Format(time.RFC3339), container, reason, details, tag)
	if err := s.events.Append(eventlog.Event{
		Kind:      eventlog.KindRestart,
		Container: container,
		Message:   line,
		Fields:    map[string]string{"reason": string(reason), "details": details, "logfile": tag},
	}); err != nil {
		s.logger.Warn().Err(err).Str("container", container).Msg("failed to append restart event")
	}

	s.notifier.Send(notify.RestartAlert(container, string(reason), details, now))
	metrics.RestartsTotal.WithLabelValues(container, reasonSlug).Inc()

	state := s.states[container]
	state.StateDeviationStart = nil
	state.IDLagStart = nil
	if reason == watchtypes.ReasonReputationFailure {
		until := now.Add(time.Duration(s.cfg.File.ReputationRestartCooldownMinutes) * time.Minute)
		state.ReputationCooldownUntil = &until
	}

	if err := s.driver.Restart(ctx, container, restartTimeoutSeconds); err != nil {
		s.logger.Error().Err(err).Str("container", container).Msg("restart call failed")
		s.notifier.Send(notify.RestartFailureAlert(container, string(reason), err))
	}
}

func (s *Supervisor) writeLogDump(tag, content string) error {
	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	path := filepath.Join(s.logDir, tag)
	return os.WriteFile(path, []byte(content), 0o644)
}

func slug(reason string) string {
	return strings.ToLower(strings.ReplaceAll(reason, " ", "_"))
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
