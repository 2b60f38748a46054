package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/config"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/rundriver"
)

func newDeps() (Deps, *rundriver.Fake) {
	driver := rundriver.NewFake()
	store := &config.Store{
		File: config.File{Containers: []string{"a", "b"}},
	}
	store.SetStagnationAlertEnabled(true)
	store.SetStagnationThresholdMinutes(30)
	return Deps{Driver: driver, Config: store}, driver
}

func TestDispatch_StartStopRestart(t *testing.T) {
	deps, driver := newDeps()

	assert.Equal(t, `Container "a" started.`, Dispatch(context.Background(), deps, "/start a"))
	assert.Contains(t, driver.StartCalls, "a")

	assert.Equal(t, `Container "a" stopped.`, Dispatch(context.Background(), deps, "/stop a"))
	assert.Contains(t, driver.StopCalls, "a")

	assert.Equal(t, `Container "a" restarted.`, Dispatch(context.Background(), deps, "/restart a"))
	assert.Contains(t, driver.RestartCalls, "a")
}

func TestDispatch_RestartDoesNotTouchSupervisorState(t *testing.T) {
	// The command handler has no access to supervisor state at all —
	// this test documents that Deps intentionally carries only the
	// driver and config, never a per-container state table.
	deps, _ := newDeps()
	Dispatch(context.Background(), deps, "/restart a")
	assert.NotPanics(t, func() {
		Dispatch(context.Background(), deps, "/status")
	})
}

func TestDispatch_UnknownContainer(t *testing.T) {
	deps, driver := newDeps()
	driver.FailRestart["missing-node"] = rundriver.ErrNotFound
	resp := Dispatch(context.Background(), deps, "/restart missing-node")
	assert.Contains(t, resp, "not found")
}

func TestDispatch_LogsDefaultAndOverride(t *testing.T) {
	deps, driver := newDeps()
	driver.Statuses["a"] = rundriver.Status{Running: true}
	driver.Logs["a"] = "line1\nline2"

	resp := Dispatch(context.Background(), deps, "/logs a")
	assert.Equal(t, "line1\nline2", resp)

	resp = Dispatch(context.Background(), deps, "/logs a 5")
	assert.Equal(t, "line1\nline2", resp)
}

func TestDispatch_LogsRejectsBadArgs(t *testing.T) {
	deps, _ := newDeps()
	resp := Dispatch(context.Background(), deps, "/logs a notanumber")
	assert.Contains(t, resp, "positive integer")
}

func TestDispatch_StagnationToggle(t *testing.T) {
	deps, _ := newDeps()

	Dispatch(context.Background(), deps, "/stagnation off")
	assert.False(t, deps.Config.StagnationAlertEnabled())

	Dispatch(context.Background(), deps, "/stagnation on")
	assert.True(t, deps.Config.StagnationAlertEnabled())

	resp := Dispatch(context.Background(), deps, "/stagnation sideways")
	assert.Contains(t, resp, "Expected on or off")
}

func TestDispatch_StagnationTimer(t *testing.T) {
	deps, _ := newDeps()

	Dispatch(context.Background(), deps, "/stagnation_timer 5")
	assert.Equal(t, 5, deps.Config.StagnationThresholdMinutes())

	resp := Dispatch(context.Background(), deps, "/stagnation_timer -1")
	assert.Contains(t, resp, "positive integer")
}

func TestDispatch_Status(t *testing.T) {
	deps, _ := newDeps()
	resp := Dispatch(context.Background(), deps, "/status")
	assert.Contains(t, resp, "Watching 2 container")
}

func TestDispatch_UnknownCommand(t *testing.T) {
	deps, _ := newDeps()
	resp := Dispatch(context.Background(), deps, "/bogus")
	assert.Contains(t, resp, "Unknown command")
}

func TestDispatch_Help(t *testing.T) {
	deps, _ := newDeps()
	resp := Dispatch(context.Background(), deps, "/help")
	assert.Contains(t, resp, "/status")
}
