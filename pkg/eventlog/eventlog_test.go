package eventlog

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendWritesRestartLineVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	line := "2024-01-02T15:04:05Z | RESTART | Container: node-a | Reason: State Deviation | Details: details here | Logfile: node-a_state_deviation_20240102T150405.log"
	require.NoError(t, log.Append(Event{
		Kind:      KindRestart,
		Container: "node-a",
		Message:   line,
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, line+"\n", string(raw))
}

func TestLog_AppendOnlyPersistsRestartEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append(Event{Kind: KindStagnation, Message: "majority stagnant"}))
	require.NoError(t, log.Append(Event{Kind: KindCommand, Message: "/restart node-a"}))
	require.NoError(t, log.Append(Event{Kind: KindStartup, Message: "watcher started"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, raw, "WATCHER_LOG_FILE must only ever receive restart lines")
}

func TestLog_SubscribersReceiveEveryKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	sub := log.Subscribe()
	defer log.Unsubscribe(sub)

	require.NoError(t, log.Append(Event{Kind: KindCommand, Message: "hello"}))
	received := <-sub
	assert.Equal(t, "hello", received.Message)

	require.NoError(t, log.Append(Event{Kind: KindRestart, Container: "node-a", Message: "restart-line"}))
	received = <-sub
	assert.Equal(t, "restart-line", received.Message)
}

func TestLog_AppendIsDurableAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(Event{Kind: KindRestart, Message: "first"}))
	require.NoError(t, log.Close())

	log2, err := Open(path)
	require.NoError(t, err)
	defer log2.Close()
	require.NoError(t, log2.Append(Event{Kind: KindRestart, Message: "second"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}
