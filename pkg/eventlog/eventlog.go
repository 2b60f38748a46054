// Package eventlog appends a durable, line-delimited record of every
// restart decision the supervisor makes to WATCHER_LOG_FILE, in the
// literal "<iso8601> | RESTART | ..." format spec'd for that file. It
// also runs an in-process broker so other components (a future
// dashboard, for instance) can subscribe to
// every kind of event, restart or not, without re-reading the file.
package eventlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the category of a recorded event.
type Kind string

const (
	KindRestart     Kind = "restart"
	KindStagnation  Kind = "stagnation_alert"
	KindCommand     Kind = "chat_command"
	KindStartup     Kind = "startup"
	KindProbeError  Kind = "reputation_probe_error"
)

// Event is one append-only log record.
type Event struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Container string            `json:"container,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Subscriber is a channel that receives events as they're written.
type Subscriber chan Event

// Log is an append-only, fan-out event sink. Writes happen on the
// caller's goroutine (the supervisor tick loop is single-threaded by
// design, so there is no contention on the file), broadcast to
// subscribers happens asynchronously.
type Log struct {
	path string

	mu          sync.Mutex
	file        *os.File
	subscribers map[Subscriber]bool
	subMu       sync.RWMutex
}

// Open opens (creating if necessary) the append-only log file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log %s: %w", path, err)
	}
	return &Log{
		path:        path,
		file:        f,
		subscribers: make(map[Subscriber]bool),
	}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Append fans e out to subscribers, and, if e.Kind is KindRestart,
// writes e.Message verbatim as one line to WATCHER_LOG_FILE — the
// caller builds that message in the literal
// "<iso8601> | RESTART | Container: ... | Reason: ... | Details: ... | Logfile: ..."
// format the on-disk log requires. Other kinds are broadcast only:
// WATCHER_LOG_FILE records one line per restart, nothing else.
// Append assigns ID and Timestamp if they are unset.
func (l *Log) Append(e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if e.Kind == KindRestart {
		line := e.Message
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}

		l.mu.Lock()
		_, err := l.file.Write([]byte(line))
		l.mu.Unlock()
		if err != nil {
			return fmt.Errorf("writing event to %s: %w", l.path, err)
		}
	}

	l.broadcast(e)
	return nil
}

// Subscribe returns a channel that receives every event appended from
// this point forward. The caller must Unsubscribe when done.
func (l *Log) Subscribe() Subscriber {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	sub := make(Subscriber, 32)
	l.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (l *Log) Unsubscribe(sub Subscriber) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if l.subscribers[sub] {
		delete(l.subscribers, sub)
		close(sub)
	}
}

func (l *Log) broadcast(e Event) {
	l.subMu.RLock()
	defer l.subMu.RUnlock()
	for sub := range l.subscribers {
		select {
		case sub <- e:
		default:
			// Subscriber buffer full; drop rather than block the
			// supervisor loop.
		}
	}
}
