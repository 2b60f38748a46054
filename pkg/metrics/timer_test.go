package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
}

func TestTimer_Duration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	d := timer.Duration()
	if d < 10*time.Millisecond {
		t.Errorf("Duration() = %v, want >= 10ms", d)
	}
}

func TestTimer_ObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_watcher_duration_seconds",
		Help:    "test histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	if timer.Duration() == 0 {
		t.Error("Duration() reported zero after ObserveDuration")
	}
}
