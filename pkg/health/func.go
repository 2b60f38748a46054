package health

import (
	"context"
	"time"
)

// FuncChecker adapts an arbitrary probe function to the Checker
// interface, for checks that aren't HTTP requests (a Docker daemon
// ping, a reputation API reachability probe expressed as a closure).
type FuncChecker struct {
	name  string
	probe func(ctx context.Context) error
}

// NewFuncChecker builds a Checker around probe.
func NewFuncChecker(name string, probe func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, probe: probe}
}

// Check runs the probe function and times it.
func (f *FuncChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := f.probe(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   f.name + ": " + err.Error(),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   f.name + ": ok",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type reports this as an exec-style check: an arbitrary local probe.
func (f *FuncChecker) Type() CheckType {
	return CheckTypeExec
}
