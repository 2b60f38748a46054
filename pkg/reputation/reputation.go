// Package reputation polls the external node-reputation API and
// decides, per address, whether recent precommit/commit failures
// exceed the configured threshold.
package reputation

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/metrics"
)

// Stage is one of the two consensus stages the API reports on.
type Stage struct {
	AllTimestamps     []string `json:"all_timestamps"`
	SuccessTimestamps []string `json:"success_timestamps"`
}

// response is the JSON body returned by the reputation API for one address.
type response struct {
	Precommit Stage `json:"precommit"`
	Commit    Stage `json:"commit"`
}

// StageResult is the per-stage failure count the supervisor checks
// against reputation_failure_threshold.
type StageResult struct {
	Stage  string
	Failed int
}

// ErrNoData means the API returned 404 for this address: a documented
// "nothing known about this node yet" signal, not a failure.
var ErrNoData = fmt.Errorf("reputation: no data for address")

// Prober queries the reputation API.
type Prober struct {
	client *resty.Client
	window int
}

// New builds a Prober against baseURL with the given recent-window size.
func New(baseURL string, window int) *Prober {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &Prober{client: client, window: window}
}

// Check fetches the reputation record for address and returns the
// failure count for each stage, precommit first. The supervisor stops
// at the first stage whose failure count crosses the threshold, so
// order matters.
func (p *Prober) Check(address string) ([]StageResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReputationProbeDuration)

	var body response
	resp, err := p.client.R().
		SetResult(&body).
		Get("/" + address)
	if err != nil {
		metrics.ReputationProbeErrorsTotal.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("fetching reputation for %s: %w", address, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNoData
	}
	if resp.IsError() {
		metrics.ReputationProbeErrorsTotal.WithLabelValues("http_status").Inc()
		return nil, fmt.Errorf("reputation API returned %s for %s", resp.Status(), address)
	}

	return []StageResult{
		{Stage: "precommit", Failed: p.countFailures(body.Precommit)},
		{Stage: "commit", Failed: p.countFailures(body.Commit)},
	}, nil
}

func (p *Prober) countFailures(s Stage) int {
	recent := s.AllTimestamps
	if len(recent) > p.window {
		recent = recent[len(recent)-p.window:]
	}

	succeeded := make(map[string]bool, len(s.SuccessTimestamps))
	for _, ts := range s.SuccessTimestamps {
		succeeded[ts] = true
	}

	failed := 0
	for _, ts := range recent {
		if !succeeded[ts] {
			failed++
		}
	}
	return failed
}
