// Package report collects per-notebook results into a run report and
// renders the artifacts: report.json, a JSON Lines progress log, and
// the console summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Outcome classifies one notebook test.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Result is the record for one notebook.
type Result struct {
	Notebook   string  `json:"notebook"`
	Outcome    Outcome `json:"outcome"`
	FailedCell *int    `json:"failedCell,omitempty"`
	Detail     string  `json:"detail,omitempty"`
	ElapsedMS  int64   `json:"elapsedMs"`
	SavedPath  string  `json:"savedPath,omitempty"`

	// CleanupError records a failed workspace teardown. It never
	// changes the outcome.
	CleanupError string `json:"cleanupError,omitempty"`
}

// Counts aggregates outcomes for a run.
type Counts struct {
	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
}

// Report is one orchestrator run. Results keep discovery order.
type Report struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Workspace  string    `json:"workspaceMode"`
	Results    []Result  `json:"results"`
	Counts     Counts    `json:"counts"`
}

// New starts a report. workspaceMode is "adopted" or "ephemeral".
func New(workspaceMode string) *Report {
	return &Report{StartedAt: time.Now().UTC(), Workspace: workspaceMode}
}

// Add appends a result and updates the aggregate counts.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomePass:
		r.Counts.Pass++
	case OutcomeFail:
		r.Counts.Fail++
	case OutcomeError:
		r.Counts.Error++
	case OutcomeSkipped:
		r.Counts.Skipped++
	}
}

// Finalize stamps the end of the run.
func (r *Report) Finalize() {
	r.FinishedAt = time.Now().UTC()
}

// Failed reports whether any non-skipped notebook did not pass.
// Skipped notebooks never affect this.
func (r *Report) Failed() bool {
	return r.Counts.Fail > 0 || r.Counts.Error > 0
}

// Save atomically writes report.json into dir.
func (r *Report) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, "report.json")
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
