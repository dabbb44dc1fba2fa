package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const progressLogFileName = "progress.log"

// Event type constants for progress logging.
const (
	EventRunStarted      = "run_started"
	EventRunCompleted    = "run_completed"
	EventNotebookStarted = "notebook_started"
	EventNotebookResult  = "notebook_result"
	EventNotebookSkipped = "notebook_skipped"
	EventCleanupFailed   = "cleanup_failed"
)

// ProgressEvent represents a single progress log entry.
type ProgressEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
}

// ProgressLogger appends run events to a JSON Lines file, giving CI a
// live view of a run before the final report exists.
type ProgressLogger struct {
	path string
}

// NewProgressLogger creates a progress logger under the results directory.
func NewProgressLogger(resultsDir string) *ProgressLogger {
	return &ProgressLogger{
		path: filepath.Join(resultsDir, progressLogFileName),
	}
}

// Log appends a progress event to the log file.
func (p *ProgressLogger) Log(event string, data map[string]any) error {
	entry := ProgressEvent{
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// RunStarted logs a run_started event.
func (p *ProgressLogger) RunStarted(total int, workspaceMode string) error {
	return p.Log(EventRunStarted, map[string]any{
		"notebooks":      total,
		"workspace_mode": workspaceMode,
	})
}

// NotebookStarted logs a notebook_started event.
func (p *ProgressLogger) NotebookStarted(path string) error {
	return p.Log(EventNotebookStarted, map[string]any{
		"notebook": path,
	})
}

// NotebookResult logs a notebook_result event.
func (p *ProgressLogger) NotebookResult(res Result) error {
	data := map[string]any{
		"notebook":   res.Notebook,
		"outcome":    string(res.Outcome),
		"elapsed_ms": res.ElapsedMS,
	}
	if res.Detail != "" {
		data["detail"] = res.Detail
	}
	return p.Log(EventNotebookResult, data)
}

// NotebookSkipped logs a notebook_skipped event.
func (p *ProgressLogger) NotebookSkipped(path string) error {
	return p.Log(EventNotebookSkipped, map[string]any{
		"notebook": path,
	})
}

// CleanupFailed logs a cleanup_failed event.
func (p *ProgressLogger) CleanupFailed(path, detail string) error {
	return p.Log(EventCleanupFailed, map[string]any{
		"notebook": path,
		"detail":   detail,
	})
}

// RunCompleted logs a run_completed event with the aggregate counts.
func (p *ProgressLogger) RunCompleted(counts Counts, duration time.Duration) error {
	return p.Log(EventRunCompleted, map[string]any{
		"pass":        counts.Pass,
		"fail":        counts.Fail,
		"error":       counts.Error,
		"skipped":     counts.Skipped,
		"duration_ms": duration.Milliseconds(),
	})
}
