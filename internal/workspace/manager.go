package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of the workspace backing one notebook test.
type State int

const (
	StateUnset State = iota
	StateAdopted
	StateCreated
	StateCreateFailed
	StateInUse
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateAdopted:
		return "adopted"
	case StateCreated:
		return "created"
	case StateCreateFailed:
		return "create_failed"
	case StateInUse:
		return "in_use"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Manager drives the workspace lifecycle for exactly one notebook test.
// An externally supplied workspace id is adopted and never deleted; an
// ephemeral workspace is created per test and deleted exactly once on
// every exit path.
type Manager struct {
	api       API
	adoptedID string
	logger    *zap.Logger
	now       func() time.Time

	state State
	ws    *Workspace
	torn  bool
}

// NewManager creates a lifecycle manager. A non-empty adoptedID selects
// adopted mode.
func NewManager(api API, adoptedID string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{api: api, adoptedID: adoptedID, logger: logger, now: time.Now}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Acquire obtains the workspace for the given notebook: the adopted one
// when configured, otherwise a freshly created workspace named
// test-{notebook-name}-{timestamp}. On creation failure the manager
// enters CreateFailed and no further workspace operations are valid.
func (m *Manager) Acquire(ctx context.Context, notebookPath string) (string, error) {
	if m.state != StateUnset {
		return "", fmt.Errorf("workspace already acquired (state %s)", m.state)
	}

	if m.adoptedID != "" {
		m.state = StateAdopted
		m.logger.Info("adopted existing workspace", zap.String("workspace_id", m.adoptedID))
		return m.adoptedID, nil
	}

	name := workspaceName(notebookPath, m.now())
	ws, err := m.api.Create(ctx, name, fmt.Sprintf("ephemeral workspace for %s", filepath.Base(notebookPath)))
	if err != nil {
		m.state = StateCreateFailed
		return "", fmt.Errorf("failed to create workspace %q: %w", name, err)
	}

	m.state = StateCreated
	m.ws = ws
	m.logger.Info("created workspace",
		zap.String("workspace_id", ws.ID),
		zap.String("name", name))
	return ws.ID, nil
}

// MarkInUse records that the executor is running against the workspace.
func (m *Manager) MarkInUse() {
	if m.state == StateCreated || m.state == StateAdopted {
		m.state = StateInUse
	}
}

// Teardown releases the workspace. A created workspace is deleted; an
// adopted one is left alone. Calling Teardown more than once is a no-op
// after the first call, so it is safe to defer unconditionally. A delete
// failure is logged and returned but must not overturn the test outcome;
// callers record it separately.
func (m *Manager) Teardown(ctx context.Context) error {
	if m.torn {
		return nil
	}
	m.torn = true

	created := m.ws != nil && (m.state == StateCreated || m.state == StateInUse)
	prev := m.state
	m.state = StateTornDown

	if !created {
		if m.adoptedID != "" && prev != StateCreateFailed {
			m.logger.Debug("leaving adopted workspace in place", zap.String("workspace_id", m.adoptedID))
		}
		return nil
	}

	if err := m.api.Delete(ctx, m.ws.ID); err != nil {
		m.logger.Warn("workspace cleanup failed",
			zap.String("workspace_id", m.ws.ID),
			zap.Error(err))
		return fmt.Errorf("failed to delete workspace %s: %w", m.ws.ID, err)
	}

	m.logger.Info("deleted workspace", zap.String("workspace_id", m.ws.ID))
	return nil
}

// workspaceName derives the deterministic ephemeral workspace name from
// the notebook file name and a timestamp.
func workspaceName(notebookPath string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(notebookPath), filepath.Ext(notebookPath))
	return fmt.Sprintf("test-%s-%s", base, now.UTC().Format("20060102-150405"))
}
