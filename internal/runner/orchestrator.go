package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"nbrunner/internal/config"
	"nbrunner/internal/executor"
	"nbrunner/internal/notebook"
	"nbrunner/internal/report"
	"nbrunner/internal/rewrite"
	"nbrunner/internal/workspace"
)

// Kernels provisions a fresh execution session per notebook test.
type Kernels interface {
	NewSession(ctx context.Context) (executor.Session, error)
}

// Workspaces provisions a lifecycle manager per notebook test.
type Workspaces interface {
	NewManager() *workspace.Manager
}

// Orchestrator runs the whole suite: discovery, per-notebook rewrite,
// workspace lifecycle, execution, and reporting. Notebooks are
// processed strictly one at a time; the report is only ever appended to
// between notebook runs.
type Orchestrator struct {
	cfg        *config.Config
	kernels    Kernels
	workspaces Workspaces
	exec       *executor.Executor
	progress   *report.ProgressLogger
	logger     *zap.Logger
}

// New creates an orchestrator.
func New(cfg *config.Config, kernels Kernels, workspaces Workspaces, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		kernels:    kernels,
		workspaces: workspaces,
		exec:       executor.New(cfg.Timeout, logger),
		progress:   report.NewProgressLogger(cfg.ResultsDir),
		logger:     logger,
	}
}

// Run processes every discovered notebook and returns the finalized
// report. A notebook's failure never terminates the run; only
// discovery or report-writing problems surface as the returned error.
func (o *Orchestrator) Run(ctx context.Context) (*report.Report, error) {
	entries, err := Discover(o.cfg.NotebookRoot, o.cfg.SkipList)
	if err != nil {
		return nil, err
	}

	mode := "ephemeral"
	if o.cfg.WorkspaceID != "" {
		mode = "adopted"
	}
	rep := report.New(mode)
	started := time.Now()

	o.noteProgress(o.progress.RunStarted(len(entries), mode))

	for _, entry := range entries {
		if entry.Skipped {
			o.logger.Info("skipping notebook", zap.String("notebook", entry.Path))
			rep.Add(report.Result{Notebook: entry.Path, Outcome: report.OutcomeSkipped})
			o.noteProgress(o.progress.NotebookSkipped(entry.Path))
			continue
		}

		o.noteProgress(o.progress.NotebookStarted(entry.Path))
		res := o.runNotebook(ctx, entry.Path)
		rep.Add(res)
		o.noteProgress(o.progress.NotebookResult(res))
		if res.CleanupError != "" {
			o.noteProgress(o.progress.CleanupFailed(entry.Path, res.CleanupError))
		}
	}

	rep.Finalize()
	if err := rep.Save(o.cfg.ResultsDir); err != nil {
		return rep, err
	}
	o.noteProgress(o.progress.RunCompleted(rep.Counts, time.Since(started)))
	return rep, nil
}

// noteProgress logs a progress-log write failure. The progress log is
// advisory; a write failure never affects the run.
func (o *Orchestrator) noteProgress(err error) {
	if err != nil {
		o.logger.Warn("failed to write progress log", zap.Error(err))
	}
}

// runNotebook executes one notebook test end to end. Every failure is
// converted into the result; nothing escapes as an error.
func (o *Orchestrator) runNotebook(ctx context.Context, path string) (res report.Result) {
	res = report.Result{Notebook: path}
	started := time.Now()
	defer func() {
		res.ElapsedMS = time.Since(started).Milliseconds()
	}()

	log := o.logger.With(zap.String("notebook", path))
	log.Info("testing notebook")

	nb, err := notebook.Load(path)
	if err != nil {
		res.Outcome = report.OutcomeError
		res.Detail = err.Error()
		return res
	}

	// Rewrite steps run before any workspace is touched; a fatal error
	// here must not leak remote resources.
	authIdx, err := rewrite.FindAuthCell(nb, o.cfg.Rules)
	if err != nil {
		res.Outcome = report.OutcomeError
		res.Detail = err.Error()
		return res
	}
	spec := rewrite.Extract(nb.Cells[authIdx].Source.Lines(), o.cfg.Rules)

	mgr := o.workspaces.NewManager()
	wsID, err := mgr.Acquire(ctx, path)
	if err != nil {
		res.Outcome = report.OutcomeError
		res.Detail = err.Error()
		return res
	}
	// Teardown on every exit path from here on; cleanup failures are
	// reported separately and never change the outcome.
	defer func() {
		if cerr := mgr.Teardown(context.WithoutCancel(ctx)); cerr != nil {
			res.CleanupError = cerr.Error()
		}
	}()

	nb.Cells[authIdx] = rewrite.BuildAuthCell(spec, o.cfg.Bundle(wsID), o.cfg.Rules)

	// The modified notebook is saved for inspection no matter how the
	// test ends, with whatever outputs were captured before a failure.
	savedPath := o.debugPath(path)
	defer func() {
		if serr := notebook.Save(savedPath, nb); serr != nil {
			log.Warn("failed to save debug notebook", zap.Error(serr))
		} else {
			res.SavedPath = savedPath
		}
	}()

	sess, err := o.kernels.NewSession(ctx)
	if err != nil {
		res.Outcome = report.OutcomeError
		res.Detail = fmt.Sprintf("failed to start kernel: %v", err)
		return res
	}
	defer sess.Close()

	mgr.MarkInUse()
	execErr := o.exec.Run(ctx, nb, sess)

	switch {
	case execErr == nil:
		res.Outcome = report.OutcomePass
	case isCellError(execErr):
		var cellErr *executor.CellError
		errors.As(execErr, &cellErr)
		res.Outcome = report.OutcomeFail
		res.FailedCell = &cellErr.Index
		res.Detail = cellErr.Error()
	case errors.Is(execErr, executor.ErrTimeout):
		res.Outcome = report.OutcomeFail
		res.Detail = execErr.Error()
	default:
		res.Outcome = report.OutcomeError
		res.Detail = execErr.Error()
	}
	return res
}

func isCellError(err error) bool {
	var cellErr *executor.CellError
	return errors.As(err, &cellErr)
}

// debugPath places the modified notebook in a per-notebook directory
// under the results dir, mirroring the notebook's location under the
// root so same-named notebooks in different directories never collide:
// results/<subdirs>/<name>/<name>.ipynb.
func (o *Orchestrator) debugPath(path string) string {
	rel, err := filepath.Rel(o.cfg.NotebookRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	return filepath.Join(o.cfg.ResultsDir, filepath.Dir(rel), name, filepath.Base(rel))
}
