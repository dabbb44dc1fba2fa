// Package executor runs a rewritten notebook's code cells in document
// order against a fresh kernel session, under one wall-clock budget for
// the whole notebook.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nbrunner/internal/kernel"
	"nbrunner/internal/notebook"
)

// Session is the execution capability the executor drives. Satisfied by
// *kernel.Session; tests substitute fakes.
type Session interface {
	Execute(ctx context.Context, code string) ([]notebook.Output, error)
	Close() error
}

// ErrTimeout marks a notebook that exceeded its wall-clock budget.
// Reported as a failure, like a cell error.
var ErrTimeout = errors.New("notebook execution timed out")

// CellError is an uncaught error raised by a specific cell. Execution
// stops at that cell; earlier outputs are kept on the notebook.
type CellError struct {
	Index  int
	Ename  string
	Evalue string
}

func (e *CellError) Error() string {
	if e.Evalue == "" {
		return fmt.Sprintf("cell %d raised %s", e.Index, e.Ename)
	}
	return fmt.Sprintf("cell %d raised %s: %s", e.Index, e.Ename, e.Evalue)
}

// Executor executes notebooks.
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an executor with the given per-notebook timeout.
func New(timeout time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{timeout: timeout, logger: logger}
}

// Run executes all code cells in order, attaching outputs and execution
// counts to the notebook in place. It returns nil when every cell
// completed, a *CellError when a cell raised, or an error wrapping
// ErrTimeout when the budget elapsed. Non-code cells are skipped but
// never reordered. The caller is responsible for persisting the
// notebook afterwards regardless of the outcome.
func (e *Executor) Run(ctx context.Context, nb *notebook.Notebook, sess Session) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	execCount := 0
	for i := range nb.Cells {
		cell := &nb.Cells[i]
		if !cell.IsCode() {
			continue
		}

		execCount++
		count := execCount
		started := time.Now()
		outputs, err := sess.Execute(ctx, cell.Source.Text())

		cell.Outputs = outputs
		cell.ExecutionCount = &count

		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				e.logger.Warn("notebook timed out",
					zap.Int("cell", i),
					zap.Duration("timeout", e.timeout))
				return fmt.Errorf("%w after %s (in cell %d)", ErrTimeout, e.timeout, i)
			}

			var execErr *kernel.ExecError
			if errors.As(err, &execErr) {
				e.logger.Info("cell raised",
					zap.Int("cell", i),
					zap.String("ename", execErr.Ename))
				return &CellError{Index: i, Ename: execErr.Ename, Evalue: execErr.Evalue}
			}
			return fmt.Errorf("cell %d execution failed: %w", i, err)
		}

		e.logger.Debug("cell completed",
			zap.Int("cell", i),
			zap.Duration("elapsed", time.Since(started)))
	}

	return nil
}
