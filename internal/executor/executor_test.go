package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"nbrunner/internal/kernel"
	"nbrunner/internal/notebook"
)

// fakeSession scripts per-cell results. A script entry with err set
// fails that cell; block makes the call wait for context cancellation.
type fakeSession struct {
	script []fakeResult
	calls  []string
	closed bool
}

type fakeResult struct {
	outputs []notebook.Output
	err     error
	block   bool
}

func (f *fakeSession) Execute(ctx context.Context, code string) ([]notebook.Output, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, code)
	if idx >= len(f.script) {
		return nil, nil
	}
	step := f.script[idx]
	if step.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return step.outputs, step.err
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func codeNB(sources ...string) *notebook.Notebook {
	nb := &notebook.Notebook{NBFormat: 4}
	for _, src := range sources {
		nb.Cells = append(nb.Cells, notebook.Cell{
			CellType: notebook.CellTypeCode,
			Source:   notebook.FromText(src),
		})
	}
	return nb
}

func stdout(text string) []notebook.Output {
	return []notebook.Output{{OutputType: notebook.OutputTypeStream, Name: "stdout", Text: notebook.FromText(text)}}
}

func TestRun(t *testing.T) {
	t.Run("all cells pass in document order", func(t *testing.T) {
		nb := codeNB("a()", "b()", "c()")
		sess := &fakeSession{script: []fakeResult{
			{outputs: stdout("a")},
			{outputs: stdout("b")},
			{outputs: stdout("c")},
		}}

		exec := New(time.Minute, nil)
		if err := exec.Run(context.Background(), nb, sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sess.calls) != 3 || sess.calls[0] != "a()" || sess.calls[2] != "c()" {
			t.Errorf("calls: %#v", sess.calls)
		}
		for i := range nb.Cells {
			if nb.Cells[i].ExecutionCount == nil || *nb.Cells[i].ExecutionCount != i+1 {
				t.Errorf("cell %d execution count: %v", i, nb.Cells[i].ExecutionCount)
			}
		}
		if nb.Cells[1].Outputs[0].Text.Text() != "b" {
			t.Errorf("outputs not attached: %#v", nb.Cells[1].Outputs)
		}
	})

	t.Run("non-code cells are skipped", func(t *testing.T) {
		nb := &notebook.Notebook{Cells: []notebook.Cell{
			{CellType: notebook.CellTypeMarkdown, Source: notebook.FromText("# doc")},
			{CellType: notebook.CellTypeCode, Source: notebook.FromText("x()")},
		}}
		sess := &fakeSession{}

		if err := New(time.Minute, nil).Run(context.Background(), nb, sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sess.calls) != 1 || sess.calls[0] != "x()" {
			t.Errorf("calls: %#v", sess.calls)
		}
		if nb.Cells[0].ExecutionCount != nil {
			t.Error("markdown cell should not get an execution count")
		}
	})

	t.Run("cell error stops execution and reports the index", func(t *testing.T) {
		nb := codeNB("a()", "b()", "c()", "d()")
		sess := &fakeSession{script: []fakeResult{
			{outputs: stdout("a")},
			{outputs: stdout("b")},
			{
				outputs: []notebook.Output{{OutputType: notebook.OutputTypeError, Ename: "ValueError"}},
				err:     &kernel.ExecError{Ename: "ValueError", Evalue: "boom"},
			},
		}}

		err := New(time.Minute, nil).Run(context.Background(), nb, sess)
		var cellErr *CellError
		if !errors.As(err, &cellErr) {
			t.Fatalf("expected CellError, got %v", err)
		}
		if cellErr.Index != 2 || cellErr.Ename != "ValueError" {
			t.Errorf("cell error: %+v", cellErr)
		}
		if len(sess.calls) != 3 {
			t.Errorf("execution should stop at the failing cell, calls: %#v", sess.calls)
		}
		// Outputs from earlier cells stay intact for the debug artifact.
		if nb.Cells[0].Outputs[0].Text.Text() != "a" || nb.Cells[1].Outputs[0].Text.Text() != "b" {
			t.Errorf("earlier outputs lost")
		}
		if nb.Cells[2].Outputs[0].OutputType != notebook.OutputTypeError {
			t.Errorf("failing cell should carry its error output")
		}
	})

	t.Run("timeout reported via ErrTimeout", func(t *testing.T) {
		nb := codeNB("fast()", "slow()")
		sess := &fakeSession{script: []fakeResult{
			{outputs: stdout("ok")},
			{block: true},
		}}

		err := New(50*time.Millisecond, nil).Run(context.Background(), nb, sess)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if nb.Cells[0].Outputs == nil {
			t.Error("completed cell outputs should be kept on timeout")
		}
	})

	t.Run("transport failure is neither CellError nor timeout", func(t *testing.T) {
		nb := codeNB("a()")
		sess := &fakeSession{script: []fakeResult{
			{err: errors.New("kernel connection lost")},
		}}

		err := New(time.Minute, nil).Run(context.Background(), nb, sess)
		if err == nil {
			t.Fatal("expected error")
		}
		var cellErr *CellError
		if errors.As(err, &cellErr) || errors.Is(err, ErrTimeout) {
			t.Errorf("transport failure misclassified: %v", err)
		}
	})
}

func TestCellErrorMessage(t *testing.T) {
	e := &CellError{Index: 3, Ename: "ValueError", Evalue: "bad"}
	if e.Error() != "cell 3 raised ValueError: bad" {
		t.Errorf("got %q", e.Error())
	}
}
