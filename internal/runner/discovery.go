// Package runner is the test orchestrator: it discovers notebooks,
// drives rewrite → workspace → execution per notebook, and aggregates
// results into the run report.
package runner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

const checkpointsDir = ".ipynb_checkpoints"

// Entry is one discovered notebook, in walk order.
type Entry struct {
	Path    string
	Skipped bool
}

// Discover walks root for .ipynb files, marking those whose base name
// appears on the skip list. Checkpoint directories are ignored
// entirely. Order is the deterministic lexical walk order.
func Discover(root string, skipList []string) ([]Entry, error) {
	skip := make(map[string]bool, len(skipList))
	for _, name := range skipList {
		skip[name] = true
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == checkpointsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".ipynb") {
			return nil
		}
		entries = append(entries, Entry{Path: path, Skipped: skip[d.Name()]})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover notebooks under %s: %w", root, err)
	}
	return entries, nil
}
