package rewrite

import (
	"errors"
	"strings"

	"nbrunner/internal/notebook"
)

// ErrAuthCellNotFound indicates no code cell matched any marker token.
// Fatal for the notebook it was raised for; the run continues.
var ErrAuthCellNotFound = errors.New("no cell containing an interactive auth marker was found")

// FindAuthCell scans code cells in document order and returns the index
// of the first one whose source contains any marker token. Read-only.
func FindAuthCell(nb *notebook.Notebook, rules Rules) (int, error) {
	for i := range nb.Cells {
		cell := &nb.Cells[i]
		if !cell.IsCode() {
			continue
		}
		if containsMarker(cell.Source.Text(), rules.Markers) {
			return i, nil
		}
	}
	return -1, ErrAuthCellNotFound
}

func containsMarker(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
