package rewrite

import (
	"regexp"
	"strings"
)

// AuthCellSpec is the decomposition of the original auth cell: the lines
// worth carrying into the rewritten cell, in their original order, and
// the index of the first marker line.
type AuthCellSpec struct {
	// Imports are the preserved import lines.
	Imports []string

	// Assignments are the preserved allow-listed assignment lines.
	Assignments []string

	// MarkerIndex is the line index at which authentication code begins,
	// or -1 if no marker line was present.
	MarkerIndex int
}

// assignmentRe matches a simple "name = value" statement and captures
// the target name. Compound targets and augmented assignments do not
// match, which is intentional: only trivially side-effect-free setup
// lines are candidates for preservation.
var assignmentRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=[^=]`)

// Extract scans the auth cell's lines top to bottom and classifies each
// as a preserved import, a preserved assignment, or discardable.
//
// The first line containing a marker token ends the scan; everything
// from that line on is discarded and recreated by the builder. The gate
// is positional, not semantic: an allow-listed assignment after the
// marker is NOT preserved, because once authentication code starts,
// nothing after it is trusted to be side-effect-free boilerplate.
// Unrecognized lines before the marker are silently dropped; extraction
// is best-effort by design.
func Extract(lines []string, rules Rules) AuthCellSpec {
	spec := AuthCellSpec{MarkerIndex: -1}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if containsMarker(line, rules.Markers) {
			spec.MarkerIndex = i
			break
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case isImportLine(trimmed):
			stmt, consumed := importStatement(lines, i)
			spec.Imports = append(spec.Imports, stmt)
			i += consumed - 1
		case isAllowedAssignment(trimmed, rules.PreservedAssignments):
			spec.Assignments = append(spec.Assignments, line)
		}
	}

	return spec
}

// importStatement collects an import together with its continuation
// lines. A line continues the statement while it ends with a backslash
// or an opened parenthesis is still unbalanced, so parenthesized
// from-import lists survive intact. Returns the joined statement and
// the number of physical lines it spans.
func importStatement(lines []string, start int) (string, int) {
	line := lines[start]
	stmt := []string{line}
	depth := strings.Count(line, "(") - strings.Count(line, ")")

	i := start
	for i+1 < len(lines) && (strings.HasSuffix(strings.TrimRight(line, " \t"), `\`) || depth > 0) {
		i++
		line = lines[i]
		stmt = append(stmt, line)
		depth += strings.Count(line, "(") - strings.Count(line, ")")
	}
	return strings.Join(stmt, "\n"), i - start + 1
}

// isImportLine recognizes the two Python import forms, including
// aliased variants. This is a line heuristic, not a grammar.
func isImportLine(line string) bool {
	if strings.HasPrefix(line, "import ") {
		return true
	}
	if strings.HasPrefix(line, "from ") && strings.Contains(line, " import ") {
		return true
	}
	return false
}

func isAllowedAssignment(line string, allowed []string) bool {
	m := assignmentRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	for _, name := range allowed {
		if m[1] == name {
			return true
		}
	}
	return false
}
