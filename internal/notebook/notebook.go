// Package notebook implements a minimal nbformat v4 document model:
// enough to load a notebook, replace cell sources, attach execution
// outputs, and write the result back out.
package notebook

import (
	"encoding/json"
	"strings"
)

// Cell type constants as defined by nbformat.
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Notebook is an nbformat v4 document. Cell order is significant and is
// preserved across load, transformation, and save.
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Cell is a single notebook cell. Outputs and ExecutionCount are only
// meaningful for code cells; MarshalJSON keeps them out of markdown and
// raw cells so round-tripped documents stay valid.
type Cell struct {
	CellType       string         `json:"cell_type"`
	Source         Source         `json:"source"`
	Metadata       map[string]any `json:"metadata"`
	Outputs        []Output       `json:"outputs"`
	ExecutionCount *int           `json:"execution_count"`
}

// cellJSON mirrors Cell for decoding; encoding goes through MarshalJSON.
type cellJSON struct {
	CellType       string         `json:"cell_type"`
	Source         Source         `json:"source"`
	Metadata       map[string]any `json:"metadata"`
	Outputs        []Output       `json:"outputs,omitempty"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
}

// UnmarshalJSON decodes a cell, tolerating absent metadata/outputs.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw cellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.CellType = raw.CellType
	c.Source = raw.Source
	c.Metadata = raw.Metadata
	c.Outputs = raw.Outputs
	c.ExecutionCount = raw.ExecutionCount
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return nil
}

// MarshalJSON encodes the cell. Code cells always carry "outputs" and
// "execution_count" keys (empty array / null when unset), as nbformat
// requires; other cell types omit them.
func (c Cell) MarshalJSON() ([]byte, error) {
	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if c.CellType != CellTypeCode {
		return json.Marshal(cellJSON{
			CellType: c.CellType,
			Source:   c.Source,
			Metadata: meta,
		})
	}
	outputs := c.Outputs
	if outputs == nil {
		outputs = []Output{}
	}
	return json.Marshal(struct {
		CellType       string         `json:"cell_type"`
		Source         Source         `json:"source"`
		Metadata       map[string]any `json:"metadata"`
		Outputs        []Output       `json:"outputs"`
		ExecutionCount *int           `json:"execution_count"`
	}{c.CellType, c.Source, meta, outputs, c.ExecutionCount})
}

// IsCode reports whether the cell is a code cell.
func (c *Cell) IsCode() bool {
	return c.CellType == CellTypeCode
}

// Source holds a cell's source as nbformat line fragments (each fragment
// keeps its trailing newline except possibly the last). Notebooks in the
// wild store source either as a single string or as an array of strings;
// both decode into the array form, and encoding always emits the array.
type Source []string

// UnmarshalJSON accepts both the string and string-array encodings.
func (s *Source) UnmarshalJSON(data []byte) error {
	var lines []string
	if err := json.Unmarshal(data, &lines); err == nil {
		*s = lines
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*s = FromText(text)
	return nil
}

// MarshalJSON always emits the array-of-lines encoding.
func (s Source) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Text returns the source as one string.
func (s Source) Text() string {
	return strings.Join(s, "")
}

// Lines returns the logical lines of the source with newlines stripped.
// A trailing empty line produced by a final newline is dropped.
func (s Source) Lines() []string {
	text := s.Text()
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// FromText splits text into nbformat line fragments, preserving newlines.
func FromText(text string) Source {
	if text == "" {
		return Source{}
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return Source(parts)
}

// Output is a single cell output. The populated fields depend on
// OutputType: stream uses Name/Text, execute_result and display_data use
// Data/Metadata, error uses Ename/Evalue/Traceback.
type Output struct {
	OutputType     string         `json:"output_type"`
	Name           string         `json:"name,omitempty"`
	Text           Source         `json:"text,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Ename          string         `json:"ename,omitempty"`
	Evalue         string         `json:"evalue,omitempty"`
	Traceback      []string       `json:"traceback,omitempty"`
}

// Output type constants as defined by nbformat.
const (
	OutputTypeStream        = "stream"
	OutputTypeExecuteResult = "execute_result"
	OutputTypeDisplayData   = "display_data"
	OutputTypeError         = "error"
)
