package complexity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FunctionRecord is the complexity score of a single function or method.
type FunctionRecord struct {
	// Name is "func" for module-level functions and "Class.method" for methods.
	Name       string `json:"name" yaml:"name" toon:"name"`
	Complexity int    `json:"complexity" yaml:"complexity" toon:"complexity"`
	StartLine  uint32 `json:"start_line" yaml:"start_line" toon:"start_line"`
	EndLine    uint32 `json:"end_line" yaml:"end_line" toon:"end_line"`
}

// FileReport lists the functions of one source unit in source order.
type FileReport []FunctionRecord

// AggregateReport maps file paths to their reports.
type AggregateReport struct {
	Files map[string]FileReport `json:"files" yaml:"files" toon:"files"`
	// Failures is only populated under PolicyIsolate.
	Failures map[string]string `json:"failures,omitempty" yaml:"failures,omitempty" toon:"failures,omitempty"`
}

// NewAggregateReport returns an empty report.
func NewAggregateReport() *AggregateReport {
	return &AggregateReport{
		Files:    make(map[string]FileReport),
		Failures: make(map[string]string),
	}
}

// Paths returns the analyzed file paths in lexical order.
func (a *AggregateReport) Paths() []string {
	paths := make([]string, 0, len(a.Files))
	for p := range a.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FailedPaths returns the paths recorded in Failures in lexical order.
func (a *AggregateReport) FailedPaths() []string {
	paths := make([]string, 0, len(a.Failures))
	for p := range a.Failures {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Scores returns every function score across all files.
func (a *AggregateReport) Scores() []int {
	var scores []int
	for _, fr := range a.Files {
		for _, rec := range fr {
			scores = append(scores, rec.Complexity)
		}
	}
	return scores
}

// ErrorPolicy selects how the pipeline reacts to a failing file.
type ErrorPolicy string

const (
	// PolicyAbort stops the run on the first failure and discards all results.
	PolicyAbort ErrorPolicy = "abort"
	// PolicyIsolate records failures per file and keeps the other results.
	PolicyIsolate ErrorPolicy = "isolate"
)

// ParseErrorPolicy converts a string to an ErrorPolicy.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return PolicyAbort, nil
	case "isolate":
		return PolicyIsolate, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (want abort or isolate)", s)
	}
}

var (
	// ErrIO marks failures to open or read a source file.
	ErrIO = errors.New("i/o failure")
	// ErrStructural marks a definition node without the expected identifier child.
	ErrStructural = errors.New("structural assumption violation")
)

// StructuralError describes a definition node whose second child is not an identifier.
type StructuralError struct {
	Kind string // kind of the definition node
	Got  string // kind found at child index 1, or "" when missing
	Line uint32
}

func (e *StructuralError) Error() string {
	got := e.Got
	if got == "" {
		got = "nothing"
	}
	return fmt.Sprintf("%s at line %d: expected identifier as second child, got %s", e.Kind, e.Line, got)
}

// Unwrap lets errors.Is match ErrStructural.
func (e *StructuralError) Unwrap() error {
	return ErrStructural
}
