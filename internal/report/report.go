// Package report renders aggregate complexity reports.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/panbanda/pycc/internal/output"
	"github.com/panbanda/pycc/pkg/analyzer/complexity"
	"github.com/panbanda/pycc/pkg/stats"
)

// Render returns the plain text report: one block per file in path order.
//
//	Functions in file "<path>":
//	  '<name>' <complexity>
//
// Every block ends with an empty line. Files without functions still get a header.
func Render(agg *complexity.AggregateReport) string {
	var b strings.Builder
	writeText(&b, agg)
	return b.String()
}

func writeText(b *strings.Builder, agg *complexity.AggregateReport) {
	if agg == nil {
		return
	}
	for _, path := range agg.Paths() {
		fmt.Fprintf(b, "Functions in file \"%s\":\n", path)
		for _, rec := range agg.Files[path] {
			fmt.Fprintf(b, "  '%s' %d\n", rec.Name, rec.Complexity)
		}
		b.WriteByte('\n')
	}
}

// RenderFailures lists the files skipped under the isolate policy, one per line.
func RenderFailures(agg *complexity.AggregateReport) string {
	if agg == nil || len(agg.Failures) == 0 {
		return ""
	}
	var b strings.Builder
	for _, path := range agg.FailedPaths() {
		fmt.Fprintf(&b, "%s: %s\n", path, agg.Failures[path])
	}
	return b.String()
}

// Report adapts an AggregateReport to output.Renderable.
type Report struct {
	Aggregate *complexity.AggregateReport
	// Threshold marks functions in table and markdown output. 0 disables it.
	Threshold int
}

// Ensure Report can be handed to output.Formatter.
var _ output.Renderable = (*Report)(nil)

// New wraps agg for rendering.
func New(agg *complexity.AggregateReport, threshold int) *Report {
	if agg == nil {
		agg = complexity.NewAggregateReport()
	}
	return &Report{Aggregate: agg, Threshold: threshold}
}

// Summary computes distribution statistics over every function.
func (r *Report) Summary() stats.Summary {
	return stats.Summarize(len(r.Aggregate.Files), r.Aggregate.Scores(), r.Threshold)
}

// data is the structured encoding shared by JSON, YAML and TOON.
type data struct {
	Files    map[string]complexity.FileReport `json:"files" yaml:"files" toon:"files"`
	Failures map[string]string                `json:"failures,omitempty" yaml:"failures,omitempty" toon:"failures,omitempty"`
	Summary  stats.Summary                    `json:"summary" yaml:"summary" toon:"summary"`
}

// RenderData implements output.Renderable.
func (r *Report) RenderData() any {
	d := data{
		Files:    r.Aggregate.Files,
		Failures: r.Aggregate.Failures,
		Summary:  r.Summary(),
	}
	if len(d.Failures) == 0 {
		d.Failures = nil
	}
	return d
}

// RenderText implements output.Renderable.
func (r *Report) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, Render(r.Aggregate))
	return err
}

// RenderTable implements output.Renderable.
func (r *Report) RenderTable(colored bool) *output.Table {
	var rows [][]string
	for _, path := range r.Aggregate.Paths() {
		for _, rec := range r.Aggregate.Files[path] {
			score := strconv.Itoa(rec.Complexity)
			if colored {
				score = output.ThresholdColor(rec.Complexity, r.Threshold, score)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%s:%d", path, rec.StartLine),
				rec.Name,
				score,
			})
		}
	}

	s := r.Summary()
	footer := []string{
		fmt.Sprintf("%d files", s.Files),
		fmt.Sprintf("%d functions", s.Functions),
		fmt.Sprintf("max %d", s.Max),
	}
	return output.NewTable("Cyclomatic Complexity", []string{"Location", "Function", "Complexity"}, rows, footer)
}

// RenderMarkdown implements output.Renderable.
func (r *Report) RenderMarkdown(w io.Writer) error {
	fmt.Fprintln(w, "# Cyclomatic Complexity")
	fmt.Fprintln(w)

	s := r.Summary()
	fmt.Fprintf(w, "- Files: %d\n- Functions: %d\n- Mean: %.2f\n- P90: %.0f\n- Max: %d\n",
		s.Files, s.Functions, s.Mean, s.P90, s.Max)
	if r.Threshold > 0 {
		fmt.Fprintf(w, "- At or above %d: %d\n", r.Threshold, s.OverThreshold)
	}
	fmt.Fprintln(w)

	for _, path := range r.Aggregate.Paths() {
		var rows [][]string
		for _, rec := range r.Aggregate.Files[path] {
			name := "`" + rec.Name + "`"
			if r.Threshold > 0 && rec.Complexity >= r.Threshold {
				name += " ⚠"
			}
			rows = append(rows, []string{name, strconv.Itoa(rec.Complexity), fmt.Sprintf("%d-%d", rec.StartLine, rec.EndLine)})
		}
		t := output.NewTable(path, []string{"Function", "Complexity", "Lines"}, rows, nil)
		if err := t.Markdown(w); err != nil {
			return err
		}
	}

	if len(r.Aggregate.Failures) > 0 {
		fmt.Fprintln(w, "## Failures")
		fmt.Fprintln(w)
		for _, path := range r.Aggregate.FailedPaths() {
			fmt.Fprintf(w, "- `%s`: %s\n", path, r.Aggregate.Failures[path])
		}
		fmt.Fprintln(w)
	}
	return nil
}

// Write renders agg to w in format.
func Write(w io.Writer, agg *complexity.AggregateReport, format output.Format, threshold int, colored bool) error {
	f, err := output.NewFormatter(format, w, "", colored)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(New(agg, threshold))
}
