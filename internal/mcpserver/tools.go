package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/pycc/internal/output"
	"github.com/panbanda/pycc/internal/report"
	"github.com/panbanda/pycc/pkg/analyzer/complexity"
	"github.com/panbanda/pycc/pkg/scanner"
	"github.com/panbanda/pycc/pkg/stats"
)

// SourceInput is the input of analyze_source.
type SourceInput struct {
	Source    string `json:"source" jsonschema:"Python source text to analyze."`
	Decorated bool   `json:"decorated,omitempty" jsonschema:"Also score decorated functions and methods."`
	Format    string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or yaml."`
}

// DirectoryInput is the input of analyze_directory.
type DirectoryInput struct {
	Path      string `json:"path,omitempty" jsonschema:"Directory to analyze. Defaults to the current directory."`
	Workers   int    `json:"workers,omitempty" jsonschema:"Number of files analyzed at once. Defaults to the configured value."`
	OnError   string `json:"on_error,omitempty" jsonschema:"Error policy: abort (default) stops at the first failing file, isolate records failures and keeps going."`
	Decorated bool   `json:"decorated,omitempty" jsonschema:"Also score decorated functions and methods."`
	Format    string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or yaml."`
}

// RenderInput is the input of render_report.
type RenderInput struct {
	Files     map[string]complexity.FileReport `json:"files" jsonschema:"Mapping from file path to its function records."`
	Failures  map[string]string                `json:"failures,omitempty" jsonschema:"Files that failed, with the error message."`
	Format    string                           `json:"format,omitempty" jsonschema:"Output format: text (default), markdown, table, json, yaml, or toon."`
	Threshold int                              `json:"threshold,omitempty" jsonschema:"Complexity above which functions are flagged. Defaults to the configured value."`
}

// directoryResult is returned by analyze_directory.
type directoryResult struct {
	Files    map[string]complexity.FileReport `json:"files" yaml:"files" toon:"files"`
	Failures map[string]string                `json:"failures,omitempty" yaml:"failures,omitempty" toon:"failures,omitempty"`
	Summary  stats.Summary                    `json:"summary" yaml:"summary" toon:"summary"`
}

// getFormat maps the tool format argument to a data format. Unknown values
// fall back to TOON.
func getFormat(s string) output.Format {
	switch strings.ToLower(s) {
	case "json":
		return output.FormatJSON
	case "yaml", "yml":
		return output.FormatYAML
	default:
		return output.FormatTOON
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := output.Marshal(format, data)
	if err != nil {
		return nil, nil, err
	}
	return textResult(text), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleAnalyzeSource(ctx context.Context, req *mcp.CallToolRequest, input SourceInput) (*mcp.CallToolResult, any, error) {
	a := complexity.New(
		complexity.WithDecorated(input.Decorated || s.config.Analysis.Decorated),
		complexity.WithRejectSyntaxErrors(s.config.Analysis.RejectSyntaxErrors),
		complexity.WithLogger(s.logger),
	)
	defer a.Close()

	fr, err := a.AnalyzeSource(ctx, []byte(input.Source))
	if err != nil {
		return toolError(err.Error())
	}

	out := struct {
		Functions complexity.FileReport `json:"functions" yaml:"functions" toon:"functions"`
	}{fr}
	return toolResult(out, getFormat(input.Format))
}

func (s *Server) handleAnalyzeDirectory(ctx context.Context, req *mcp.CallToolRequest, input DirectoryInput) (*mcp.CallToolResult, any, error) {
	path := input.Path
	if path == "" {
		path = "."
	}

	policyName := input.OnError
	if policyName == "" {
		policyName = s.config.Analysis.OnError
	}
	policy, err := complexity.ParseErrorPolicy(policyName)
	if err != nil {
		return toolError(err.Error())
	}

	workers := input.Workers
	if workers <= 0 {
		workers = s.config.Analysis.Workers
	}

	a := complexity.New(
		complexity.WithWorkers(workers),
		complexity.WithErrorPolicy(policy),
		complexity.WithDecorated(input.Decorated || s.config.Analysis.Decorated),
		complexity.WithRejectSyntaxErrors(s.config.Analysis.RejectSyntaxErrors),
		complexity.WithScanner(scanner.NewScanner(s.config)),
		complexity.WithLogger(s.logger),
	)
	defer a.Close()

	agg, err := a.Analyze(ctx, path)
	if err != nil {
		return toolError(err.Error())
	}

	res := directoryResult{
		Files:    agg.Files,
		Failures: agg.Failures,
		Summary:  report.New(agg, s.config.Thresholds.Cyclomatic).Summary(),
	}
	if len(res.Failures) == 0 {
		res.Failures = nil
	}
	return toolResult(res, getFormat(input.Format))
}

func (s *Server) handleRenderReport(ctx context.Context, req *mcp.CallToolRequest, input RenderInput) (*mcp.CallToolResult, any, error) {
	format := output.FormatText
	if input.Format != "" {
		f, err := output.ParseFormat(input.Format)
		if err != nil {
			return toolError(err.Error())
		}
		format = f
	}

	threshold := input.Threshold
	if threshold <= 0 {
		threshold = s.config.Thresholds.Cyclomatic
	}

	agg := complexity.NewAggregateReport()
	for path, fr := range input.Files {
		if fr == nil {
			fr = complexity.FileReport{}
		}
		agg.Files[path] = fr
	}
	for path, msg := range input.Failures {
		agg.Failures[path] = msg
	}

	var b strings.Builder
	if err := report.Write(&b, agg, format, threshold, false); err != nil {
		return toolError(err.Error())
	}
	return textResult(b.String()), nil, nil
}
