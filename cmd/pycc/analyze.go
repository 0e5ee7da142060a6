package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/pycc/internal/cache"
	"github.com/panbanda/pycc/internal/output"
	"github.com/panbanda/pycc/internal/progress"
	"github.com/panbanda/pycc/internal/report"
	"github.com/panbanda/pycc/internal/vcs"
	"github.com/panbanda/pycc/pkg/analyzer"
	"github.com/panbanda/pycc/pkg/analyzer/complexity"
	"github.com/panbanda/pycc/pkg/config"
	"github.com/panbanda/pycc/pkg/scanner"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// stdinPath is the report key used for source read from standard input.
const stdinPath = "<stdin>"

// analysisFlags are shared by analyze and file.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, yaml, toon, markdown, table",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "decorated",
			Usage: "Also score decorated functions and methods",
		},
		&cli.BoolFlag{
			Name:  "reject-syntax-errors",
			Usage: "Fail files whose parse tree contains syntax errors",
		},
		&cli.IntFlag{
			Name:  "threshold",
			Usage: "Complexity above which functions are highlighted (table and markdown)",
		},
	}
}

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"cc"},
		Usage:     "Score every Python file below a directory",
		ArgsUsage: "[path]",
		Flags: append(analysisFlags(),
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of files analyzed at once",
			},
			&cli.StringFlag{
				Name:  "on-error",
				Usage: "abort stops at the first failing file, isolate records failures and keeps going",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Reuse results of unchanged files",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide the progress bar",
			},
			&cli.BoolFlag{
				Name:  "changed",
				Usage: "Only analyze files that differ from git HEAD (modified, staged or untracked)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit non-zero when any file failed under the isolate policy",
			},
		),
		Action: runAnalyzeCmd,
	}
}

func fileCmd() *cli.Command {
	return &cli.Command{
		Name:      "file",
		Usage:     "Score a single Python file, or standard input with -",
		ArgsUsage: "<path>|-",
		Flags:     analysisFlags(),
		Action:    runFileCmd,
	}
}

// effectiveConfig loads the config file and applies command line overrides.
func effectiveConfig(c *cli.Context) (*config.Config, error) {
	result, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	if c.IsSet("workers") {
		cfg.Analysis.Workers = c.Int("workers")
	}
	if c.IsSet("on-error") {
		cfg.Analysis.OnError = c.String("on-error")
	}
	if c.IsSet("decorated") {
		cfg.Analysis.Decorated = c.Bool("decorated")
	}
	if c.IsSet("reject-syntax-errors") {
		cfg.Analysis.RejectSyntaxErrors = c.Bool("reject-syntax-errors")
	}
	if c.IsSet("cache") {
		cfg.Cache.Enabled = c.Bool("cache")
	}
	if c.IsSet("threshold") {
		cfg.Thresholds.Cyclomatic = c.Int("threshold")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newAnalyzer builds a complexity analyzer from cfg.
func newAnalyzer(cfg *config.Config, logger *zap.Logger) (*complexity.Analyzer, error) {
	policy, err := complexity.ParseErrorPolicy(cfg.Analysis.OnError)
	if err != nil {
		return nil, err
	}

	opts := []complexity.Option{
		complexity.WithWorkers(cfg.Analysis.Workers),
		complexity.WithErrorPolicy(policy),
		complexity.WithDecorated(cfg.Analysis.Decorated),
		complexity.WithRejectSyntaxErrors(cfg.Analysis.RejectSyntaxErrors),
		complexity.WithScanner(scanner.NewScanner(cfg)),
		complexity.WithLogger(logger),
	}
	cc, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return nil, err
	}
	if cc.Enabled() {
		opts = append(opts, complexity.WithCache(cc))
	}
	return complexity.New(opts...), nil
}

func writeReport(c *cli.Context, cfg *config.Config, agg *complexity.AggregateReport) error {
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	formatter, err := output.NewFormatter(format, c.App.Writer, c.String("output"), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(report.New(agg, cfg.Thresholds.Cyclomatic))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runAnalyzeCmd(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}

	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var bar *progress.Bar
	if !c.Bool("no-progress") {
		bar = progress.NewBar(errWriter(c), "Analyzing")
		ctx = analyzer.WithTracker(ctx, bar.Tracker())
	}

	path := getPath(c)
	var agg *complexity.AggregateReport
	if c.Bool("changed") {
		var files []string
		files, err = changedFiles(scanner.NewScanner(cfg), path)
		if err == nil {
			if tracker := analyzer.TrackerFromContext(ctx); tracker != nil {
				tracker.Add(len(files))
			}
			agg, err = a.AnalyzeFiles(ctx, files)
		}
	} else {
		agg, err = a.Analyze(ctx, path)
	}
	if bar != nil {
		if err != nil {
			bar.FinishError(err)
		} else {
			bar.FinishSuccess()
		}
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if len(agg.Files) == 0 && len(agg.Failures) == 0 {
		color.New(color.FgYellow).Fprintf(errWriter(c), "No Python files found in %s\n", path)
	}

	if err := writeReport(c, cfg, agg); err != nil {
		return err
	}

	if n := len(agg.Failures); n > 0 {
		color.New(color.FgYellow).Fprintf(errWriter(c), "%d file(s) skipped:\n", n)
		fmt.Fprint(errWriter(c), report.RenderFailures(agg))
		if c.Bool("strict") {
			return cli.Exit(fmt.Sprintf("%d file(s) failed", n), 1)
		}
	}
	return nil
}

func runFileCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("file takes exactly one path, or - for standard input", 1)
	}
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}

	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	path := c.Args().First()
	var fr complexity.FileReport
	if path == "-" {
		src, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("failed to read standard input: %w", err)
		}
		path = stdinPath
		fr, err = a.AnalyzeSource(ctx, src)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	} else {
		fr, err = a.AnalyzeFile(ctx, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	agg := complexity.NewAggregateReport()
	agg.Files[path] = fr
	return writeReport(c, cfg, agg)
}

// changedFiles lists the files below path that differ from git HEAD and pass
// the scanner's filters.
func changedFiles(scan *scanner.Scanner, path string) ([]string, error) {
	changed, err := vcs.ChangedFiles(path)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(changed))
	for _, f := range changed {
		ok, err := scan.ScanFile(f)
		if err != nil || !ok {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}
