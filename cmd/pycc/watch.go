package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/pycc/internal/report"
	"github.com/panbanda/pycc/pkg/analyzer/complexity"
	"github.com/panbanda/pycc/pkg/watch"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and re-score changed files",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "How long a file must stay unchanged before it is analyzed",
			},
			&cli.BoolFlag{
				Name:  "decorated",
				Usage: "Also score decorated functions and methods",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(getPath(c))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := watch.NewWatcher(absPath, cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()
	watcher.SetLogger(logger)

	ctx, cancel := signalContext()
	defer cancel()

	out := c.App.Writer
	watcher.SetCallback(func(changed string) {
		rel, err := filepath.Rel(absPath, changed)
		if err != nil {
			rel = changed
		}
		fr, err := a.AnalyzeFile(ctx, changed)
		if err != nil {
			logger.Debug("re-analysis failed", zap.String("path", changed), zap.Error(err))
			color.New(color.FgRed).Fprintf(errWriter(c), "%s: %v\n", rel, err)
			return
		}
		agg := complexity.NewAggregateReport()
		agg.Files[rel] = fr
		fmt.Fprint(out, report.Render(agg))
	})

	color.New(color.FgCyan).Fprintf(errWriter(c), "Watching for changes in %s (Ctrl+C to stop)\n", absPath)
	start := time.Now()
	err = watcher.Start(ctx)
	logger.Debug("watch stopped", zap.Duration("elapsed", time.Since(start)))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
