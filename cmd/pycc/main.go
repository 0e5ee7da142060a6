package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/panbanda/pycc/pkg/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "pycc",
		Usage:    "Cyclomatic complexity for Python sources",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `pycc scores every module-level function and class method of a Python
code base with its cyclomatic complexity and prints one block per file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"PYCC_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stderr",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		Before: func(c *cli.Context) error {
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata["pprofCPU"] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logger, ok := c.App.Metadata["logger"].(*zap.Logger); ok {
				_ = logger.Sync()
			}
			pprofPrefix := c.String("pprof")
			if pprofPrefix == "" {
				return nil
			}
			pprof.StopCPUProfile()
			if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
				cpuFile.Close()
			}

			memFile, err := os.Create(pprofPrefix + ".mem.pprof")
			if err != nil {
				return fmt.Errorf("failed to create memory profile: %w", err)
			}
			defer memFile.Close()

			runtime.GC()
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			fileCmd(),
			watchCmd(),
			mcpCmd(),
			configCmd(),
			cacheCmd(),
		},
	}
}

// getPath returns the first positional argument, defaulting to ".".
func getPath(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// loadConfig loads the file named by --config or the first one found in the
// working directory.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.LoadConfig(opts...)
}

// newLogger builds a production zap logger on stderr. --verbose lowers the
// level to debug.
func newLogger(c *cli.Context) (*zap.Logger, error) {
	if logger, ok := c.App.Metadata["logger"].(*zap.Logger); ok {
		return logger, nil
	}

	cfgZap := zap.NewProductionConfig()
	cfgZap.Encoding = "console"
	cfgZap.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfgZap.OutputPaths = []string{"stderr"}
	cfgZap.ErrorOutputPaths = []string{"stderr"}
	if c.Bool("verbose") {
		cfgZap.Level.SetLevel(zapcore.DebugLevel)
	} else {
		cfgZap.Level.SetLevel(zapcore.WarnLevel)
	}

	logger, err := cfgZap.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.App.Metadata["logger"] = logger
	return logger, nil
}
