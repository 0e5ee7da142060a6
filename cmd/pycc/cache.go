package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/pycc/internal/cache"
	"github.com/panbanda/pycc/internal/output"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Result cache management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show entry count, size and age of the result cache",
				Description: `Reports on the cache directory configured under [cache].

Examples:
  pycc cache stats            # Human readable summary
  pycc cache stats -f json    # Machine readable`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: text, json, yaml, toon",
					},
				},
				Action: runCacheStats,
			},
			{
				Name:  "clear",
				Usage: "Remove every cached result",
				Description: `Deletes the cache directory configured under [cache].

Examples:
  pycc cache clear
  pycc -c pycc.toml cache clear`,
				Action: runCacheClear,
			},
		},
	}
}

// openCache opens the configured cache directory whether or not caching is
// enabled for analysis runs.
func openCache(c *cli.Context) (*cache.Cache, string, error) {
	result, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	cfg := result.Config.Cache
	if cfg.Dir == "" {
		return nil, "", fmt.Errorf("cache.dir is not set")
	}
	cc, err := cache.New(cfg.Dir, cfg.TTL, true)
	if err != nil {
		return nil, "", err
	}
	return cc, cfg.Dir, nil
}

type cacheStats struct {
	Dir       string `json:"dir" yaml:"dir" toon:"dir"`
	Entries   int    `json:"entries" yaml:"entries" toon:"entries"`
	TotalSize int64  `json:"total_size" yaml:"total_size" toon:"total_size"`
	OldestAge string `json:"oldest_age,omitempty" yaml:"oldest_age,omitempty" toon:"oldest_age,omitempty"`
	NewestAge string `json:"newest_age,omitempty" yaml:"newest_age,omitempty" toon:"newest_age,omitempty"`
}

func runCacheStats(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	cc, dir, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := cc.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if format != output.FormatText {
		data := cacheStats{Dir: dir, Entries: stats.Entries, TotalSize: stats.TotalSize}
		if stats.Entries > 0 {
			data.OldestAge = stats.OldestAge.Round(time.Second).String()
			data.NewestAge = stats.NewestAge.Round(time.Second).String()
		}
		out, err := output.Marshal(format, data)
		if err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, out)
		return nil
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Cache: %s\n", dir)
	fmt.Fprintf(w, "  Entries:    %d\n", stats.Entries)
	fmt.Fprintf(w, "  Total size: %d bytes\n", stats.TotalSize)
	if stats.Entries > 0 {
		fmt.Fprintf(w, "  Oldest:     %s\n", stats.OldestAge.Round(time.Second))
		fmt.Fprintf(w, "  Newest:     %s\n", stats.NewestAge.Round(time.Second))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	cc, dir, err := openCache(c)
	if err != nil {
		return err
	}
	if err := cc.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.New(color.FgGreen).Fprintf(c.App.Writer, "Cache cleared: %s\n", dir)
	return nil
}
