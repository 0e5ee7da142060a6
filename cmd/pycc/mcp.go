package main

import (
	"github.com/panbanda/pycc/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve analyze_source, analyze_directory and render_report as MCP tools over stdio",
		Action: func(c *cli.Context) error {
			result, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger, err := newLogger(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return mcpserver.NewServer(version, result.Config, logger).Run(ctx)
		},
	}
}
