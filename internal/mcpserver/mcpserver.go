// Package mcpserver exposes the complexity analyzer as MCP tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/pycc/pkg/config"
	"go.uber.org/zap"
)

// Server wraps the MCP server and registers the pycc tools.
type Server struct {
	server *mcp.Server
	config *config.Config
	logger *zap.Logger
}

// NewServer creates a new MCP server with all tools and prompts registered.
// A nil config means the defaults and a nil logger discards output.
func NewServer(version string, cfg *config.Config, logger *zap.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pycc",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, config: cfg, logger: logger}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_source",
		Description: "Score every module-level function and class method in one Python source unit. Returns name and cyclomatic complexity per function in source order.",
	}, s.handleAnalyzeSource)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_directory",
		Description: "Discover the Python files below a directory and score them concurrently. Returns a mapping from file path to its functions plus summary statistics.",
	}, s.handleAnalyzeDirectory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "render_report",
		Description: "Render an aggregate report (file path to functions) as text, markdown, table, json, yaml or toon.",
	}, s.handleRenderReport)
}
