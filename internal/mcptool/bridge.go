// Package mcptool bridges MCP tool servers into the HTTP surface. A
// Bridge owns one stdio-launched MCP server process and exposes its
// tools for listing, inspection and invocation.
package mcptool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"cli2api/internal/core"
)

// ToolInfo describes one tool an MCP server advertises.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// Bridge talks to one MCP server over stdio. The server process is
// started lazily on first use and lives until Close.
type Bridge struct {
	command string
	args    []string
	env     []string
	logger  core.Logger

	mu     sync.Mutex
	client *client.Client
}

// NewBridge configures a bridge for the given server command. The
// process is not started until the first call.
func NewBridge(command string, args []string, env []string, logger core.Logger) *Bridge {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	return &Bridge{command: command, args: args, env: env, logger: logger}
}

func (b *Bridge) connect(ctx context.Context) (*client.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	c, err := client.NewStdioMCPClient(b.command, b.env, b.args...)
	if err != nil {
		return nil, fmt.Errorf("start MCP server %s: %w", b.command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "cli2api",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize MCP server %s: %w", b.command, err)
	}

	b.logger.Info("MCP服务已连接: %s", b.command)
	b.client = c
	return c, nil
}

// ListTools returns every tool the server advertises.
func (b *Bridge) ListTools(ctx context.Context) ([]ToolInfo, error) {
	c, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list MCP tools: %w", err)
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return tools, nil
}

// DescribeTool returns one tool by name, or nil when the server does
// not advertise it.
func (b *Bridge) DescribeTool(ctx context.Context, name string) (*ToolInfo, error) {
	tools, err := b.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i], nil
		}
	}
	return nil, nil
}

// CallTool invokes a tool and returns its text content concatenated.
// A tool-level error result is surfaced as an error carrying the text.
func (b *Bridge) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	c, err := b.connect(ctx)
	if err != nil {
		return "", err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	result, err := c.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call MCP tool %s: %w", name, err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("MCP tool %s failed: %s", name, sb.String())
	}
	return sb.String(), nil
}

// Close shuts the server process down. Safe when never connected.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}
