// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/skillsloop/pkg/core"
)

// ToolHandler serves one tool. A string result is returned as text; any
// other value is returned as structured content with a JSON text fallback.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Param declares a string parameter of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Server wraps the mcp-go server for stdio tool servers. The same tools can
// also be served over the line protocol spoken by StdioClient.
type Server struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[string]ToolHandler
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		logger:    slog.Default(),
		handlers:  make(map[string]ToolHandler),
	}
}

// SetLogger sets the logger used by the line protocol loop.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// RegisterTool registers a tool with the server. Handler errors are returned
// as tool results flagged as errors, not as protocol errors.
func (s *Server) RegisterTool(name, description string, params []Param, handler ToolHandler) {
	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, p := range params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, propOpts...))
	}

	s.mu.Lock()
	s.handlers[name] = handler
	s.mu.Unlock()

	s.mcpServer.AddTool(mcp.NewTool(name, opts...), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := handler(ctx, request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if text, ok := out.(string); ok {
			return mcp.NewToolResultText(text), nil
		}
		return mcp.NewToolResultStructured(out, core.FormatContent(out)), nil
	})
}

// MCPServer exposes the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until stdin is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeLines answers one response line per request line until in is
// exhausted or ctx is done. Only tools/call is supported. A string result is
// wrapped as {"content": text}; any other value is the result itself.
func (s *Server) ServeLines(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	enc := json.NewEncoder(out)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if err := enc.Encode(s.handleLine(ctx, line)); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read request: %w", readErr)
		}
	}
}

type lineRequest struct {
	ID     json.RawMessage    `json:"id"`
	Method string             `json:"method"`
	Params mcp.CallToolParams `json:"params"`
}

type lineResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) handleLine(ctx context.Context, line string) lineResponse {
	var req lineRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.logger.Warn("mcp.server.parse_error", slog.String("error", err.Error()))
		return lineError(json.RawMessage("null"), mcp.PARSE_ERROR, "parse error: "+err.Error())
	}
	if len(req.ID) == 0 {
		req.ID = json.RawMessage("null")
	}
	if req.Method != string(mcp.MethodToolsCall) {
		return lineError(req.ID, mcp.METHOD_NOT_FOUND, fmt.Sprintf("method %q not supported", req.Method))
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Params.Name]
	s.mu.RUnlock()
	if !ok {
		return lineError(req.ID, mcp.METHOD_NOT_FOUND, fmt.Sprintf("tool %q not found", req.Params.Name))
	}

	args, _ := req.Params.Arguments.(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	result, err := handler(ctx, args)
	if err != nil {
		s.logger.Debug("mcp.server.tool_error",
			slog.String("tool", req.Params.Name),
			slog.String("error", err.Error()),
		)
		return lineError(req.ID, mcp.INTERNAL_ERROR, err.Error())
	}
	if text, ok := result.(string); ok {
		result = map[string]any{"content": text}
	}
	if result == nil {
		result = map[string]any{}
	}
	return lineResponse{JSONRPC: mcp.JSONRPC_VERSION, ID: req.ID, Result: result}
}

func lineError(id json.RawMessage, code int, message string) lineResponse {
	return lineResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	}
}
