// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/errors"
)

const (
	clientName    = "skillsloop"
	clientVersion = "0.1.0"
	initTimeout   = 10 * time.Second
)

// SessionClient calls tools over a full MCP session: the child is started
// lazily, initialized, and then reused for every call.
type SessionClient struct {
	command         string
	args            []string
	env             []string
	protocolVersion string
	callTimeout     time.Duration
	logger          *slog.Logger

	mu     sync.Mutex
	client *client.Client
	tools  map[string]mcp.Tool
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithSessionCallTimeout sets the per-call timeout.
func WithSessionCallTimeout(timeout time.Duration) SessionOption {
	return func(c *SessionClient) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithProtocolVersion sets the protocol version sent during initialize.
func WithProtocolVersion(version string) SessionOption {
	return func(c *SessionClient) {
		if version != "" {
			c.protocolVersion = version
		}
	}
}

// WithSessionEnv sets environment variables for the child process.
func WithSessionEnv(env ...string) SessionOption {
	return func(c *SessionClient) {
		c.env = append(c.env, env...)
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *SessionClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewSessionClient creates a handshake-based client for the given command.
func NewSessionClient(command string, args []string, opts ...SessionOption) *SessionClient {
	c := &SessionClient{
		command:         command,
		args:            append([]string(nil), args...),
		protocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		callTimeout:     DefaultCallTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ core.ToolClient = (*SessionClient)(nil)

// CallTool invokes a tool. Every failure is reported as an error observation.
func (c *SessionClient) CallTool(ctx context.Context, name string, args map[string]any) core.Observation {
	origin := "mcp:" + name

	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.ensureConnected(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "mcp.session.init_error",
			slog.String("command", c.command),
			slog.String("error", err.Error()),
		)
		return failure(origin, errors.CodeTransportClosed, fmt.Sprintf("MCP connection error: %v", err))
	}

	if tool, known := c.tools[name]; known {
		if err := validateRequiredArgs(tool, nonNil(args)); err != nil {
			return failure(origin, errors.CodeInvalidInput, "MCP error: "+err.Error())
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = nonNil(args)

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	res, err := cl.CallTool(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && callCtx.Err() != nil {
			c.logger.WarnContext(ctx, "mcp.call.timeout", slog.String("tool", name), slog.Duration("timeout", c.callTimeout))
			return failure(origin, errors.CodeTimeout, fmt.Sprintf("Error: MCP call exceeded the %s timeout.", c.callTimeout))
		}
		c.logger.WarnContext(ctx, "mcp.call.error", slog.String("tool", name), slog.String("error", err.Error()))
		return failure(origin, errors.CodeToolFailure, "MCP error: "+err.Error())
	}
	return resultObservation(origin, res)
}

// Stop closes the session and terminates the child process.
func (c *SessionClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.tools = nil
	return err
}

func (c *SessionClient) ensureConnected(ctx context.Context) (*client.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	// NewStdioMCPClient starts the subprocess.
	cl, err := client.NewStdioMCPClient(c.command, c.env, c.args...)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = c.protocolVersion
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := cl.Initialize(initCtx, initRequest); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	c.client = cl
	return cl, nil
}

// resultObservation converts a tool result. Structured content wins; plain
// text blocks are joined.
func resultObservation(origin string, res *mcp.CallToolResult) core.Observation {
	if res == nil {
		return core.Success(origin, map[string]any{})
	}
	var texts []string
	structured := make([]any, 0, len(res.Content))
	for _, c := range res.Content {
		if text, ok := mcp.AsTextContent(c); ok {
			texts = append(texts, text.Text)
			continue
		}
		structured = append(structured, c)
	}

	var content any
	switch {
	case res.StructuredContent != nil:
		content = res.StructuredContent
	case len(structured) == 0:
		content = strings.Join(texts, "\n")
	default:
		content = res.Content
	}
	if res.IsError {
		return failure(origin, errors.CodeToolFailure, "MCP error: "+core.FormatContent(content))
	}
	return core.Success(origin, content)
}
