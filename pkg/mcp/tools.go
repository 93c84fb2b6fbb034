// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListTools returns the tools advertised by the server. The result is cached
// and used to check required arguments before each call.
func (c *SessionClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	c.tools = make(map[string]mcp.Tool, len(res.Tools))
	for _, tool := range res.Tools {
		c.tools[tool.Name] = tool
	}
	c.logger.Debug("mcp.tools.listed", slog.Int("count", len(res.Tools)))
	return res.Tools, nil
}

// DescribeTools renders tools as a markdown list for the routing prompt.
// Required parameters are marked with an asterisk.
func DescribeTools(tools []mcp.Tool) string {
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	for i, tool := range tools {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", tool.Name, strings.TrimSpace(tool.Description))
		if params := describeParams(tool.InputSchema); params != "" {
			fmt.Fprintf(&b, " (args: %s)", params)
		}
	}
	return b.String()
}

func describeParams(schema mcp.ToolInputSchema) string {
	if len(schema.Properties) == 0 {
		return ""
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if isRequired(schema, name) {
			names[i] = name + "*"
		}
	}
	return strings.Join(names, ", ")
}

// validateRequiredArgs reports the first required field missing from args.
func validateRequiredArgs(tool mcp.Tool, args map[string]any) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	return nil
}

func isRequired(schema mcp.ToolInputSchema, name string) bool {
	for _, key := range schema.Required {
		if key == name {
			return true
		}
	}
	return false
}
