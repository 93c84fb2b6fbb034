// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package reasoner asks a chat model for the next action of a session.
package reasoner

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/errors"
	"github.com/jllopis/skillsloop/pkg/llm"
	"github.com/jllopis/skillsloop/pkg/skills"
	"github.com/jllopis/skillsloop/pkg/telemetry"
)

const (
	// SoulFile holds the agent persona, relative to the workspace.
	SoulFile = "soul.md"
	// ToolsFile describes the external tools, relative to the workspace.
	ToolsFile = "tools.md"

	// ErrorHandlerName names the action returned when reasoning fails.
	ErrorHandlerName = "error_handler"
)

// Reasoner implements core.Reasoner on top of an llm.Provider.
type Reasoner struct {
	provider    llm.Provider
	model       string
	temperature float64
	workspace   string
	toolsText   string
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithModel sets the model name sent with each request.
func WithModel(model string) Option {
	return func(r *Reasoner) { r.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Reasoner) {
		if t >= 0 {
			r.temperature = t
		}
	}
}

// WithWorkspace sets the directory holding soul.md and tools.md.
func WithWorkspace(dir string) Option {
	return func(r *Reasoner) { r.workspace = dir }
}

// WithToolsDescription sets the tool listing used when the workspace has no
// tools.md.
func WithToolsDescription(text string) Option {
	return func(r *Reasoner) { r.toolsText = strings.TrimSpace(text) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reasoner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reasoner backed by provider.
func New(provider llm.Provider, opts ...Option) *Reasoner {
	r := &Reasoner{
		provider: provider,
		logger:   slog.Default(),
		tracer:   otel.Tracer("skillsloop/reasoner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ core.Reasoner = (*Reasoner)(nil)

// Ask returns the next action. It never fails: any error yields a terminal
// respond action carrying the error text.
func (r *Reasoner) Ask(ctx context.Context, state core.AgentState) core.Action {
	ctx, span := r.tracer.Start(ctx, "Reasoner.Ask")
	defer span.End()

	req := llm.ChatRequest{
		Model:       r.model,
		Messages:    r.messages(state),
		Temperature: r.temperature,
		JSONMode:    true,
	}
	span.SetAttributes(telemetry.LLMAttributes(r.model, len(req.Messages))...)

	action, err := r.ask(ctx, req, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WarnContext(ctx, "reasoner.ask.error",
			slog.String("session_id", state.SessionID),
			slog.String("error_code", string(errors.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return Degraded(err)
	}
	return action
}

func (r *Reasoner) ask(ctx context.Context, req llm.ChatRequest, span trace.Span) (core.Action, error) {
	if r.provider == nil {
		return core.Action{}, errors.New(errors.CodeConfig, "no reasoning provider configured", nil)
	}
	resp, err := r.provider.Chat(ctx, req)
	if err != nil {
		return core.Action{}, errors.New(errors.CodeLLMError, "chat request failed", err)
	}
	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	return ParseAction(resp.Content)
}

// Degraded builds the terminal action returned when reasoning fails.
func Degraded(err error) core.Action {
	return core.Action{
		Kind:   core.ActionRespond,
		Name:   ErrorHandlerName,
		Args:   map[string]any{"response": "Reasoning service error: " + err.Error()},
		Reason: "Technical failure while contacting the reasoning service.",
		Stop:   true,
	}
}

// ParseAction decodes a model answer into an action. Code fences and text
// around the JSON object are tolerated.
func ParseAction(content string) (core.Action, error) {
	raw := extractObject(content)
	if raw == "" {
		return core.Action{}, errors.New(errors.CodeLLMError, "empty reasoning response", nil)
	}
	var action core.Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return core.Action{}, errors.New(errors.CodeLLMError, "invalid action JSON", err)
	}
	if !action.Kind.Valid() {
		return core.Action{}, errors.New(errors.CodeLLMError, fmt.Sprintf("unknown action type %q", action.Kind), nil)
	}
	action.Name = strings.TrimSpace(action.Name)
	if action.Kind != core.ActionRespond && action.Name == "" {
		return core.Action{}, errors.New(errors.CodeLLMError, fmt.Sprintf("action of type %q has no name", action.Kind), nil)
	}
	if action.Args == nil {
		action.Args = map[string]any{}
	}
	return action, nil
}

func extractObject(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func (r *Reasoner) messages(state core.AgentState) []llm.Message {
	out := make([]llm.Message, 0, len(state.History)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: r.systemPrompt(state.Skills)})
	for _, m := range state.History {
		role := llm.RoleUser
		if m.Role == core.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

func (r *Reasoner) systemPrompt(descs []core.SkillDescriptor) string {
	var b strings.Builder
	if soul := r.workspaceFile(SoulFile); soul != "" {
		b.WriteString(soul)
		b.WriteString("\n\n")
	}
	b.WriteString("## External tools (MCP)\n")
	if tools := r.workspaceFile(ToolsFile); tools != "" {
		b.WriteString(tools)
	} else if r.toolsText != "" {
		b.WriteString(r.toolsText)
	} else {
		b.WriteString("(no external tools described)")
	}
	b.WriteString("\n\n## Available skills\n")
	b.WriteString(skills.Summary(descs))
	b.WriteString("\n\n")
	b.WriteString(responseInstructions)
	return b.String()
}

func (r *Reasoner) workspaceFile(name string) string {
	if r.workspace == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(r.workspace, name))
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			r.logger.Debug("reasoner.workspace.read_error",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

const responseInstructions = `## Response format: strict JSON
Always answer with a single JSON object with exactly this shape:
{
  "type": "skill" | "tool" | "respond",
  "name": "name of the skill or tool",
  "args": {
    "parameter": "value"
  },
  "reason": "why this is the next step",
  "stop": false
}

### Rules
1. Never answer with plain text, only JSON.
2. The fields "type", "name", "args" and "reason" are mandatory.
3. To answer the user use "type": "respond", "name": "final_answer" and put the answer in "args": {"response": "..."}.
4. If a skill does not return the information after one or two attempts, say so and answer the user.

### Example
{
  "type": "skill",
  "name": "web-research",
  "args": {"query": "mechanical keyboard reviews"},
  "reason": "The user asks about a product that needs an external search.",
  "stop": false
}`
