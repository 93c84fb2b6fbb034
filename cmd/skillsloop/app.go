// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jllopis/skillsloop/pkg/config"
	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/errors"
	"github.com/jllopis/skillsloop/pkg/llm"
	"github.com/jllopis/skillsloop/pkg/mcp"
	"github.com/jllopis/skillsloop/pkg/orchestrator"
	"github.com/jllopis/skillsloop/pkg/reasoner"
	"github.com/jllopis/skillsloop/pkg/runner"
	"github.com/jllopis/skillsloop/pkg/skills"
	"github.com/jllopis/skillsloop/pkg/telemetry"
)

const (
	shutdownTimeout  = 5 * time.Second
	discoveryTimeout = 15 * time.Second
)

// app holds the wired collaborators of one CLI process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *skills.FSStore
	orch     *orchestrator.Orchestrator
	tools    core.ToolClient
	shutdown telemetry.ShutdownFunc
}

func loadConfig(flags globalFlags) (*config.Config, error) {
	cfg, err := config.LoadWithCLI(flags.configArgs())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	// Follows slog.Default so a config reload reaches every component.
	logger := slog.New(defaultHandler{})

	shutdown, err := telemetry.InitWithConfig("skillsloop", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "init telemetry", err)
	}

	metrics, err := telemetry.NewLoopMetrics()
	if err != nil {
		logger.Warn("telemetry.metrics.disabled", slog.String("error", err.Error()))
	}

	provider, err := newProvider(cfg.LLM)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = cfg.LLM.MaxRetries + 1
	provider = llm.NewRetryProvider(provider, retry, logger)

	tools := newToolClient(cfg, logger)

	store := skills.NewFSStore(cfg.SkillsRoot(), skills.WithLogger(logger))
	brain := reasoner.New(provider,
		reasoner.WithModel(cfg.LLM.Model),
		reasoner.WithTemperature(cfg.LLM.Temperature),
		reasoner.WithWorkspace(cfg.Workspace.Dir),
		reasoner.WithToolsDescription(discoverTools(ctx, tools, logger)),
		reasoner.WithLogger(logger),
	)
	scripts := runner.New(cfg.Workspace.Dir,
		runner.WithInterpreter(cfg.Workspace.Interpreter),
		runner.WithTimeout(cfg.Policy.SkillTimeout),
		runner.WithLogger(logger),
	)

	opts := []orchestrator.Option{
		orchestrator.WithMaxSteps(cfg.Policy.MaxSteps),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	}
	if tools != nil {
		opts = append(opts, orchestrator.WithToolClient(tools))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		orch:     orchestrator.New(store, brain, scripts, opts...),
		tools:    tools,
		shutdown: shutdown,
	}, nil
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return llm.NewOllama(cfg.BaseURL), nil
	case "openai":
		opts := []llm.OpenAIOption{llm.WithOpenAIModel(cfg.Model)}
		// The Ollama default base URL is not an OpenAI endpoint.
		if cfg.BaseURL != "" && cfg.BaseURL != llm.DefaultOllamaURL {
			opts = append(opts, llm.WithOpenAIBaseURL(cfg.BaseURL))
		}
		if cfg.APIKey != "" {
			opts = append(opts, llm.WithOpenAIAPIKey(cfg.APIKey))
		}
		return llm.NewOpenAI(opts...), nil
	default:
		return nil, errors.New(errors.CodeConfig, fmt.Sprintf("unsupported llm provider %q", cfg.Provider), nil)
	}
}

// newToolClient returns nil when no tool server is configured.
func newToolClient(cfg *config.Config, logger *slog.Logger) core.ToolClient {
	if !cfg.MCP.Enabled || strings.TrimSpace(cfg.MCP.Command) == "" {
		return nil
	}
	if cfg.MCP.Protocol == "mcp" {
		return mcp.NewSessionClient(cfg.MCP.Command, cfg.MCP.Args,
			mcp.WithSessionCallTimeout(cfg.Policy.MCPTimeout),
			mcp.WithSessionEnv(cfg.MCP.Env...),
			mcp.WithSessionLogger(logger),
		)
	}
	return mcp.NewStdioClient(cfg.MCP.Command, cfg.MCP.Args,
		mcp.WithCallTimeout(cfg.Policy.MCPTimeout),
		mcp.WithEnv(cfg.MCP.Env...),
		mcp.WithLogger(logger),
	)
}

// discoverTools lists the tools of a handshake-based server. The line
// protocol has no discovery, so tools.md is the only source there.
func discoverTools(ctx context.Context, tools core.ToolClient, logger *slog.Logger) string {
	session, ok := tools.(*mcp.SessionClient)
	if !ok {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	list, err := session.ListTools(ctx)
	if err != nil {
		logger.Warn("mcp.tools.discovery_error", slog.String("error", err.Error()))
		return ""
	}
	return mcp.DescribeTools(list)
}

// Close stops the tool server and flushes telemetry.
func (a *app) Close() error {
	var result *multierror.Error
	if a.tools != nil {
		if err := a.tools.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop tool server: %w", err))
		}
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// defaultHandler forwards to the handler of slog.Default at call time.
// Attributes and groups added through With are replayed on that handler for
// every record, so derived loggers follow a reload too.
type defaultHandler struct {
	ops []func(slog.Handler) slog.Handler
}

func (h defaultHandler) current() slog.Handler {
	next := slog.Default().Handler()
	for _, op := range h.ops {
		next = op(next)
	}
	return next
}

func (h defaultHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, level)
}

func (h defaultHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h defaultHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h defaultHandler) WithGroup(name string) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h defaultHandler) with(op func(slog.Handler) slog.Handler) slog.Handler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return defaultHandler{ops: append(ops, op)}
}
