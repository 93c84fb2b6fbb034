// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads settings from defaults, YAML files, a .env file,
// environment variables and command-line overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/skillsloop/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides. SKILLSLOOP_LLM_BASE_URL
// maps to llm.base_url.
const EnvPrefix = "SKILLSLOOP_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Policy    PolicyConfig    `koanf:"policy"`
	MCP       MCPConfig       `koanf:"mcp"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // openai, ollama
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	// MaxRetries is the number of extra attempts on transient backend errors.
	MaxRetries  int     `koanf:"max_retries"`
}

type WorkspaceConfig struct {
	Dir string `koanf:"dir"`
	// SkillsDir defaults to <dir>/skills when empty.
	SkillsDir   string `koanf:"skills_dir"`
	Interpreter string `koanf:"interpreter"`
}

type PolicyConfig struct {
	MaxSteps     int           `koanf:"max_steps"`
	SkillTimeout time.Duration `koanf:"skill_timeout"`
	MCPTimeout   time.Duration `koanf:"mcp_timeout"`
}

type MCPConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Command  string   `koanf:"command"`
	Args     []string `koanf:"args"`
	Protocol string   `koanf:"protocol"` // line, mcp
	Env      []string `koanf:"env"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// SkillsRoot returns the directory scanned for skills.
func (c *Config) SkillsRoot() string {
	if c.Workspace.SkillsDir != "" {
		return c.Workspace.SkillsDir
	}
	return filepath.Join(c.Workspace.Dir, "skills")
}

var defaults = map[string]any{
	"log.level":               "info",
	"log.format":              "text",
	"llm.provider":            "ollama",
	"llm.model":               "qwen2.5-coder:7b-instruct-q5_K_M",
	"llm.base_url":            "http://localhost:11434",
	"llm.temperature":         0.0,
	"llm.max_retries":         2,
	"workspace.dir":           "workspace",
	"workspace.interpreter":   "python3",
	"policy.max_steps":        6,
	"policy.skill_timeout":    30 * time.Second,
	"policy.mcp_timeout":      60 * time.Second,
	"mcp.enabled":             false,
	"mcp.protocol":            "line",
	"telemetry.exporter":      "none",
	"telemetry.otlp_endpoint": "localhost:4317",
	"telemetry.otlp_insecure": true,
}

// Load reads the YAML file at path (optional) over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	return load(options{path: path})
}

// LoadWithProfile loads path and then, when present, the profile file next
// to it (config.yaml + dev -> config.dev.yaml).
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(options{path: path, profile: profile})
}

// LoadWithCLI loads configuration honoring --config, --profile (alias
// --env), --dotenv and repeated --set key=value flags. --set values are
// parsed as JSON when possible.
func LoadWithCLI(args []string) (*Config, error) {
	opts, err := parseCLI(args)
	if err != nil {
		return nil, err
	}
	return load(opts)
}

type options struct {
	path      string
	profile   string
	dotenv    string
	overrides map[string]any
}

func load(o options) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, configError("set default "+key, err)
		}
	}

	if o.path != "" {
		if err := k.Load(file.Provider(o.path), yaml.Parser()); err != nil {
			return nil, configError("load "+o.path, err)
		}
		if p := profileConfigPath(o.path, o.profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, configError("load "+p, err)
			}
		}
	}

	// Variables already set in the environment win over the .env file.
	dotenv := o.dotenv
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !os.IsNotExist(err) {
		return nil, configError("load "+dotenv, err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, configError("load environment", err)
	}

	for key, v := range o.overrides {
		if err := k.Set(key, v); err != nil {
			return nil, configError("override "+key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, configError("decode", err)
	}
	return &cfg, nil
}

// envKey maps SKILLSLOOP_SECTION_SOME_KEY to section.some_key. List values
// are split on whitespace.
func envKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key, value
	}
	key = section + "." + rest
	switch key {
	case "mcp.args", "mcp.env":
		return key, strings.Fields(value)
	}
	return key, value
}

func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func parseCLI(args []string) (options, error) {
	o := options{overrides: map[string]any{}}
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--config", "--profile", "--env", "--dotenv", "--set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return o, errors.New(errors.CodeConfig, "missing value for "+name, nil)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			o.path = value
		case "--profile", "--env":
			o.profile = value
		case "--dotenv":
			o.dotenv = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return o, errors.New(errors.CodeConfig, fmt.Sprintf("invalid --set value %q, expected key=value", value), nil)
			}
			o.overrides[strings.TrimSpace(key)] = parseValue(raw)
		}
	}
	return o, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// Validate rejects budgets and enums the loop cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Policy.MaxSteps <= 0 {
		problems = append(problems, "policy.max_steps must be positive")
	}
	if c.Policy.SkillTimeout <= 0 {
		problems = append(problems, "policy.skill_timeout must be positive")
	}
	if c.Policy.MCPTimeout <= 0 {
		problems = append(problems, "policy.mcp_timeout must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		problems = append(problems, "llm.max_retries must not be negative")
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of openai, ollama", c.LLM.Provider))
	}
	switch c.MCP.Protocol {
	case "line", "mcp":
	default:
		problems = append(problems, fmt.Sprintf("mcp.protocol %q is not one of line, mcp", c.MCP.Protocol))
	}
	if c.MCP.Enabled && strings.TrimSpace(c.MCP.Command) == "" {
		problems = append(problems, "mcp.command is required when mcp is enabled")
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		problems = append(problems, fmt.Sprintf("telemetry.exporter %q is not one of none, stdout, otlp", c.Telemetry.Exporter))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}
	if len(problems) > 0 {
		return errors.New(errors.CodeConfig, strings.Join(problems, "; "), nil)
	}
	return nil
}

func configError(op string, err error) error {
	return errors.New(errors.CodeConfig, "config: "+op, err)
}
