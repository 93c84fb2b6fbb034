package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/skillsloop/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.Policy.MaxSteps != 6 {
		t.Errorf("expected 6 steps, got %d", cfg.Policy.MaxSteps)
	}
	if cfg.Policy.SkillTimeout != 30*time.Second || cfg.Policy.MCPTimeout != 60*time.Second {
		t.Errorf("unexpected timeouts %v / %v", cfg.Policy.SkillTimeout, cfg.Policy.MCPTimeout)
	}
	if cfg.MCP.Protocol != "line" || cfg.MCP.Enabled {
		t.Errorf("unexpected mcp defaults %+v", cfg.MCP)
	}
	if cfg.SkillsRoot() != filepath.Join("workspace", "skills") {
		t.Errorf("unexpected skills root %q", cfg.SkillsRoot())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SKILLSLOOP_LLM_PROVIDER", "openai")
	t.Setenv("SKILLSLOOP_LLM_BASE_URL", "http://example.test/v1")
	t.Setenv("SKILLSLOOP_POLICY_SKILL_TIMEOUT", "45s")
	t.Setenv("SKILLSLOOP_POLICY_MAX_STEPS", "3")
	t.Setenv("SKILLSLOOP_MCP_ARGS", "run  docsbridge")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider openai from env, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL != "http://example.test/v1" {
		t.Errorf("unexpected base url %q", cfg.LLM.BaseURL)
	}
	if cfg.Policy.SkillTimeout != 45*time.Second || cfg.Policy.MaxSteps != 3 {
		t.Errorf("unexpected policy %+v", cfg.Policy)
	}
	if len(cfg.MCP.Args) != 2 || cfg.MCP.Args[1] != "docsbridge" {
		t.Errorf("unexpected args %q", cfg.MCP.Args)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(".env", []byte("SKILLSLOOP_LLM_MODEL=from-dotenv\nSKILLSLOOP_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Process environment wins over the file.
	t.Setenv("SKILLSLOOP_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("SKILLSLOOP_LLM_MODEL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "from-dotenv" {
		t.Errorf("expected model from .env, got %q", cfg.LLM.Model)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env to win, got %q", cfg.Log.Level)
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if errors.CodeOf(err) != errors.CodeConfig {
		t.Fatalf("expected config error, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("llm: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadWithProfile(t *testing.T) {
	t.Chdir(t.TempDir())
	tmpDir := t.TempDir()

	baseConfig := `
llm:
  provider: "ollama"
  model: "llama3.1"
log:
  level: "info"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devConfig := `
llm:
  provider: "openai"
log:
  level: "debug"
policy:
  max_steps: 10
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.dev.yaml"), []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name         string
		profile      string
		wantProvider string
		wantLogLevel string
		wantSteps    int
	}{
		{"no profile - base only", "", "ollama", "info", 6},
		{"dev profile", "dev", "openai", "debug", 10},
		{"nonexistent profile - falls back to base", "staging", "ollama", "info", 6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithProfile(basePath, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}
			if cfg.LLM.Provider != tc.wantProvider {
				t.Errorf("provider: got %s, want %s", cfg.LLM.Provider, tc.wantProvider)
			}
			if cfg.Log.Level != tc.wantLogLevel {
				t.Errorf("log level: got %s, want %s", cfg.Log.Level, tc.wantLogLevel)
			}
			if cfg.LLM.Model != "llama3.1" {
				t.Errorf("model should be inherited, got %s", cfg.LLM.Model)
			}
			if cfg.Policy.MaxSteps != tc.wantSteps {
				t.Errorf("max steps: got %d, want %d", cfg.Policy.MaxSteps, tc.wantSteps)
			}
		})
	}
}

func TestLoadWithCLIOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := []byte("llm:\n  provider: ollama\n  model: model-a\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SKILLSLOOP_LLM_MODEL", "model-env")

	cfg, err := LoadWithCLI([]string{
		"--config", path,
		"--set", "llm.provider=openai",
		"--set=policy.max_steps=2",
		"--set", "mcp.enabled=true",
		"--set", "mcp.command=docsbridge",
		"--set", `mcp.args=["--verbose"]`,
		"unrelated",
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected cli override provider, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "model-env" {
		t.Errorf("expected env model, got %s", cfg.LLM.Model)
	}
	if cfg.Policy.MaxSteps != 2 || !cfg.MCP.Enabled || cfg.MCP.Command != "docsbridge" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Policy, cfg.MCP)
	}
	if len(cfg.MCP.Args) != 1 || cfg.MCP.Args[0] != "--verbose" {
		t.Errorf("unexpected args %q", cfg.MCP.Args)
	}
}

func TestParseCLIErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--config"},
		{"--set"},
		{"--set", "invalid"},
		{"--set", "=value"},
	} {
		if _, err := parseCLI(args); errors.CodeOf(err) != errors.CodeConfig {
			t.Errorf("parseCLI(%q) = %v, want config error", args, err)
		}
	}
}

func TestProfileConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create dev config: %v", err)
	}
	basePath := filepath.Join(tmpDir, "config.yaml")

	tests := []struct {
		name     string
		base     string
		profile  string
		wantPath string
	}{
		{"existing profile", basePath, "dev", devPath},
		{"nonexistent profile", basePath, "prod", ""},
		{"empty profile", basePath, "", ""},
		{"empty base", "", "dev", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := profileConfigPath(tc.base, tc.profile); got != tc.wantPath {
				t.Errorf("profileConfigPath(%q, %q) = %q, want %q", tc.base, tc.profile, got, tc.wantPath)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Log:       LogConfig{Level: "info", Format: "text"},
			LLM:       LLMConfig{Provider: "ollama"},
			Policy:    PolicyConfig{MaxSteps: 6, SkillTimeout: time.Second, MCPTimeout: time.Second},
			MCP:       MCPConfig{Protocol: "line"},
			Telemetry: TelemetryConfig{Exporter: "none"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero steps", func(c *Config) { c.Policy.MaxSteps = 0 }, false},
		{"negative skill timeout", func(c *Config) { c.Policy.SkillTimeout = -1 }, false},
		{"zero mcp timeout", func(c *Config) { c.Policy.MCPTimeout = 0 }, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "anthropic" }, false},
		{"unknown protocol", func(c *Config) { c.MCP.Protocol = "http" }, false},
		{"enabled without command", func(c *Config) { c.MCP.Enabled = true }, false},
		{"enabled with command", func(c *Config) { c.MCP.Enabled = true; c.MCP.Command = "srv" }, true},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }, false},
		{"json logs", func(c *Config) { c.Log.Format = "JSON" }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && errors.CodeOf(err) != errors.CodeConfig {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}
