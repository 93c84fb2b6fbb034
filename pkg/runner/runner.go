// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner executes skill entry scripts as child processes.
//
// A script receives the action arguments as a single JSON argument and
// answers on stdout with JSON or plain text. A non-zero exit status signals
// failure, with diagnostics on stderr.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/errors"
	"github.com/jllopis/skillsloop/pkg/skills"
)

const (
	// DefaultTimeout bounds a single script execution.
	DefaultTimeout = 30 * time.Second
	// DefaultInterpreter runs entry scripts.
	DefaultInterpreter = "python3"

	// waitDelay bounds how long Wait blocks on pipes held open by
	// grandchildren once the script itself has been killed.
	waitDelay = time.Second
)

// ScriptRunner runs skill entry scripts with a wall-clock timeout.
type ScriptRunner struct {
	workspace   string
	interpreter string
	interpArgs  []string
	timeout     time.Duration
	env         []string
	logger      *slog.Logger
}

// Option configures a ScriptRunner.
type Option func(*ScriptRunner)

// WithInterpreter sets the command used to run scripts. The script path and
// the JSON arguments are appended after args.
func WithInterpreter(command string, args ...string) Option {
	return func(r *ScriptRunner) {
		if strings.TrimSpace(command) != "" {
			r.interpreter = command
			r.interpArgs = append([]string(nil), args...)
		}
	}
}

// WithTimeout sets the per-execution timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *ScriptRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithEnv appends environment variables to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *ScriptRunner) {
		r.env = append(r.env, env...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *ScriptRunner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a ScriptRunner. Scripts of documents without a directory are
// resolved under <workspaceDir>/skills/<name>.
func New(workspaceDir string, opts ...Option) *ScriptRunner {
	r := &ScriptRunner{
		workspace:   workspaceDir,
		interpreter: DefaultInterpreter,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured timeout.
func (r *ScriptRunner) Timeout() time.Duration { return r.timeout }

var _ core.Runner = (*ScriptRunner)(nil)

// Run executes the entry script of doc. Every failure is reported as an
// error observation.
func (r *ScriptRunner) Run(ctx context.Context, doc core.SkillDocument, args map[string]any) core.Observation {
	origin := doc.Name()
	if strings.TrimSpace(doc.EntryScript) == "" {
		return failure(origin, errors.CodeInvalidInput, "Error: skill does not declare an entry_script.")
	}

	path, err := r.scriptPath(doc)
	if err != nil {
		return failure(origin, errors.CodeInvalidInput, fmt.Sprintf("Error: invalid entry_script: %v", err))
	}
	if _, err := os.Stat(path); err != nil {
		return failure(origin, errors.CodeNotFound, fmt.Sprintf("Error: script not found at %s", path))
	}

	payload, err := json.Marshal(nonNil(args))
	if err != nil {
		return failure(origin, errors.CodeInvalidInput, fmt.Sprintf("Error: arguments are not serializable: %v", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmdArgs := append(append([]string(nil), r.interpArgs...), path, string(payload))
	cmd := exec.CommandContext(runCtx, r.interpreter, cmdArgs...)
	cmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case runErr == nil:
	case ctx.Err() != nil:
		return failure(origin, errors.CodeInternal, "Error: execution cancelled.").
			WithMeta("duration_ms", elapsed.Milliseconds())
	case stderrors.Is(runCtx.Err(), context.DeadlineExceeded):
		r.logger.WarnContext(ctx, "runner.exec.timeout",
			slog.String("skill", origin),
			slog.String("script", path),
			slog.Duration("timeout", r.timeout),
		)
		return failure(origin, errors.CodeTimeout, fmt.Sprintf("Error: execution exceeded the %s timeout.", r.timeout)).
			WithMeta("duration_ms", elapsed.Milliseconds())
	default:
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			r.logger.DebugContext(ctx, "runner.exec.failed",
				slog.String("skill", origin),
				slog.Int("exit_code", exitErr.ExitCode()),
			)
			return failure(origin, errors.CodeToolFailure, "Error during execution: "+strings.TrimSpace(stderr.String())).
				WithMeta("exit_code", exitErr.ExitCode()).
				WithMeta("duration_ms", elapsed.Milliseconds())
		}
		return failure(origin, errors.CodeInternal, fmt.Sprintf("Unexpected error: %v", runErr)).
			WithMeta("duration_ms", elapsed.Milliseconds())
	}

	return core.Success(origin, decodeOutput(stdout.Bytes())).
		WithMeta("exit_code", 0).
		WithMeta("duration_ms", elapsed.Milliseconds())
}

func (r *ScriptRunner) scriptPath(doc core.SkillDocument) (string, error) {
	dir := doc.Dir
	if dir == "" {
		dir = filepath.Join(r.workspace, "skills", doc.Name())
	}
	return skills.ResolveWithin(dir, doc.EntryScript)
}

// decodeOutput parses stdout as JSON, falling back to trimmed text.
func decodeOutput(out []byte) any {
	var v any
	if err := json.Unmarshal(out, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(out))
}

func failure(origin string, code errors.ErrorCode, content string) core.Observation {
	return core.Failure(origin, content).WithMeta("error_code", string(code))
}

func nonNil(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
