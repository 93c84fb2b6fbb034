// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp talks to out-of-process tool servers over stdio.
//
// StdioClient speaks the minimal line protocol: one JSON-RPC request line per
// call and exactly one response line back. SessionClient performs the full
// MCP handshake through mcp-go. Both satisfy core.ToolClient.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/errors"
)

// DefaultCallTimeout bounds a single tools/call round trip.
const DefaultCallTimeout = 60 * time.Second

const stopGrace = 2 * time.Second

// StdioClient owns at most one child process and serializes calls on it.
//
// Framing is strictly one line per message. Servers that emit multi-line
// JSON or interleave notifications are not supported. A call that times out
// tears the child down so a late response can never answer a later call; the
// next call spawns a fresh process. Responses whose id differs from the
// request are rejected.
type StdioClient struct {
	command     string
	args        []string
	env         []string
	callTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	nextID int64
	conn   *stdioConn
}

// Option configures a StdioClient.
type Option func(*StdioClient)

// WithCallTimeout sets the per-call timeout. Use 0 to wait indefinitely.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *StdioClient) {
		if timeout >= 0 {
			c.callTimeout = timeout
		}
	}
}

// WithEnv appends environment variables for the child process.
func WithEnv(env ...string) Option {
	return func(c *StdioClient) {
		c.env = append(c.env, env...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *StdioClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewStdioClient creates a client for the given server command. The process
// is started on the first call.
func NewStdioClient(command string, args []string, opts ...Option) *StdioClient {
	c := &StdioClient{
		command:     command,
		args:        append([]string(nil), args...),
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
		nextID:      1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ core.ToolClient = (*StdioClient)(nil)

type request struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      int64              `json:"id"`
	Method  string             `json:"method"`
	Params  mcp.CallToolParams `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CallTool invokes a tool. Every failure is reported as an error observation.
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]any) core.Observation {
	origin := "mcp:" + name

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureConnected()
	if err != nil {
		c.logger.WarnContext(ctx, "mcp.spawn.error",
			slog.String("command", c.command),
			slog.String("error", err.Error()),
		)
		return failure(origin, errors.CodeTransportClosed, fmt.Sprintf("MCP connection error: %v", err))
	}

	id := c.nextID
	c.nextID++

	line, err := json.Marshal(request{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Method:  string(mcp.MethodToolsCall),
		Params:  mcp.CallToolParams{Name: name, Arguments: nonNil(args)},
	})
	if err != nil {
		return failure(origin, errors.CodeInvalidInput, fmt.Sprintf("MCP connection error: %v", err))
	}
	if _, err := conn.stdin.Write(append(line, '\n')); err != nil {
		c.logger.WarnContext(ctx, "mcp.call.write_error",
			slog.String("tool", name),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return failure(origin, errors.CodeTransportClosed, fmt.Sprintf("MCP connection error: %v", err))
	}

	var timeout <-chan time.Time
	if c.callTimeout > 0 {
		timer := time.NewTimer(c.callTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case raw, ok := <-conn.lines:
		if !ok {
			c.logger.WarnContext(ctx, "mcp.call.closed", slog.String("tool", name), slog.Int64("id", id))
			return failure(origin, errors.CodeTransportClosed, "Error: MCP server closed the connection.")
		}
		return c.decode(origin, id, raw)
	case <-timeout:
		c.logger.WarnContext(ctx, "mcp.call.timeout",
			slog.String("tool", name),
			slog.Int64("id", id),
			slog.Duration("timeout", c.callTimeout),
		)
		if err := c.closeLocked(); err != nil {
			c.logger.WarnContext(ctx, "mcp.stop.error", slog.String("error", err.Error()))
		}
		return failure(origin, errors.CodeTimeout, fmt.Sprintf("Error: MCP call exceeded the %s timeout.", c.callTimeout))
	case <-ctx.Done():
		// The session is being torn down; the child goes with it.
		_ = c.closeLocked()
		return failure(origin, errors.CodeInternal, "Error: MCP call cancelled.")
	}
}

func (c *StdioClient) decode(origin string, id int64, raw string) core.Observation {
	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		c.logger.Warn("mcp.call.protocol_error",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return failure(origin, errors.CodeProtocol, fmt.Sprintf("MCP connection error: invalid response: %v", err))
	}
	if !sameID(resp.ID, id) {
		c.logger.Warn("mcp.call.id_mismatch",
			slog.Int64("id", id),
			slog.String("got", string(resp.ID)),
		)
		return failure(origin, errors.CodeProtocol,
			fmt.Sprintf("MCP connection error: response id %s does not match request id %d", resp.ID, id))
	}
	if resp.Error != nil {
		return failure(origin, errors.CodeToolFailure, "MCP error: "+resp.Error.Message).
			WithMeta("rpc_code", resp.Error.Code)
	}

	var result any
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return failure(origin, errors.CodeProtocol, fmt.Sprintf("MCP connection error: invalid result: %v", err))
		}
	}
	content := result
	if m, ok := result.(map[string]any); ok {
		if v, found := m["content"]; found {
			content = v
		}
	} else if result == nil {
		content = map[string]any{}
	}
	return core.Success(origin, content).WithMeta("id", id)
}

// sameID reports whether a response id answers request id. A missing or null
// id is accepted: servers use it for errors raised before the id was read.
func sameID(raw json.RawMessage, id int64) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return true
	}
	var got int64
	return json.Unmarshal(raw, &got) == nil && got == id
}

// Stop terminates the child process. It is a no-op when none is running.
func (c *StdioClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *StdioClient) ensureConnected() (*stdioConn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := startConn(c.command, c.args, c.env, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("mcp.spawn",
		slog.String("command", c.command),
		slog.Int("pid", conn.cmd.Process.Pid),
	)
	c.conn = conn
	return conn, nil
}

func (c *StdioClient) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.close()
	c.conn = nil
	return err
}

// stdioConn is a running child with a line reader on its stdout.
type stdioConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	done   chan struct{}
	exited chan struct{}
}

func startConn(command string, args, env []string, logger *slog.Logger) (*stdioConn, error) {
	if strings.TrimSpace(command) == "" {
		return nil, stderrors.New("no server command configured")
	}
	cmd := exec.Command(command, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	conn := &stdioConn{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	readers := sync.WaitGroup{}
	readers.Add(2)
	go func() {
		defer readers.Done()
		conn.readLines(stdout)
	}()
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug("mcp.server.stderr", slog.String("line", scanner.Text()))
		}
	}()
	go func() {
		readers.Wait()
		_ = cmd.Wait()
		close(conn.exited)
	}()
	return conn, nil
}

// readLines forwards complete stdout lines until EOF, then closes lines.
func (c *stdioConn) readLines(r io.Reader) {
	defer close(c.lines)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			select {
			case c.lines <- strings.TrimRight(line, "\r\n"):
			case <-c.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// close ends the child: stdin is closed and SIGTERM sent, then the process
// is killed if it is still running after stopGrace.
func (c *stdioConn) close() error {
	close(c.done)
	_ = c.stdin.Close()
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		// Platforms without SIGTERM go straight to Kill.
		_ = c.cmd.Process.Kill()
	}
	select {
	case <-c.exited:
		return nil
	case <-time.After(stopGrace):
	}
	if err := c.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop mcp server: %w", err)
	}
	select {
	case <-c.exited:
	case <-time.After(stopGrace):
		// A grandchild still holds the pipes open.
	}
	return nil
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
