// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed errors with diagnostic context for skillsloop.
//
// Failures below the orchestrator boundary are never returned as Go errors;
// they are folded into observations. The typed error is still built so its
// code can travel in the observation metadata and in logs.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies errors for logs, metrics and observation metadata.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates a skill script or MCP tool failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a skill, script or tool was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeTransportClosed indicates the tool server closed its output stream.
	CodeTransportClosed ErrorCode = "TRANSPORT_CLOSED"

	// CodeProtocol indicates a malformed or error JSON-RPC response.
	CodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// CodeLLMError indicates a reasoning backend error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeConfig indicates invalid or unreadable configuration.
	CodeConfig ErrorCode = "CONFIG_ERROR"
)

// AgentError is a typed error carrying a code and free-form context.
// It implements the error interface and can be unwrapped with errors.As().
type AgentError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	out := struct {
		Message string         `json:"message"`
		Code    string         `json:"code"`
		Err     string         `json:"error,omitempty"`
		Context map[string]any `json:"context,omitempty"`
	}{
		Message: e.Error(),
		Code:    string(e.Code),
		Context: e.Context,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new AgentError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AgentError {
	return &AgentError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AgentError) WithContext(key string, value any) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// AsAgentError attempts to convert an error to an AgentError.
// Unknown errors are wrapped as CodeInternal.
func AsAgentError(err error) *AgentError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AgentError); ok {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of err, or "" when err is nil.
func CodeOf(err error) ErrorCode {
	if ae := AsAgentError(err); ae != nil {
		return ae.Code
	}
	return ""
}

// ExitCode maps an error code to a process exit status for the CLI.
func (e *AgentError) ExitCode() int {
	switch e.Code {
	case CodeInvalidInput, CodeConfig:
		return 2
	case CodeTimeout:
		return 124
	default:
		return 1
	}
}
