// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires slog and OpenTelemetry for the decision loop.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for loop telemetry.
const (
	// Session attributes
	AttrSessionID       = "skillsloop.session.id"
	AttrSessionMaxSteps = "skillsloop.session.max_steps"
	AttrSessionSteps    = "skillsloop.session.steps"
	AttrSessionOutcome  = "skillsloop.session.outcome"
	AttrSessionSkills   = "skillsloop.session.skills_count"

	// Action attributes
	AttrStep         = "skillsloop.step"
	AttrActionKind   = "skillsloop.action.kind"
	AttrActionName   = "skillsloop.action.name"
	AttrActionReason = "skillsloop.action.reason"
	AttrActionStop   = "skillsloop.action.stop"
	AttrActionArgs   = "skillsloop.action.arguments"

	// Observation attributes
	AttrObservationOrigin = "skillsloop.observation.origin"
	AttrObservationStatus = "skillsloop.observation.status"
	AttrObservationCode   = "skillsloop.observation.error_code"
	AttrDurationMs        = "skillsloop.dispatch.duration_ms"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
)

// maxAttrLen bounds free-text attribute values.
const maxAttrLen = 256

// SessionAttributes returns attributes for the session span.
func SessionAttributes(sessionID string, maxSteps, skills int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.Int(AttrSessionMaxSteps, maxSteps),
		attribute.Int(AttrSessionSkills, skills),
	}
}

// OutcomeAttributes returns the attributes recorded when a session ends.
func OutcomeAttributes(outcome string, steps int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionOutcome, outcome),
		attribute.Int(AttrSessionSteps, steps),
	}
}

// ActionAttributes returns attributes describing a decision.
func ActionAttributes(step int, kind, name, reason string, stop bool, argsJSON string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrStep, step),
		attribute.String(AttrActionKind, kind),
		attribute.Bool(AttrActionStop, stop),
	}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrActionName, name))
	}
	if reason != "" {
		attrs = append(attrs, attribute.String(AttrActionReason, truncate(reason, maxAttrLen)))
	}
	if argsJSON != "" {
		attrs = append(attrs, attribute.String(AttrActionArgs, truncate(argsJSON, maxAttrLen)))
	}
	return attrs
}

// ObservationAttributes returns attributes describing an execution result.
func ObservationAttributes(origin, status, errorCode string, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrObservationOrigin, origin),
		attribute.String(AttrObservationStatus, status),
	}
	if errorCode != "" {
		attrs = append(attrs, attribute.String(AttrObservationCode, errorCode))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrDurationMs, durationMs))
	}
	return attrs
}

// LLMAttributes returns attributes for a reasoning request.
func LLMAttributes(model string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
		attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens),
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
