// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSessionAttributes(t *testing.T) {
	attrs := SessionAttributes("session-123", 6, 2)

	expected := map[string]any{
		AttrSessionID:       "session-123",
		AttrSessionMaxSteps: 6,
		AttrSessionSkills:   2,
	}

	assertAttributes(t, attrs, expected)
}

func TestOutcomeAttributes(t *testing.T) {
	assertAttributes(t, OutcomeAttributes("step_limit", 6), map[string]any{
		AttrSessionOutcome: "step_limit",
		AttrSessionSteps:   6,
	})
}

func TestActionAttributes(t *testing.T) {
	attrs := ActionAttributes(1, "skill", "web-research", "needs search", false, `{"query":"x"}`)

	expected := map[string]any{
		AttrStep:         1,
		AttrActionKind:   "skill",
		AttrActionName:   "web-research",
		AttrActionReason: "needs search",
		AttrActionStop:   false,
		AttrActionArgs:   `{"query":"x"}`,
	}

	assertAttributes(t, attrs, expected)
}

func TestActionAttributesOmitsEmptyAndTruncates(t *testing.T) {
	attrs := ActionAttributes(0, "respond", "", strings.Repeat("r", 400), true, "")
	for _, attr := range attrs {
		switch string(attr.Key) {
		case AttrActionName, AttrActionArgs:
			t.Errorf("unexpected attribute %s", attr.Key)
		case AttrActionReason:
			if got := len(attr.Value.AsString()); got != maxAttrLen+3 {
				t.Errorf("expected truncated reason, got length %d", got)
			}
		}
	}
}

func TestObservationAttributes(t *testing.T) {
	assertAttributes(t, ObservationAttributes("mcp:query-docs", "error", "TIMEOUT", 12.5), map[string]any{
		AttrObservationOrigin: "mcp:query-docs",
		AttrObservationStatus: "error",
		AttrObservationCode:   "TIMEOUT",
		AttrDurationMs:        12.5,
	})

	for _, attr := range ObservationAttributes("weather", "success", "", 0) {
		if attr.Key == AttrObservationCode || attr.Key == AttrDurationMs {
			t.Errorf("unexpected attribute %s", attr.Key)
		}
	}
}

func TestLLMAttributes(t *testing.T) {
	assertAttributes(t, LLMAttributes("gpt-4o", 3), map[string]any{
		AttrLLMModel:    "gpt-4o",
		AttrLLMMessages: 3,
	})
	assertAttributes(t, LLMUsageAttributes(10, 5), map[string]any{
		AttrLLMTokensInput:  10,
		AttrLLMTokensOutput: 5,
		AttrLLMTokensTotal:  15,
	})
}

func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
