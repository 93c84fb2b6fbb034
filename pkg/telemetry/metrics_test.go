// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"

	"github.com/jllopis/skillsloop/pkg/errors"
)

func TestNewLoopMetrics(t *testing.T) {
	m, err := NewLoopMetrics()
	if err != nil {
		t.Fatalf("failed to create loop metrics: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil LoopMetrics")
	}

	ctx := context.Background()
	m.RecordSession(ctx, "respond")
	m.RecordStep(ctx, "skill")
	m.RecordObservation(ctx, "tool", "error", 12.5)
	m.RecordError(ctx, errors.CodeTimeout, "runner")
	m.RecordError(ctx, "", "mcp")
}

func TestNilLoopMetricsIsNoop(t *testing.T) {
	var m *LoopMetrics
	ctx := context.Background()
	m.RecordSession(ctx, "step_limit")
	m.RecordStep(ctx, "respond")
	m.RecordObservation(ctx, "skill", "success", 1)
	m.RecordError(ctx, errors.CodeToolFailure, "runner")
}
