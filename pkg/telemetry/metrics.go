// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/skillsloop/pkg/errors"
)

// LoopMetrics tracks sessions, steps and execution outcomes.
// A nil *LoopMetrics is valid and records nothing.
type LoopMetrics struct {
	sessions     metric.Int64Counter
	steps        metric.Int64Counter
	observations metric.Int64Counter
	errors       metric.Int64Counter
	dispatch     metric.Float64Histogram
}

// NewLoopMetrics creates the loop instruments on the global meter provider.
func NewLoopMetrics() (*LoopMetrics, error) {
	meter := otel.Meter("skillsloop/orchestrator")

	sessions, err := meter.Int64Counter(
		"skillsloop.sessions.total",
		metric.WithDescription("Completed sessions by outcome"),
	)
	if err != nil {
		return nil, err
	}
	steps, err := meter.Int64Counter(
		"skillsloop.steps.total",
		metric.WithDescription("Decisions taken by action kind"),
	)
	if err != nil {
		return nil, err
	}
	observations, err := meter.Int64Counter(
		"skillsloop.observations.total",
		metric.WithDescription("Observations by origin kind and status"),
	)
	if err != nil {
		return nil, err
	}
	errCounter, err := meter.Int64Counter(
		"skillsloop.errors.total",
		metric.WithDescription("Execution errors by code and component"),
	)
	if err != nil {
		return nil, err
	}
	dispatch, err := meter.Float64Histogram(
		"skillsloop.dispatch.duration",
		metric.WithDescription("Dispatch duration by action kind"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &LoopMetrics{
		sessions:     sessions,
		steps:        steps,
		observations: observations,
		errors:       errCounter,
		dispatch:     dispatch,
	}, nil
}

// RecordSession counts a finished session.
func (m *LoopMetrics) RecordSession(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStep counts a decision.
func (m *LoopMetrics) RecordStep(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordObservation counts an observation and its dispatch latency.
func (m *LoopMetrics) RecordObservation(ctx context.Context, kind, status string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	)
	m.observations.Add(ctx, 1, attrs)
	m.dispatch.Record(ctx, durationMs, attrs)
}

// RecordError counts an execution error by code.
func (m *LoopMetrics) RecordError(ctx context.Context, code errors.ErrorCode, component string) {
	if m == nil {
		return
	}
	if code == "" {
		code = errors.CodeInternal
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(code)),
		attribute.String("component", component),
	))
}
