// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator runs the bounded decide, execute and observe loop of a
// single session.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/errors"
	"github.com/jllopis/skillsloop/pkg/telemetry"
)

// DefaultMaxSteps is the step budget of a session.
const DefaultMaxSteps = 6

const (
	// FallbackResponse is returned when a terminal action carries no response.
	FallbackResponse = "I could not produce a response."
	// StepLimitResponse is returned when the budget runs out.
	StepLimitResponse = "Step limit reached for this task."

	noObservationNote = "The action produced no observation."
)

// Outcome is the reason a session ended.
type Outcome string

const (
	OutcomeRespond   Outcome = "respond"
	OutcomeStepLimit Outcome = "step_limit"
)

// Result is the outcome of one session.
type Result struct {
	Response string
	Outcome  Outcome
	State    core.AgentState
}

// Orchestrator wires the reasoning service to the skill catalog, the script
// runner and an optional tool client. Each call to Chat or Run owns its own
// state; sessions must not run concurrently on the same tool client.
type Orchestrator struct {
	store     core.SkillStore
	reasoner  core.Reasoner
	runner    core.Runner
	tools     core.ToolClient
	maxSteps  int
	logger    *slog.Logger
	tracer    trace.Tracer
	events    core.EventEmitter
	metrics   *telemetry.LoopMetrics
	sessionID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithToolClient enables tool actions.
func WithToolClient(c core.ToolClient) Option {
	return func(o *Orchestrator) {
		o.tools = c
	}
}

// WithMaxSteps sets the step budget. Non-positive values are ignored.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSessionIDFunc overrides how session ids are generated.
func WithSessionIDFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		o.sessionID = fn
	}
}

// WithEventEmitter sets the receiver of semantic events.
func WithEventEmitter(e core.EventEmitter) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.events = e
		}
	}
}

// WithMetrics records loop metrics.
func WithMetrics(m *telemetry.LoopMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator.
func New(store core.SkillStore, reasoner core.Reasoner, runner core.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		reasoner: reasoner,
		runner:   runner,
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
		tracer:   otel.Tracer("skillsloop/orchestrator"),
		events:   core.NoopEventEmitter{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxSteps returns the step budget.
func (o *Orchestrator) MaxSteps() int { return o.maxSteps }

// Chat runs one session and returns the final text.
func (o *Orchestrator) Chat(ctx context.Context, prompt string, onStep core.StepFunc) (string, error) {
	res, err := o.Run(ctx, prompt, onStep)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

// Run runs one session. The only error returned is the context error; every
// collaborator failure is folded into the conversation instead. On
// cancellation the tool server is stopped before returning.
func (o *Orchestrator) Run(ctx context.Context, prompt string, onStep core.StepFunc) (*Result, error) {
	var sessionID string
	if o.sessionID != nil {
		sessionID = o.sessionID()
		ctx = core.WithSessionID(ctx, sessionID)
	} else {
		ctx, sessionID = core.EnsureSessionID(ctx)
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Chat")
	defer span.End()
	log := o.logger.With(slog.String("session_id", sessionID))

	catalog, err := o.store.ListMetadata(ctx)
	if err != nil {
		return nil, o.abort(ctx, span, log, err)
	}

	state := core.NewAgentState(sessionID)
	state.Skills = catalog
	state.AddMessage(core.RoleUser, prompt)

	span.SetAttributes(telemetry.SessionAttributes(sessionID, o.maxSteps, len(catalog))...)
	log.Info("orchestrator.session.start",
		slog.Int("max_steps", o.maxSteps),
		slog.Int("skills", len(catalog)),
	)
	o.events.Emit(ctx, core.NewEvent(core.EventSessionStarted, sessionID, 0, map[string]any{
		"max_steps": o.maxSteps,
		"skills":    len(catalog),
	}))

	for state.Steps < o.maxSteps && !state.Complete {
		action := o.decide(ctx, state)
		if err := ctx.Err(); err != nil {
			return nil, o.abort(ctx, span, log, err)
		}

		if onStep != nil {
			onStep(state.Steps, action)
		}
		o.metrics.RecordStep(ctx, string(action.Kind))
		log.Debug("orchestrator.step.decide",
			slog.Int("step", state.Steps),
			slog.String("kind", string(action.Kind)),
			slog.String("name", action.Name),
			slog.String("reason", action.Reason),
			slog.Bool("stop", action.Stop),
		)
		o.events.Emit(ctx, core.NewEvent(core.EventActionDecided, sessionID, state.Steps, map[string]any{
			"kind":   string(action.Kind),
			"name":   action.Name,
			"reason": action.Reason,
			"stop":   action.Stop,
		}))

		if action.Terminal() {
			state.MarkComplete()
			response, ok := action.Response()
			if !ok {
				response = FallbackResponse
			}
			return o.finish(ctx, span, log, state, OutcomeRespond, response), nil
		}

		state.AddMessage(core.RoleAssistant, decisionRecord(action))

		obs, produced := o.dispatch(ctx, state.Steps, action)
		if err := ctx.Err(); err != nil {
			return nil, o.abort(ctx, span, log, err)
		}
		if !produced {
			log.Warn("orchestrator.step.no_observation",
				slog.Int("step", state.Steps),
				slog.String("kind", string(action.Kind)),
				slog.String("name", action.Name),
			)
			state.Advance(noObservationNote)
			continue
		}

		o.events.Emit(ctx, core.NewEvent(core.EventObservationRecorded, sessionID, state.Steps, map[string]any{
			"origin": obs.Origin,
			"status": string(obs.Status),
		}))
		state.AddObservation(obs)
	}

	return o.finish(ctx, span, log, state, OutcomeStepLimit, StepLimitResponse), nil
}

func (o *Orchestrator) decide(ctx context.Context, state *core.AgentState) core.Action {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Decide")
	defer span.End()
	action := o.reasoner.Ask(ctx, state.Snapshot())
	span.SetAttributes(telemetry.ActionAttributes(state.Steps, string(action.Kind), action.Name, action.Reason, action.Stop, action.ArgsJSON())...)
	return action
}

// dispatch executes a non-terminal action. It reports false when the action
// produced no observation.
func (o *Orchestrator) dispatch(ctx context.Context, step int, action core.Action) (core.Observation, bool) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Dispatch")
	defer span.End()
	start := time.Now()

	var (
		obs      core.Observation
		produced bool
	)
	switch action.Kind {
	case core.ActionSkill:
		doc, ok := o.store.LoadDocument(ctx, action.Name)
		if ok {
			obs = o.runner.Run(ctx, doc, action.Args)
		} else {
			obs = core.Failure(action.Name, fmt.Sprintf("Error: skill '%s' not found.", action.Name)).
				WithMeta("error_code", string(errors.CodeNotFound))
		}
		produced = true
	case core.ActionTool:
		if o.tools != nil {
			obs = o.tools.CallTool(ctx, action.Name, action.Args)
			produced = true
		}
	case core.ActionRespond:
		// Terminal; never dispatched.
	default:
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000
	if !produced {
		span.SetAttributes(telemetry.ActionAttributes(step, string(action.Kind), action.Name, action.Reason, action.Stop, action.ArgsJSON())...)
		return core.Observation{}, false
	}

	code, _ := obs.Metadata["error_code"].(string)
	span.SetAttributes(telemetry.ObservationAttributes(obs.Origin, string(obs.Status), code, durationMs)...)
	o.metrics.RecordObservation(ctx, string(action.Kind), string(obs.Status), durationMs)
	if !obs.OK() {
		span.SetStatus(codes.Error, obs.Text())
		if code == "" {
			code = string(errors.CodeInternal)
		}
		o.metrics.RecordError(ctx, errors.ErrorCode(code), string(action.Kind))
	}
	return obs, true
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, log *slog.Logger, state *core.AgentState, outcome Outcome, response string) *Result {
	span.SetAttributes(telemetry.OutcomeAttributes(string(outcome), state.Steps)...)
	o.metrics.RecordSession(ctx, string(outcome))
	log.Info("orchestrator.session.end",
		slog.String("outcome", string(outcome)),
		slog.Int("steps", state.Steps),
	)
	o.events.Emit(ctx, core.NewEvent(core.EventSessionCompleted, state.SessionID, state.Steps, map[string]any{
		"outcome": string(outcome),
	}))
	return &Result{Response: response, Outcome: outcome, State: state.Snapshot()}
}

func (o *Orchestrator) abort(ctx context.Context, span trace.Span, log *slog.Logger, cause error) error {
	if o.tools != nil {
		if err := o.tools.Stop(); err != nil {
			log.Warn("orchestrator.tools.stop_error", slog.String("error", err.Error()))
		}
	}
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	log.Info("orchestrator.session.cancelled", slog.String("error", cause.Error()))
	// ctx is already done; the metric is recorded against a detached context.
	o.metrics.RecordSession(context.WithoutCancel(ctx), "cancelled")
	return cause
}

func decisionRecord(a core.Action) string {
	return fmt.Sprintf("Decision: %s:%s (%s) Args: %s", a.Kind, a.Name, a.Reason, a.ArgsJSON())
}
