// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides helpers for testing the decision loop: declarative
// session scenarios, scripted reasoners and providers, recording fakes for the
// runner and tool client, and assertion helpers.
//
//	scenario := testing.NewScenario("weather").
//	    WithInput("weather in Madrid?").
//	    ExpectSequence("skill:weather", "respond:final_answer").
//	    ExpectOutput(testing.Contains("Madrid"))
//
//	result := scenario.Run(t, orch)
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/skillsloop/pkg/core"
)

// DefaultScenarioTimeout bounds a scenario run unless WithTimeout is used.
const DefaultScenarioTimeout = 30 * time.Second

// SessionRunner runs one session for a prompt, reporting each decision.
// *orchestrator.Orchestrator satisfies it.
type SessionRunner interface {
	Chat(ctx context.Context, prompt string, onStep core.StepFunc) (string, error)
}

// Scenario is one prompt sent through a SessionRunner plus the checks that
// must hold afterwards.
type Scenario struct {
	name    string
	input   string
	ctx     context.Context
	timeout time.Duration
	events  *EventCollector
	checks  []Expectation
}

// Expectation is a named check over a ScenarioResult.
type Expectation interface {
	Check(result *ScenarioResult) error
	Description() string
}

// ScenarioResult is what a scenario run observed.
type ScenarioResult struct {
	Output   string
	Error    error
	Events   []core.Event
	Actions  []ActionRecord
	Duration time.Duration
}

// ActionRecord is one decision reported through the step callback.
type ActionRecord struct {
	Step   int
	Action core.Action
}

// Label renders the record as kind:name.
func (r ActionRecord) Label() string {
	return string(r.Action.Kind) + ":" + r.Action.Name
}

// NewScenario creates a scenario.
func NewScenario(name string) *Scenario {
	return &Scenario{name: name, ctx: context.Background(), timeout: DefaultScenarioTimeout}
}

// WithInput sets the user prompt.
func (s *Scenario) WithInput(input string) *Scenario {
	s.input = input
	return s
}

// WithContext sets the parent context of the run.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.ctx = ctx
	return s
}

// WithTimeout bounds the run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithEventCollector copies the collector's events into the result. The
// collector must be the one wired into the runner.
func (s *Scenario) WithEventCollector(c *EventCollector) *Scenario {
	s.events = c
	return s
}

// Expect adds a check.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.checks = append(s.checks, exp)
	return s
}

// ExpectOutput checks the final response.
func (s *Scenario) ExpectOutput(m StringMatcher) *Scenario {
	return s.Expect(expect("output "+m.Description(), func(r *ScenarioResult) error {
		if !m.Match(r.Output) {
			return fmt.Errorf("output %q does not match", r.Output)
		}
		return nil
	}))
}

// ExpectNoError checks that the session returned no error.
func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect(expect("no error", func(r *ScenarioResult) error {
		if r.Error != nil {
			return fmt.Errorf("got error: %v", r.Error)
		}
		return nil
	}))
}

// ExpectError checks that the session failed with a matching error.
func (s *Scenario) ExpectError(m StringMatcher) *Scenario {
	return s.Expect(expect("error "+m.Description(), func(r *ScenarioResult) error {
		if r.Error == nil {
			return fmt.Errorf("got no error")
		}
		if !m.Match(r.Error.Error()) {
			return fmt.Errorf("error %q does not match", r.Error.Error())
		}
		return nil
	}))
}

// ExpectAction checks that a decision of kind and name was made at some step.
func (s *Scenario) ExpectAction(kind core.ActionKind, name string) *Scenario {
	label := string(kind) + ":" + name
	return s.Expect(expect("action "+label, func(r *ScenarioResult) error {
		for _, rec := range r.Actions {
			if rec.Label() == label {
				return nil
			}
		}
		return fmt.Errorf("not decided, got %s", FormatActions(r.Actions))
	}))
}

// ExpectSequence checks the exact kind:name sequence of decisions.
func (s *Scenario) ExpectSequence(labels ...string) *Scenario {
	want := strings.Join(labels, ", ")
	return s.Expect(expect("sequence ["+want+"]", func(r *ScenarioResult) error {
		if got := FormatActions(r.Actions); got != "["+want+"]" {
			return fmt.Errorf("got %s", got)
		}
		return nil
	}))
}

// ExpectSteps checks the number of non-terminal decisions.
func (s *Scenario) ExpectSteps(n int) *Scenario {
	return s.Expect(expect(fmt.Sprintf("%d steps", n), func(r *ScenarioResult) error {
		got := 0
		for _, rec := range r.Actions {
			if !rec.Action.Terminal() {
				got++
			}
		}
		if got != n {
			return fmt.Errorf("got %d steps", got)
		}
		return nil
	}))
}

// ExpectEvent checks that an event of the given type was emitted.
func (s *Scenario) ExpectEvent(eventType core.EventType) *Scenario {
	return s.Expect(expect(fmt.Sprintf("event %q", eventType), func(r *ScenarioResult) error {
		for _, ev := range r.Events {
			if ev.Type == eventType {
				return nil
			}
		}
		return fmt.Errorf("not emitted")
	}))
}

// ExpectMaxDuration checks the wall time of the run.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(expect(fmt.Sprintf("duration <= %v", d), func(r *ScenarioResult) error {
		if r.Duration > d {
			return fmt.Errorf("took %v", r.Duration)
		}
		return nil
	}))
}

// Run sends the prompt through runner and records what happened.
func (s *Scenario) Run(t *testing.T, runner SessionRunner) *ScenarioResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		actions []ActionRecord
	)
	onStep := func(step int, action core.Action) {
		mu.Lock()
		actions = append(actions, ActionRecord{Step: step, Action: action})
		mu.Unlock()
	}

	start := time.Now()
	output, err := runner.Chat(ctx, s.input, onStep)
	result := &ScenarioResult{Output: output, Error: err, Duration: time.Since(start)}

	mu.Lock()
	result.Actions = actions
	mu.Unlock()
	if s.events != nil {
		result.Events = s.events.Events()
	}
	return result
}

// Assert reports every failed check of scenario.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()
	for _, c := range scenario.checks {
		if err := c.Check(r); err != nil {
			t.Errorf("scenario %q: expected %s: %v", scenario.name, c.Description(), err)
		}
	}
}

type funcExpectation struct {
	desc string
	fn   func(*ScenarioResult) error
}

func expect(desc string, fn func(*ScenarioResult) error) Expectation {
	return funcExpectation{desc: desc, fn: fn}
}

func (e funcExpectation) Check(r *ScenarioResult) error { return e.fn(r) }
func (e funcExpectation) Description() string { return e.desc }

// StringMatcher matches a response or error text.
type StringMatcher struct {
	desc  string
	match func(string) bool
}

// Match reports whether s matches.
func (m StringMatcher) Match(s string) bool { return m.match(s) }

// Description describes the matcher.
func (m StringMatcher) Description() string { return m.desc }

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return StringMatcher{fmt.Sprintf("contains %q", substr), func(s string) bool {
		return strings.Contains(s, substr)
	}}
}

// Equals matches exactly.
func Equals(expected string) StringMatcher {
	return StringMatcher{fmt.Sprintf("equals %q", expected), func(s string) bool {
		return s == expected
	}}
}

// HasPrefix matches strings starting with prefix.
func HasPrefix(prefix string) StringMatcher {
	return StringMatcher{fmt.Sprintf("has prefix %q", prefix), func(s string) bool {
		return strings.HasPrefix(s, prefix)
	}}
}

// Regex matches against pattern. An invalid pattern matches nothing.
func Regex(pattern string) StringMatcher {
	re, err := regexp.Compile(pattern)
	return StringMatcher{fmt.Sprintf("matches %q", pattern), func(s string) bool {
		return err == nil && re.MatchString(s)
	}}
}

// FormatActions renders decisions as [kind:name, ...].
func FormatActions(actions []ActionRecord) string {
	labels := make([]string, len(actions))
	for i, rec := range actions {
		labels[i] = rec.Label()
	}
	return "[" + strings.Join(labels, ", ") + "]"
}
