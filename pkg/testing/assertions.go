// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/llm"
)

// Assertions reports soft failures on t and remembers whether any happened.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates an assertion helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed reports whether any assertion failed.
func (a *Assertions) Failed() bool { return a.failed }

func (a *Assertions) failf(format string, args ...any) {
	a.t.Helper()
	a.t.Errorf(format, args...)
	a.failed = true
}

// AssertEqual compares with ==.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.failf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNotEqual compares with !=.
func (a *Assertions) AssertNotEqual(unexpected, actual any, msg string) {
	a.t.Helper()
	if unexpected == actual {
		a.failf("%s: expected anything but %v", msg, actual)
	}
}

// AssertTrue checks a condition.
func (a *Assertions) AssertTrue(cond bool, msg string) {
	a.t.Helper()
	if !cond {
		a.failf("%s: expected true", msg)
	}
}

// AssertFalse checks a negated condition.
func (a *Assertions) AssertFalse(cond bool, msg string) {
	a.t.Helper()
	if cond {
		a.failf("%s: expected false", msg)
	}
}

// AssertContains checks for a substring.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.failf("%s: %q does not contain %q", msg, s, substr)
	}
}

// AssertNotContains checks for the absence of a substring.
func (a *Assertions) AssertNotContains(s, substr, msg string) {
	a.t.Helper()
	if strings.Contains(s, substr) {
		a.failf("%s: %q contains %q", msg, s, substr)
	}
}

// AssertError checks that err is set.
func (a *Assertions) AssertError(err error, msg string) {
	a.t.Helper()
	if err == nil {
		a.failf("%s: expected an error", msg)
	}
}

// AssertNoError checks that err is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.failf("%s: unexpected error: %v", msg, err)
	}
}

// AssertLen checks the length of a string, slice, array, map or channel.
func (a *Assertions) AssertLen(value any, expected int, msg string) {
	a.t.Helper()
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		if v.Len() != expected {
			a.failf("%s: expected length %d, got %d", msg, expected, v.Len())
		}
	default:
		a.failf("%s: cannot take the length of %T", msg, value)
	}
}

// RequireNoError stops the test on err.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual stops the test when the values differ.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// RequestAssertions checks a request sent to the reasoning backend.
type RequestAssertions struct {
	*Assertions
	req llm.ChatRequest
}

// AssertRequest starts request checks. A nil request fails immediately.
func (a *Assertions) AssertRequest(req *llm.ChatRequest) *RequestAssertions {
	a.t.Helper()
	r := &RequestAssertions{Assertions: a}
	if req == nil {
		a.failf("request is nil")
		return r
	}
	r.req = *req
	return r
}

// HasModel checks the model name.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.t.Helper()
	if r.req.Model != model {
		r.failf("expected model %q, got %q", model, r.req.Model)
	}
	return r
}

// HasMessageCount checks the number of messages.
func (r *RequestAssertions) HasMessageCount(n int) *RequestAssertions {
	r.t.Helper()
	if len(r.req.Messages) != n {
		r.failf("expected %d messages, got %d", n, len(r.req.Messages))
	}
	return r
}

// IsJSONMode checks that a single JSON object was requested.
func (r *RequestAssertions) IsJSONMode() *RequestAssertions {
	r.t.Helper()
	if !r.req.JSONMode {
		r.failf("expected a JSON mode request")
	}
	return r
}

// HasSystemMessage checks for a system message containing text.
func (r *RequestAssertions) HasSystemMessage(text string) *RequestAssertions {
	r.t.Helper()
	return r.hasMessage(llm.RoleSystem, text)
}

// HasUserMessage checks for a user message containing text.
func (r *RequestAssertions) HasUserMessage(text string) *RequestAssertions {
	r.t.Helper()
	return r.hasMessage(llm.RoleUser, text)
}

func (r *RequestAssertions) hasMessage(role llm.Role, text string) *RequestAssertions {
	r.t.Helper()
	for _, m := range r.req.Messages {
		if m.Role == role && strings.Contains(m.Content, text) {
			return r
		}
	}
	r.failf("no %s message contains %q", role, text)
	return r
}

// ResponseAssertions checks a backend response.
type ResponseAssertions struct {
	*Assertions
	resp llm.ChatResponse
}

// AssertResponse starts response checks. A nil response fails immediately.
func (a *Assertions) AssertResponse(resp *llm.ChatResponse) *ResponseAssertions {
	a.t.Helper()
	r := &ResponseAssertions{Assertions: a}
	if resp == nil {
		a.failf("response is nil")
		return r
	}
	r.resp = *resp
	return r
}

// HasContent checks that the content contains text.
func (r *ResponseAssertions) HasContent(text string) *ResponseAssertions {
	r.t.Helper()
	if !strings.Contains(r.resp.Content, text) {
		r.failf("response %q does not contain %q", r.resp.Content, text)
	}
	return r
}

// HasNoContent checks for an empty response.
func (r *ResponseAssertions) HasNoContent() *ResponseAssertions {
	r.t.Helper()
	if r.resp.Content != "" {
		r.failf("expected empty response, got %q", r.resp.Content)
	}
	return r
}

// ScenarioResultAssertions checks a scenario run.
type ScenarioResultAssertions struct {
	*Assertions
	result ScenarioResult
}

// AssertScenarioResult starts result checks. A nil result fails immediately.
func (a *Assertions) AssertScenarioResult(result *ScenarioResult) *ScenarioResultAssertions {
	a.t.Helper()
	s := &ScenarioResultAssertions{Assertions: a}
	if result == nil {
		a.failf("scenario result is nil")
		return s
	}
	s.result = *result
	return s
}

// Succeeded checks that the session returned no error.
func (s *ScenarioResultAssertions) Succeeded() *ScenarioResultAssertions {
	s.t.Helper()
	if s.result.Error != nil {
		s.failf("expected success, got %v", s.result.Error)
	}
	return s
}

// Failed checks that the session returned an error.
func (s *ScenarioResultAssertions) Failed() *ScenarioResultAssertions {
	s.t.Helper()
	if s.result.Error == nil {
		s.failf("expected the session to fail")
	}
	return s
}

// OutputEquals checks the final response.
func (s *ScenarioResultAssertions) OutputEquals(expected string) *ScenarioResultAssertions {
	s.t.Helper()
	if s.result.Output != expected {
		s.failf("expected output %q, got %q", expected, s.result.Output)
	}
	return s
}

// DecidedActions checks the kind:name sequence of decisions.
func (s *ScenarioResultAssertions) DecidedActions(labels ...string) *ScenarioResultAssertions {
	s.t.Helper()
	if got, want := FormatActions(s.result.Actions), "["+strings.Join(labels, ", ")+"]"; got != want {
		s.failf("expected actions %s, got %s", want, got)
	}
	return s
}

// ObservationAssertions checks one observation.
type ObservationAssertions struct {
	*Assertions
	obs core.Observation
}

// AssertObservation starts observation checks.
func (a *Assertions) AssertObservation(obs core.Observation) *ObservationAssertions {
	return &ObservationAssertions{Assertions: a, obs: obs}
}

// Succeeded checks the success status.
func (o *ObservationAssertions) Succeeded() *ObservationAssertions {
	o.t.Helper()
	if !o.obs.OK() {
		o.failf("expected success observation, got %q", o.obs.Text())
	}
	return o
}

// Failed checks the error status.
func (o *ObservationAssertions) Failed() *ObservationAssertions {
	o.t.Helper()
	if o.obs.OK() {
		o.failf("expected error observation, got %q", o.obs.Text())
	}
	return o
}

// HasOrigin checks where the observation came from.
func (o *ObservationAssertions) HasOrigin(origin string) *ObservationAssertions {
	o.t.Helper()
	if o.obs.Origin != origin {
		o.failf("expected origin %q, got %q", origin, o.obs.Origin)
	}
	return o
}

// TextContains checks the rendered content.
func (o *ObservationAssertions) TextContains(text string) *ObservationAssertions {
	o.t.Helper()
	if !strings.Contains(o.obs.Text(), text) {
		o.failf("observation %q does not contain %q", o.obs.Text(), text)
	}
	return o
}

// HasErrorCode checks the error_code metadata entry.
func (o *ObservationAssertions) HasErrorCode(code string) *ObservationAssertions {
	o.t.Helper()
	if got := fmt.Sprint(o.obs.Metadata["error_code"]); got != code {
		o.failf("expected error code %q, got %q", code, got)
	}
	return o
}
