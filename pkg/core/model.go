// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the data model shared by the loop and its collaborators.
package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSkillVersion is used when a descriptor omits its version.
const DefaultSkillVersion = "1.0.0"

// SkillDescriptor is the level-1 catalog entry of a skill.
type SkillDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// SkillDocument is the level-2 document of a skill, loaded on demand.
type SkillDocument struct {
	Descriptor   SkillDescriptor
	Instructions string
	// EntryScript is relative to the skill directory. Empty when undeclared.
	EntryScript string
	References  []string
	// Dir is the directory the document was loaded from.
	Dir string
}

// Name returns the skill name.
func (d SkillDocument) Name() string { return d.Descriptor.Name }

// ActionKind selects the execution path of an Action.
type ActionKind string

const (
	ActionSkill   ActionKind = "skill"
	ActionTool    ActionKind = "tool"
	ActionRespond ActionKind = "respond"
)

// Valid reports whether k is one of the known kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSkill, ActionTool, ActionRespond:
		return true
	default:
		return false
	}
}

// Action is a decision returned by the reasoning service.
type Action struct {
	Kind   ActionKind     `json:"type"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Reason string         `json:"reason"`
	Stop   bool           `json:"stop"`
}

// Terminal reports whether the action ends the loop without dispatch.
func (a Action) Terminal() bool {
	return a.Kind == ActionRespond || a.Stop
}

// Response returns the "response" argument as text.
func (a Action) Response() (string, bool) {
	v, ok := a.Args["response"]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return FormatContent(v), true
}

// ArgsJSON renders the arguments as compact JSON.
func (a Action) ArgsJSON() string {
	if len(a.Args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(a.Args)
	if err != nil {
		return fmt.Sprint(a.Args)
	}
	return string(data)
}

// ObservationStatus is the outcome of an execution.
type ObservationStatus string

const (
	StatusSuccess ObservationStatus = "success"
	StatusError   ObservationStatus = "error"
)

// Observation is the normalized result of one execution.
type Observation struct {
	Origin   string            `json:"origin"`
	Content  any               `json:"content"`
	Status   ObservationStatus `json:"status"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// Success builds a successful observation.
func Success(origin string, content any) Observation {
	return Observation{Origin: origin, Content: content, Status: StatusSuccess, Metadata: map[string]any{}}
}

// Failure builds an error observation.
func Failure(origin string, content any) Observation {
	return Observation{Origin: origin, Content: content, Status: StatusError, Metadata: map[string]any{}}
}

// OK reports whether the observation succeeded.
func (o Observation) OK() bool { return o.Status == StatusSuccess }

// WithMeta sets a metadata entry and returns the observation.
func (o Observation) WithMeta(key string, value any) Observation {
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	o.Metadata[key] = value
	return o
}

// Text renders the content as text.
func (o Observation) Text() string { return FormatContent(o.Content) }

// FormatContent renders arbitrary observation content as text.
// Strings pass through; everything else is JSON encoded.
func FormatContent(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	case fmt.Stringer:
		return c.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return string(data)
}
