// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "fmt"

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ObservationPrefix marks history entries injected by the loop.
// They use the user role because some models discount system messages
// injected mid-conversation.
const ObservationPrefix = "[SYSTEM OBSERVATION]"

// Message is one history entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentState is the mutable state of one session.
type AgentState struct {
	SessionID    string
	History      []Message
	Steps        int
	Observations []Observation
	// Skills is the catalog snapshot taken when the session started.
	Skills   []SkillDescriptor
	Complete bool
}

// NewAgentState creates the state for a new session.
func NewAgentState(sessionID string) *AgentState {
	return &AgentState{SessionID: sessionID}
}

// AddMessage appends a history entry.
func (s *AgentState) AddMessage(role Role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
}

// AddObservation records an observation, reports it in the history and
// completes the current step.
func (s *AgentState) AddObservation(obs Observation) {
	s.Observations = append(s.Observations, obs)
	label := "SUCCESS"
	if !obs.OK() {
		label = "ERROR"
	}
	s.AddMessage(RoleUser, fmt.Sprintf("%s Result from %s (%s):\n%s", ObservationPrefix, obs.Origin, label, obs.Text()))
	s.Steps++
}

// Advance completes the current step without an observation.
func (s *AgentState) Advance(note string) {
	if note != "" {
		s.AddMessage(RoleUser, ObservationPrefix+" "+note)
	}
	s.Steps++
}

// MarkComplete sets the completion flag. It is never cleared.
func (s *AgentState) MarkComplete() {
	s.Complete = true
}

// Snapshot returns a copy that does not share slices with s.
func (s *AgentState) Snapshot() AgentState {
	out := *s
	out.History = append([]Message(nil), s.History...)
	out.Observations = append([]Observation(nil), s.Observations...)
	out.Skills = append([]SkillDescriptor(nil), s.Skills...)
	return out
}

// LastObservation returns the most recent observation, if any.
func (s *AgentState) LastObservation() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}
