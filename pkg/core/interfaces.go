// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "context"

// SkillStore discovers skills and loads their full documents on demand.
//
// ListMetadata is the level-1 listing; LoadDocument is the level-2 fetch.
// Malformed or missing descriptors are skipped or reported absent, never
// returned as errors.
type SkillStore interface {
	ListMetadata(ctx context.Context) ([]SkillDescriptor, error)
	LoadDocument(ctx context.Context, name string) (SkillDocument, bool)
}

// Reasoner decides the next action for a session.
//
// Ask receives a copy of the current state. Implementations must not fail:
// on internal errors they return a terminal respond action instead.
type Reasoner interface {
	Ask(ctx context.Context, state AgentState) Action
}

// Runner executes a skill's entry script.
type Runner interface {
	Run(ctx context.Context, doc SkillDocument, args map[string]any) Observation
}

// ToolClient calls tools on an out-of-process tool server.
type ToolClient interface {
	CallTool(ctx context.Context, name string, args map[string]any) Observation
	Stop() error
}
