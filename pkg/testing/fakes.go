// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/jllopis/skillsloop/pkg/core"
)

// ScriptedReasoner returns pre-defined actions in order and records the
// state it was asked with. Once the script is exhausted it repeats Fallback,
// or answers with a terminal respond action when Fallback is nil.
type ScriptedReasoner struct {
	mu       sync.Mutex
	actions  []core.Action
	index    int
	states   []core.AgentState
	Fallback *core.Action
}

// NewScriptedReasoner creates a reasoner that returns actions in order.
func NewScriptedReasoner(actions ...core.Action) *ScriptedReasoner {
	return &ScriptedReasoner{actions: actions}
}

// Repeat creates a reasoner that always returns action.
func Repeat(action core.Action) *ScriptedReasoner {
	return &ScriptedReasoner{Fallback: &action}
}

// Ask implements core.Reasoner.
func (r *ScriptedReasoner) Ask(_ context.Context, state core.AgentState) core.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	if r.index < len(r.actions) {
		a := r.actions[r.index]
		r.index++
		return a
	}
	if r.Fallback != nil {
		return *r.Fallback
	}
	return Respond("scripted reasoner: no more actions")
}

// States returns the states received so far.
func (r *ScriptedReasoner) States() []core.AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.AgentState(nil), r.states...)
}

// CallCount returns how many times Ask was called.
func (r *ScriptedReasoner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Respond builds a terminal respond action.
func Respond(text string) core.Action {
	return core.Action{
		Kind: core.ActionRespond,
		Name: "final_answer",
		Args: map[string]any{"response": text},
		Stop: true,
	}
}

// SkillAction builds a non-terminal skill action.
func SkillAction(name string, args map[string]any) core.Action {
	return core.Action{Kind: core.ActionSkill, Name: name, Args: args, Reason: "use " + name}
}

// ToolAction builds a non-terminal tool action.
func ToolAction(name string, args map[string]any) core.Action {
	return core.Action{Kind: core.ActionTool, Name: name, Args: args, Reason: "call " + name}
}

// MemoryStore is an in-memory skill catalog.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]core.SkillDocument
	order     []string
	listCalls int
	loads     []string
}

// NewMemoryStore creates a catalog holding docs, listed in the given order.
func NewMemoryStore(docs ...core.SkillDocument) *MemoryStore {
	s := &MemoryStore{docs: make(map[string]core.SkillDocument)}
	for _, d := range docs {
		s.Add(d)
	}
	return s
}

// Add registers a document.
func (s *MemoryStore) Add(doc core.SkillDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.Name()]; !ok {
		s.order = append(s.order, doc.Name())
	}
	s.docs[doc.Name()] = doc
}

// ListMetadata implements core.SkillStore.
func (s *MemoryStore) ListMetadata(ctx context.Context) ([]core.SkillDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]core.SkillDescriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.docs[name].Descriptor)
	}
	return out, nil
}

// LoadDocument implements core.SkillStore.
func (s *MemoryStore) LoadDocument(_ context.Context, name string) (core.SkillDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, name)
	doc, ok := s.docs[name]
	return doc, ok
}

// ListCalls returns how many times the catalog was listed.
func (s *MemoryStore) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// Loads returns the names passed to LoadDocument.
func (s *MemoryStore) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

// NewSkill builds a document with an entry script.
func NewSkill(name, description, entryScript string) core.SkillDocument {
	return core.SkillDocument{
		Descriptor:   core.SkillDescriptor{Name: name, Description: description, Version: core.DefaultSkillVersion},
		Instructions: fmt.Sprintf("Use %s.", name),
		EntryScript:  entryScript,
	}
}

// Call records one invocation of a fake collaborator.
type Call struct {
	Name string
	Args map[string]any
}

// RecordingRunner is a core.Runner that records its calls. Results come
// from RunFunc when set, else a success echoing the arguments.
type RecordingRunner struct {
	mu      sync.Mutex
	calls   []Call
	RunFunc func(ctx context.Context, doc core.SkillDocument, args map[string]any) core.Observation
}

// Run implements core.Runner.
func (r *RecordingRunner) Run(ctx context.Context, doc core.SkillDocument, args map[string]any) core.Observation {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: doc.Name(), Args: args})
	fn := r.RunFunc
	r.mu.Unlock()
	if fn != nil {
		return fn(ctx, doc, args)
	}
	return core.Success(doc.Name(), map[string]any{"args": args})
}

// Calls returns the recorded calls.
func (r *RecordingRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// RecordingToolClient is a core.ToolClient that records its calls.
type RecordingToolClient struct {
	mu       sync.Mutex
	calls    []Call
	stops    int
	CallFunc func(ctx context.Context, name string, args map[string]any) core.Observation
}

// CallTool implements core.ToolClient.
func (c *RecordingToolClient) CallTool(ctx context.Context, name string, args map[string]any) core.Observation {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Name: name, Args: args})
	fn := c.CallFunc
	c.mu.Unlock()
	if fn != nil {
		return fn(ctx, name, args)
	}
	return core.Success("mcp:"+name, []any{map[string]any{"type": "text", "text": "ok"}})
}

// Stop implements core.ToolClient.
func (c *RecordingToolClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

// Calls returns the recorded calls.
func (c *RecordingToolClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Stops returns how many times Stop was called.
func (c *RecordingToolClient) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}
