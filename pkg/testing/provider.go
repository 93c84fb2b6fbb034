// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/llm"
)

// ScenarioProvider is an llm.Provider that plays back a queue of replies
// and records every request.
type ScenarioProvider struct {
	mu       sync.Mutex
	replies  []reply
	next     int
	requests []llm.ChatRequest
	fallback error
}

type reply struct {
	content string
	err     error
}

// NewScenarioProvider creates an empty provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues raw response text.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.push(reply{content: content})
}

// AddAction queues the JSON encoding of action, as a backend in JSON mode
// would answer.
func (p *ScenarioProvider) AddAction(action core.Action) *ScenarioProvider {
	data, err := json.Marshal(action)
	if err != nil {
		return p.push(reply{err: err})
	}
	return p.push(reply{content: string(data)})
}

// AddErrorResponse queues a failed call.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.push(reply{err: err})
}

// AddUnavailable queues a 503 answer, which llm.RetryProvider retries.
func (p *ScenarioProvider) AddUnavailable() *ScenarioProvider {
	return p.push(reply{err: &llm.StatusError{
		Backend:    "scenario",
		StatusCode: http.StatusServiceUnavailable,
		Body:       "unavailable",
	}})
}

// WithDefaultError is returned once the queue is exhausted.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = err
	return p
}

func (p *ScenarioProvider) push(r reply) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, r)
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.next >= len(p.replies) {
		if p.fallback != nil {
			return nil, p.fallback
		}
		return nil, fmt.Errorf("no more scripted responses (call %d)", len(p.requests))
	}
	r := p.replies[p.next]
	p.next++
	if r.err != nil {
		return nil, r.err
	}
	return &llm.ChatResponse{Content: r.content}, nil
}

// Requests returns the captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}

// LastRequest returns the most recent request or nil.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of Chat calls.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Reset rewinds the queue and forgets captured requests.
func (p *ScenarioProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.requests = nil
}
