//go:build ignore

// SPDX-License-Identifier: Apache-2.0
// skillsloop Observability Dashboards
// Dashboard templates for the OpenTelemetry metrics and spans emitted by the
// orchestrator, reasoner and runner. Enable them with telemetry.exporter set
// to stdout or otlp.
//
// DASHBOARD: Session Outcomes
//   How sessions end and how long they take to get there.
//
//   Queries:
//   - skillsloop.sessions.total{outcome} (rate 5m)
//     Metric: Sessions by outcome (respond, step_limit, cancelled)
//     Display: Stacked bar chart
//     Alert Threshold: step_limit / total > 20% over 1h
//
//   - skillsloop.steps.total{kind} (rate 5m)
//     Metric: Decisions by action kind (skill, tool, respond)
//     Display: Line chart with legend
//     Goal: steps per session stays well under policy.max_steps
//
// DASHBOARD: Dispatch
//   Skill scripts and MCP tool calls.
//
//   Queries:
//   - skillsloop.observations.total{kind,status}
//     Metric: Observations by origin kind and status
//     Display: Status grid, success in green, error in red
//
//   - skillsloop.dispatch.duration{kind} (p50, p95, p99)
//     Metric: Dispatch latency in milliseconds
//     Display: Heatmap
//     Threshold: p99 close to policy.skill_timeout or policy.mcp_timeout
//
// DASHBOARD: Errors
//   Failures folded into observations.
//
//   Queries:
//   - skillsloop.errors.total{error.code,component} (rate 5m)
//     Metric: Errors by code (TIMEOUT, NOT_FOUND, TOOL_FAILURE, TRANSPORT_CLOSED, ...)
//     Display: Line chart with legend
//     Alert Threshold: TRANSPORT_CLOSED > 0 means the MCP server died
//
// TRACES
//   Orchestrator.Chat is the root span of one session. Each iteration adds
//   Orchestrator.Decide (with Reasoner.Ask and the LLM call below it) and
//   Orchestrator.Dispatch. Filter by skillsloop.session.id to follow a
//   session, or by skillsloop.action.name to compare skills.
//
// USAGE PATTERNS
//
// 1. Prompt tuning:
//    - Compare skillsloop.errors.total{component="skill"} before and after
//      editing soul.md or a SKILL.md description
//
// 2. Budget tuning:
//    - Raise policy.max_steps only when step_limit outcomes correlate with
//      sessions that were still making progress
//
package main
