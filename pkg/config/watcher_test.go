// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func startReloader(t *testing.T, args ...string) (*Reloader, <-chan [2]*Config) {
	t.Helper()
	r, err := NewReloader(args, WithReloadInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	changes := make(chan [2]*Config, 4)
	r.OnChange(func(prev, next *Config) { changes <- [2]*Config{prev, next} })

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	t.Cleanup(func() {
		cancel()
		r.Stop()
	})
	return r, changes
}

func waitChange(t *testing.T, changes <-chan [2]*Config) (prev, next *Config) {
	t.Helper()
	select {
	case c := <-changes:
		return c[0], c[1]
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	return nil, nil
}

func TestReloaderKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log:\n  level: info\n")

	r, changes := startReloader(t, "--config", path, "--set", "policy.max_steps=3")
	if got := r.Config(); got.Log.Level != "info" || got.Policy.MaxSteps != 3 {
		t.Fatalf("unexpected initial config %+v %+v", got.Log, got.Policy)
	}

	time.Sleep(30 * time.Millisecond)
	writeConfig(t, path, "log:\n  level: debug\npolicy:\n  max_steps: 9\n")

	prev, next := waitChange(t, changes)
	if prev.Log.Level != "info" || next.Log.Level != "debug" {
		t.Fatalf("expected info -> debug, got %q -> %q", prev.Log.Level, next.Log.Level)
	}
	if next.Policy.MaxSteps != 3 {
		t.Fatalf("--set override lost on reload, max_steps=%d", next.Policy.MaxSteps)
	}
	if r.Config() != next {
		t.Fatal("expected reloaded config to become current")
	}
}

func TestReloaderPicksUpNewProfileFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	writeConfig(t, base, "llm:\n  model: base\n")

	r, changes := startReloader(t, "--config", base, "--profile", "dev")
	if len(r.Paths()) != 2 || r.Paths()[1] != filepath.Join(dir, "config.dev.yaml") {
		t.Fatalf("unexpected watched paths %v", r.Paths())
	}
	if r.Config().LLM.Model != "base" {
		t.Fatalf("expected base model, got %q", r.Config().LLM.Model)
	}

	writeConfig(t, filepath.Join(dir, "config.dev.yaml"), "llm:\n  model: dev\n")
	if _, next := waitChange(t, changes); next.LLM.Model != "dev" {
		t.Fatalf("expected profile model, got %q", next.LLM.Model)
	}
}

func TestReloaderRejectsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "policy:\n  max_steps: 4\n")

	r, changes := startReloader(t, "--config", path)
	time.Sleep(30 * time.Millisecond)
	writeConfig(t, path, "policy:\n  max_steps: 0\n")

	select {
	case c := <-changes:
		t.Fatalf("invalid config must not be published: %+v", c[1].Policy)
	case <-time.After(200 * time.Millisecond):
	}
	if got := r.Config().Policy.MaxSteps; got != 4 {
		t.Fatalf("expected previous config to remain, got max_steps=%d", got)
	}
}

func TestReloaderStop(t *testing.T) {
	r, err := NewReloader(nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	if len(r.Paths()) != 0 {
		t.Fatalf("expected nothing to watch, got %v", r.Paths())
	}
	r.Start(context.Background())

	done := make(chan struct{})
	go func() {
		r.Stop()
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestNewReloaderInvalidArgs(t *testing.T) {
	if _, err := NewReloader([]string{"--set", "nokey"}); err == nil {
		t.Fatal("expected error for malformed --set")
	}
}
