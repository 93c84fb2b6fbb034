// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultReloadInterval is how often watched files are polled.
const DefaultReloadInterval = time.Second

// Reloader re-applies a CLI invocation whenever one of its config files
// changes, so --set overrides survive a reload. A reload that fails to load
// or validate is logged and the previous config stays current.
type Reloader struct {
	opts     options
	paths    []string
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	current *Config
	stamps  map[string]fileStamp
	subs    []func(prev, next *Config)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// fileStamp identifies one version of a file. A file that does not exist yet
// has a zero stamp, so creating it counts as a change.
type fileStamp struct {
	exists bool
	size   int64
	mod    time.Time
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadInterval sets the polling interval.
func WithReloadInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReloadLogger sets the logger.
func WithReloadLogger(l *slog.Logger) ReloaderOption {
	return func(r *Reloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReloader loads args the way LoadWithCLI does and remembers the files the
// result depends on: the --config file and its profile overlay, which may not
// exist yet.
func NewReloader(args []string, opts ...ReloaderOption) (*Reloader, error) {
	o, err := parseCLI(args)
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		opts:     o,
		paths:    watchedPaths(o),
		interval: DefaultReloadInterval,
		logger:   slog.Default(),
		stamps:   make(map[string]fileStamp),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	cfg, err := r.load()
	if err != nil {
		return nil, err
	}
	r.current = cfg
	for _, p := range r.paths {
		r.stamps[p] = stampOf(p)
	}
	return r, nil
}

// Paths returns the watched files.
func (r *Reloader) Paths() []string {
	return append([]string(nil), r.paths...)
}

// Config returns the current configuration.
func (r *Reloader) Config() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnChange registers fn to run after every successful reload.
func (r *Reloader) OnChange(fn func(prev, next *Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Start polls in the background until ctx is done or Stop is called.
func (r *Reloader) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop ends polling and waits for the loop to exit. It must follow Start and
// may be called more than once.
func (r *Reloader) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reloader) run(ctx context.Context) {
	defer close(r.done)
	if len(r.paths) == 0 {
		select {
		case <-ctx.Done():
		case <-r.stop:
		}
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			if changed := r.changed(); len(changed) > 0 {
				r.reload(changed)
			}
		}
	}
}

func (r *Reloader) changed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.paths {
		s := stampOf(p)
		if s != r.stamps[p] {
			r.stamps[p] = s
			out = append(out, p)
		}
	}
	return out
}

func (r *Reloader) reload(changed []string) {
	log := r.logger.With(slog.String("files", strings.Join(changed, ",")))
	cfg, err := r.load()
	if err != nil {
		log.Error("config.reload.error", slog.String("error", err.Error()))
		return
	}

	r.mu.Lock()
	prev := r.current
	r.current = cfg
	subs := append([]func(prev, next *Config)(nil), r.subs...)
	r.mu.Unlock()

	log.Info("config.reload.done")
	for _, fn := range subs {
		fn(prev, cfg)
	}
}

func (r *Reloader) load() (*Config, error) {
	cfg, err := load(r.opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func watchedPaths(o options) []string {
	if o.path == "" {
		return nil
	}
	paths := []string{o.path}
	if o.profile != "" {
		ext := filepath.Ext(o.path)
		paths = append(paths, strings.TrimSuffix(o.path, ext)+"."+o.profile+ext)
	}
	return paths
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: info.Size(), mod: info.ModTime()}
}
