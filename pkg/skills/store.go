// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/skillsloop/pkg/core"
)

// FSStore is a filesystem-backed skill catalog rooted at a directory whose
// immediate subdirectories are skills.
//
// The catalog is re-scanned on every ListMetadata call; nothing is cached.
type FSStore struct {
	root     string
	fileName string
	logger   *slog.Logger
}

// StoreOption configures an FSStore.
type StoreOption func(*FSStore)

// WithLogger sets the logger used to report skipped entries.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *FSStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDescriptorFile overrides the descriptor file name.
func WithDescriptorFile(name string) StoreOption {
	return func(s *FSStore) {
		if strings.TrimSpace(name) != "" {
			s.fileName = name
		}
	}
}

// NewFSStore creates a store rooted at root.
func NewFSStore(root string, opts ...StoreOption) *FSStore {
	s := &FSStore{
		root:     root,
		fileName: DescriptorFile,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the catalog root directory.
func (s *FSStore) Root() string { return s.root }

var _ core.SkillStore = (*FSStore)(nil)

// ListMetadata scans the root for skill directories. A missing root yields an
// empty listing. Entries without a valid header are skipped. The only error
// returned is the context error.
func (s *FSStore) ListMetadata(ctx context.Context) ([]core.SkillDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("skills.catalog.read_error",
				slog.String("root", s.root),
				slog.String("error", err.Error()),
			)
		}
		return []core.SkillDescriptor{}, nil
	}

	out := make([]core.SkillDescriptor, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		doc, ok := s.load(entry.Name())
		if !ok {
			continue
		}
		out = append(out, doc.Descriptor)
	}
	return out, nil
}

// LoadDocument loads the full document of the named skill. It reports false
// when the skill has no descriptor file or the header cannot be parsed.
func (s *FSStore) LoadDocument(ctx context.Context, name string) (core.SkillDocument, bool) {
	if ctx.Err() != nil {
		return core.SkillDocument{}, false
	}
	if !validDirName(name) {
		s.logger.Debug("skills.document.invalid_name", slog.String("name", name))
		return core.SkillDocument{}, false
	}
	return s.load(name)
}

func (s *FSStore) load(dirName string) (core.SkillDocument, bool) {
	dir := filepath.Join(s.root, dirName)
	path := filepath.Join(dir, s.fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug("skills.document.read_error",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return core.SkillDocument{}, false
	}
	doc, err := ParseSkillFile(string(data), dirName)
	if err != nil {
		s.logger.Debug("skills.document.skipped",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return core.SkillDocument{}, false
	}
	doc.Dir = dir
	return doc, true
}

func validDirName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
