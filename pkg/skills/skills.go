// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package skills loads skill descriptors from SKILL.md files.
//
// A descriptor file is split into three sections by "---" lines: an empty
// prefix, a YAML header and a free-text instructions body.
package skills

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/skillsloop/pkg/core"
)

// DescriptorFile is the file name looked up in each skill directory.
const DescriptorFile = "SKILL.md"

const delimiter = "---"

var (
	errNoHeader    = errors.New("missing header block")
	errEmptyHeader = errors.New("empty header block")
)

type frontmatter struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Version     string         `yaml:"version"`
	Metadata    map[string]any `yaml:"metadata"`
	References  []string       `yaml:"references"`
}

// ParseSkillFile parses the content of a descriptor file.
// fallbackName is used when the header has no name.
func ParseSkillFile(content, fallbackName string) (core.SkillDocument, error) {
	header, body, err := splitSections(content)
	if err != nil {
		return core.SkillDocument{}, err
	}
	var fm frontmatter
	node := yaml.Node{}
	if err := yaml.Unmarshal([]byte(header), &node); err != nil {
		return core.SkillDocument{}, fmt.Errorf("parse header: %w", err)
	}
	if len(node.Content) == 0 {
		return core.SkillDocument{}, errEmptyHeader
	}
	if err := node.Decode(&fm); err != nil {
		return core.SkillDocument{}, fmt.Errorf("decode header: %w", err)
	}

	name := strings.TrimSpace(fm.Name)
	if name == "" {
		name = fallbackName
	}
	version := strings.TrimSpace(fm.Version)
	if version == "" {
		version = core.DefaultSkillVersion
	}
	return core.SkillDocument{
		Descriptor: core.SkillDescriptor{
			Name:        name,
			Description: strings.TrimSpace(fm.Description),
			Version:     version,
		},
		Instructions: body,
		EntryScript:  entryScript(fm.Metadata),
		References:   append([]string{}, fm.References...),
	}, nil
}

// splitSections returns the header and the trimmed body. The prefix before
// the first delimiter line must be blank.
func splitSections(content string) (string, string, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	open := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed != delimiter {
			return "", "", errNoHeader
		}
		open = i
		break
	}
	if open < 0 {
		return "", "", errNoHeader
	}
	for i := open + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			header := strings.Join(lines[open+1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return header, strings.TrimSpace(body), nil
		}
	}
	return "", "", errNoHeader
}

func entryScript(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	v, ok := metadata["entry_script"].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Summary renders the level-1 listing shown to the reasoning service.
func Summary(descs []core.SkillDescriptor) string {
	if len(descs) == 0 {
		return "(no skills available)"
	}
	var b strings.Builder
	for i, d := range descs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", d.Name, d.Description)
	}
	return b.String()
}
