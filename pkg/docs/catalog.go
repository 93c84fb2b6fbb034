// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package docs holds the library documentation catalog served by docsbridge.
package docs

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library is one documented library.
type Library struct {
	ID      string            `yaml:"id"`
	Aliases []string          `yaml:"aliases"`
	Topics  map[string]string `yaml:"topics"`
}

// Resolution is the answer to a library id lookup.
type Resolution struct {
	LibraryID string `json:"libraryId"`
	Message   string `json:"message"`
	Exact     bool   `json:"exact"`
}

// Catalog maps library names to ids and documentation snippets.
type Catalog struct {
	libraries []Library
}

type catalogFile struct {
	Libraries []Library `yaml:"libraries"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{libraries: []Library{
		{
			ID:      "/pydantic/pydantic",
			Aliases: []string{"pydantic"},
			Topics: map[string]string{
				"validation": "Declare models by subclassing BaseModel. Fields are validated on construction; use field_validator for custom rules.",
			},
		},
		{
			ID:      "/facebook/react",
			Aliases: []string{"react", "reactjs"},
			Topics: map[string]string{
				"hooks": "Call hooks only at the top level of function components. useState holds local state; useEffect runs after render.",
			},
		},
	}}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, lib := range f.Libraries {
		if strings.TrimSpace(lib.ID) == "" {
			return nil, fmt.Errorf("parse catalog %s: library %d has no id", path, i)
		}
	}
	return &Catalog{libraries: f.Libraries}, nil
}

// Resolve maps a free-form library name to an id. Names that match no alias
// get a synthesized /mock/<name> id.
func (c *Catalog) Resolve(name string) (Resolution, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Resolution{}, fmt.Errorf("libraryName is required")
	}
	for _, lib := range c.libraries {
		for _, alias := range lib.Aliases {
			if strings.Contains(needle, strings.ToLower(alias)) {
				return Resolution{LibraryID: lib.ID, Message: "Exact match.", Exact: true}, nil
			}
		}
	}
	return Resolution{
		LibraryID: "/mock/" + strings.ReplaceAll(needle, " ", "-"),
		Message:   "Generated id (simulated).",
	}, nil
}

// Query returns documentation for a library id. Known topics mentioned in the
// query are included verbatim; otherwise generic guidance is returned.
func (c *Catalog) Query(libraryID, query string) (string, error) {
	if strings.TrimSpace(libraryID) == "" {
		return "", fmt.Errorf("libraryId is required")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Documentation for %s about %q:\n\n", libraryID, query)

	if lib, ok := c.lookup(libraryID); ok {
		q := strings.ToLower(query)
		topics := make([]string, 0, len(lib.Topics))
		for topic := range lib.Topics {
			if strings.Contains(q, strings.ToLower(topic)) {
				topics = append(topics, topic)
			}
		}
		sort.Strings(topics)
		for _, topic := range topics {
			fmt.Fprintf(&b, "## %s\n%s\n\n", topic, lib.Topics[topic])
		}
		if len(topics) > 0 {
			return strings.TrimRight(b.String(), "\n"), nil
		}
	}

	b.WriteString("1. Use standard patterns.\n2. Follow Clean Architecture.\n3. Documentation coverage is high.")
	return b.String(), nil
}

func (c *Catalog) lookup(id string) (Library, bool) {
	for _, lib := range c.libraries {
		if lib.ID == id {
			return lib, true
		}
	}
	return Library{}, false
}
