package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, dir, content string) {
	t.Helper()
	skillDir := filepath.Join(root, dir)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if content == "" {
		return
	}
	if err := os.WriteFile(filepath.Join(skillDir, DescriptorFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

const webResearch = `---
name: web-research
description: Searches the web.
version: 1.1.0
metadata:
  entry_script: scripts/search.py
references:
  - references/sources.md
---
Full instructions here.
`

const dataAnalysis = `---
name: data-analysis
description: Analyses data.
---
Analysis instructions.
`

func newCatalog(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeSkill(t, root, "web-research", webResearch)
	writeSkill(t, root, "data-analysis", dataAnalysis)
	return root
}

func TestListMetadata(t *testing.T) {
	store := NewFSStore(newCatalog(t))
	got, err := store.ListMetadata(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(got))
	}
	byName := map[string]string{}
	for _, d := range got {
		byName[d.Name] = d.Version
	}
	if byName["web-research"] != "1.1.0" {
		t.Fatalf("unexpected web-research version %q", byName["web-research"])
	}
	if byName["data-analysis"] != "1.0.0" {
		t.Fatalf("expected default version, got %q", byName["data-analysis"])
	}
}

func TestListMetadataSkipsInvalidEntries(t *testing.T) {
	root := newCatalog(t)
	writeSkill(t, root, "no-descriptor", "")
	writeSkill(t, root, "no-header", "just some text\n")
	writeSkill(t, root, "unterminated", "---\nname: x\ndescription: y\n")
	writeSkill(t, root, "bad-yaml", "---\nname: [unclosed\n---\nbody\n")
	writeSkill(t, root, "prefixed", "intro\n---\nname: prefixed\n---\nbody\n")
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("not a skill"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewFSStore(root).ListMetadata(context.Background())
	if err != nil {
		t.Fatalf("list must not fail on invalid entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected only the 2 valid skills, got %+v", got)
	}
}

func TestListMetadataMissingRoot(t *testing.T) {
	got, err := NewFSStore(filepath.Join(t.TempDir(), "missing")).ListMetadata(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing root, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty listing, got %v", got)
	}
}

func TestListMetadataCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFSStore(newCatalog(t)).ListMetadata(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestLoadDocument(t *testing.T) {
	root := newCatalog(t)
	doc, ok := NewFSStore(root).LoadDocument(context.Background(), "web-research")
	if !ok {
		t.Fatalf("expected document")
	}
	if doc.Name() != "web-research" {
		t.Fatalf("unexpected name %q", doc.Name())
	}
	if doc.Instructions != "Full instructions here." {
		t.Fatalf("unexpected instructions %q", doc.Instructions)
	}
	if doc.EntryScript != "scripts/search.py" {
		t.Fatalf("unexpected entry script %q", doc.EntryScript)
	}
	if len(doc.References) != 1 || doc.References[0] != "references/sources.md" {
		t.Fatalf("unexpected references %v", doc.References)
	}
	if doc.Dir != filepath.Join(root, "web-research") {
		t.Fatalf("unexpected dir %q", doc.Dir)
	}
}

func TestLoadDocumentAbsent(t *testing.T) {
	root := newCatalog(t)
	writeSkill(t, root, "bad-yaml", "---\nname: [unclosed\n---\nbody\n")
	store := NewFSStore(root)

	for _, name := range []string{"ghost-skill", "bad-yaml", "", "..", "../web-research", "a/b"} {
		t.Run(name, func(t *testing.T) {
			if _, ok := store.LoadDocument(context.Background(), name); ok {
				t.Fatalf("expected %q to be absent", name)
			}
		})
	}
}

func TestParseSkillFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, gotName, body, entry string)
	}{
		{
			name:    "name falls back to directory",
			content: "---\ndescription: d\n---\nbody",
			check: func(t *testing.T, gotName, _, _ string) {
				if gotName != "fallback" {
					t.Fatalf("expected fallback name, got %q", gotName)
				}
			},
		},
		{
			name:    "body may contain delimiters",
			content: "---\nname: n\n---\nstep one\n---\nstep two\n",
			check: func(t *testing.T, _, body, _ string) {
				if body != "step one\n---\nstep two" {
					t.Fatalf("unexpected body %q", body)
				}
			},
		},
		{
			name:    "crlf line endings",
			content: "---\r\nname: n\r\nmetadata:\r\n  entry_script: run.sh\r\n---\r\nbody\r\n",
			check: func(t *testing.T, _, _, entry string) {
				if entry != "run.sh" {
					t.Fatalf("unexpected entry %q", entry)
				}
			},
		},
		{name: "empty header", content: "---\n---\nbody", wantErr: true},
		{name: "scalar header", content: "---\njust text\n---\nbody", wantErr: true},
		{name: "references not a list", content: "---\nname: n\nreferences: 3\n---\n", wantErr: true},
		{name: "only two sections", content: "---\nname: n\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseSkillFile(tt.content, "fallback")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, doc.Name(), doc.Instructions, doc.EntryScript)
		})
	}
}

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()
	if _, err := ResolveWithin(dir, "scripts/run.sh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rel := range []string{"", "../x", "/etc/passwd", "scripts/../../x"} {
		if _, err := ResolveWithin(dir, rel); err == nil {
			t.Fatalf("expected %q to be rejected", rel)
		}
	}
}
