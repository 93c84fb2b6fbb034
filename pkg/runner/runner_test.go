package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/skillsloop/pkg/core"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// newWorkspace lays out <ws>/skills/test-skill/scripts/*.sh.
func newWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	dir := filepath.Join(ws, "skills", "test-skill")
	writeScript(t, dir, "scripts/success.sh", `printf '{"received": %s, "status": "ok"}\n' "$1"`)
	writeScript(t, dir, "scripts/text.sh", "echo '  plain text  '\n")
	writeScript(t, dir, "scripts/fail.sh", "echo 'something went wrong' >&2\nexit 1\n")
	writeScript(t, dir, "scripts/slow.sh", "echo partial\nexec sleep 5\n")
	return ws
}

func doc(entry string) core.SkillDocument {
	return core.SkillDocument{
		Descriptor:   core.SkillDescriptor{Name: "test-skill", Description: "test"},
		Instructions: "...",
		EntryScript:  entry,
	}
}

func newRunner(ws string, opts ...Option) *ScriptRunner {
	return New(ws, append([]Option{WithInterpreter("sh")}, opts...)...)
}

func TestRunSuccessJSON(t *testing.T) {
	r := newRunner(newWorkspace(t))
	obs := r.Run(context.Background(), doc("scripts/success.sh"), map[string]any{"input": "hello"})

	if obs.Status != core.StatusSuccess {
		t.Fatalf("expected success, got %+v", obs)
	}
	content, ok := obs.Content.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded JSON, got %T", obs.Content)
	}
	received, _ := content["received"].(map[string]any)
	if received["input"] != "hello" || content["status"] != "ok" {
		t.Fatalf("unexpected content %v", content)
	}
	if obs.Origin != "test-skill" {
		t.Fatalf("unexpected origin %q", obs.Origin)
	}
}

func TestRunSuccessPlainText(t *testing.T) {
	obs := newRunner(newWorkspace(t)).Run(context.Background(), doc("scripts/text.sh"), nil)
	if !obs.OK() || obs.Content != "plain text" {
		t.Fatalf("expected trimmed text, got %+v", obs)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	obs := newRunner(newWorkspace(t)).Run(context.Background(), doc("scripts/fail.sh"), map[string]any{})
	if obs.Status != core.StatusError {
		t.Fatalf("expected error, got %+v", obs)
	}
	if !strings.Contains(obs.Text(), "something went wrong") {
		t.Fatalf("expected stderr in content, got %q", obs.Text())
	}
	if obs.Metadata["exit_code"] != 1 {
		t.Fatalf("expected exit code metadata, got %v", obs.Metadata)
	}
}

func TestRunNoEntryScript(t *testing.T) {
	obs := newRunner(newWorkspace(t)).Run(context.Background(), doc(""), nil)
	if obs.OK() || !strings.Contains(obs.Text(), "entry_script") {
		t.Fatalf("expected missing entry_script error, got %+v", obs)
	}
}

func TestRunMissingScript(t *testing.T) {
	obs := newRunner(newWorkspace(t)).Run(context.Background(), doc("scripts/missing.sh"), nil)
	if obs.OK() || !strings.Contains(obs.Text(), "not found") {
		t.Fatalf("expected not found error, got %+v", obs)
	}
	if obs.Metadata["error_code"] != "NOT_FOUND" {
		t.Fatalf("unexpected error code %v", obs.Metadata["error_code"])
	}
}

func TestRunRejectsEscapingScript(t *testing.T) {
	obs := newRunner(newWorkspace(t)).Run(context.Background(), doc("../../outside.sh"), nil)
	if obs.OK() {
		t.Fatalf("expected escaping path to be rejected")
	}
}

func TestRunTimeout(t *testing.T) {
	r := newRunner(newWorkspace(t), WithTimeout(200*time.Millisecond))

	start := time.Now()
	obs := r.Run(context.Background(), doc("scripts/slow.sh"), nil)
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout was not enforced")
	}
	if obs.OK() {
		t.Fatalf("expected timeout error, got %+v", obs)
	}
	if !strings.Contains(obs.Text(), "timeout") {
		t.Fatalf("expected timeout indication, got %q", obs.Text())
	}
	if strings.Contains(obs.Text(), "partial") {
		t.Fatalf("output of a timed out script must not be used")
	}
	if obs.Metadata["error_code"] != "TIMEOUT" {
		t.Fatalf("unexpected error code %v", obs.Metadata["error_code"])
	}
}

func TestRunUsesDocumentDir(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "run.sh", "echo from-dir\n")
	d := doc("run.sh")
	d.Dir = dir

	obs := newRunner(t.TempDir()).Run(context.Background(), d, nil)
	if !obs.OK() || obs.Content != "from-dir" {
		t.Fatalf("expected script from document dir, got %+v", obs)
	}
}

func TestRunUnknownInterpreter(t *testing.T) {
	r := New(newWorkspace(t), WithInterpreter("definitely-not-a-real-interpreter"))
	obs := r.Run(context.Background(), doc("scripts/text.sh"), nil)
	if obs.OK() || !strings.Contains(obs.Text(), "Unexpected error") {
		t.Fatalf("expected transport failure observation, got %+v", obs)
	}
}
