package polish

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestBuildPrompt(t *testing.T) {
	p := NewPolisher(nil, "test-model", zaptest.NewLogger(t))
	notes := "### Bugs ###\n* **Bug** <Fix> & tidy (#34)"

	prompt, err := p.BuildPrompt(notes, "  Use British English  ")
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if !strings.HasSuffix(prompt, notes) {
		t.Errorf("notes should be appended unescaped, got %q", prompt)
	}
	if !strings.Contains(prompt, "Additional instructions:\nUse British English") {
		t.Errorf("instructions missing from prompt: %q", prompt)
	}

	prompt, err = p.BuildPrompt(notes, "")
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if strings.Contains(prompt, "Additional instructions") {
		t.Errorf("empty instructions should be omitted: %q", prompt)
	}
}

func TestPolish_Disabled(t *testing.T) {
	p := NewPolisher(nil, "test-model", nil)
	if p.Enabled() {
		t.Fatal("polisher without client should be disabled")
	}
	if _, err := p.Polish(context.Background(), "notes", ""); err == nil {
		t.Error("expected error without llm client")
	}

	var nilPolisher *Polisher
	if nilPolisher.Enabled() {
		t.Error("nil polisher should be disabled")
	}
}
