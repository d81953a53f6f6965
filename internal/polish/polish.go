package polish

import (
	"context"
	"fmt"
	"strings"

	"github.com/aescanero/dago-libs/pkg/domain"
	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/aescanero/dago-node-relnotes/internal/eval/template"
	"go.uber.org/zap"
)

// DefaultPrompt is the Handlebars prompt sent to the LLM. It receives the
// rendered notes and optional extra instructions.
const DefaultPrompt = `You are editing release notes written in Markdown.
Fix grammar and wording, merge duplicate entries and keep every work item
reference, heading and link exactly as it is. Do not invent changes.
{{#if instructions}}

Additional instructions:
{{instructions}}
{{/if}}

Reply with the edited release notes only.

---
{{{notes}}}`

const maxTokens = 4096

// Polisher rewrites rendered release notes with an LLM
type Polisher struct {
	client ports.LLMClient
	engine *template.Engine
	prompt string
	model  string
	logger *zap.Logger
}

// NewPolisher creates a polisher. A nil client disables polishing.
func NewPolisher(client ports.LLMClient, model string, logger *zap.Logger) *Polisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Polisher{
		client: client,
		engine: template.NewEngine(logger),
		prompt: DefaultPrompt,
		model:  model,
		logger: logger,
	}
}

// Enabled reports whether an LLM client is configured
func (p *Polisher) Enabled() bool {
	return p != nil && p.client != nil
}

// BuildPrompt renders the prompt for notes
func (p *Polisher) BuildPrompt(notes, instructions string) (string, error) {
	prompt, err := p.engine.Render(p.prompt, map[string]interface{}{
		"notes":        notes,
		"instructions": strings.TrimSpace(instructions),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return prompt, nil
}

// Polish sends notes to the LLM and returns the edited text
func (p *Polisher) Polish(ctx context.Context, notes, instructions string) (string, error) {
	if !p.Enabled() {
		return "", fmt.Errorf("llm client not configured")
	}

	prompt, err := p.BuildPrompt(notes, instructions)
	if err != nil {
		return "", err
	}

	p.logger.Debug("polishing release notes",
		zap.String("model", p.model),
		zap.Int("notes_length", len(notes)),
	)

	req := &domain.LLMRequest{
		Model: p.model,
		Messages: []domain.Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		MaxTokens: maxTokens,
	}

	respInterface, err := p.client.GenerateCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	resp, ok := respInterface.(*domain.LLMResponse)
	if !ok {
		return "", fmt.Errorf("unexpected response type from LLM")
	}

	polished := strings.TrimSpace(resp.Content)
	if polished == "" {
		return "", fmt.Errorf("llm returned empty release notes")
	}
	return polished, nil
}
