// Package assistant adapts meridian-llm-go providers to the completion
// collaborator used by tile chat, tile regeneration and contact chat.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"

	"insightboard/internal/config"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/services"
)

const blockTypeText = "text"

// Generator is the part of llmprovider.Provider the assistant calls.
type Generator interface {
	SupportsModel(model string) bool
	GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error)
}

// LLMAssistant implements services.Assistant. Requests go to the provider the
// model names; models of unconfigured providers go to the fallback provider.
type LLMAssistant struct {
	generators map[string]Generator
	fallback   string
	logger     *slog.Logger
}

func NewLLMAssistant(generators map[string]Generator, fallback string, logger *slog.Logger) (*LLMAssistant, error) {
	if _, ok := generators[fallback]; !ok {
		return nil, fmt.Errorf("fallback provider %q not configured", fallback)
	}
	return &LLMAssistant{generators: generators, fallback: fallback, logger: logger}, nil
}

// NewFromConfig builds the assistant for cfg.AssistantProvider. The lorem
// provider is always registered so the service runs without credentials.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*LLMAssistant, error) {
	generators := map[string]Generator{}
	for _, name := range []string{ProviderLorem, cfg.AssistantProvider} {
		if _, ok := generators[name]; ok {
			continue
		}
		provider, err := NewProvider(name, cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		generators[name] = provider
	}
	return NewLLMAssistant(generators, cfg.AssistantProvider, logger)
}

// Providers lists the registered provider names, sorted.
func (a *LLMAssistant) Providers() []string {
	names := make([]string, 0, len(a.generators))
	for name := range a.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *LLMAssistant) resolve(model string) (Generator, string) {
	if info, err := ParseModel(model); err == nil {
		if gen, ok := a.generators[info.Provider]; ok && gen.SupportsModel(info.Model) {
			return gen, info.Model
		}
	}
	gen := a.generators[a.fallback]
	if a.fallback == ProviderLorem || model == "" {
		return gen, loremModel
	}
	return gen, model
}

func (a *LLMAssistant) Complete(ctx context.Context, req *services.AssistantRequest) (*services.AssistantReply, error) {
	gen, model := a.resolve(req.Model)

	resp, err := gen.GenerateResponse(ctx, &llmprovider.GenerateRequest{
		Messages: buildMessages(req),
		Model:    model,
	})
	if err != nil {
		a.logger.Warn("assistant completion failed", "model", model, "error", err)
		return nil, fmt.Errorf("generate response: %w", err)
	}

	var parts []string
	for _, b := range resp.Blocks {
		if b.BlockType == blockTypeText && b.TextContent != nil {
			parts = append(parts, *b.TextContent)
		}
	}
	content := strings.TrimSpace(strings.Join(parts, ""))
	if content == "" {
		return nil, fmt.Errorf("generate response: empty reply from %s", model)
	}
	a.logger.Debug("assistant completion",
		"model", resp.Model, "input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
	return &services.AssistantReply{
		Content:     content,
		Model:       resp.Model,
		TotalTokens: resp.InputTokens + resp.OutputTokens,
	}, nil
}

// buildMessages turns the stored history into provider messages. The system
// context travels as the leading user turn followed by the prior history and
// the new prompt.
func buildMessages(req *services.AssistantRequest) []llmprovider.Message {
	messages := make([]llmprovider.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, textMessage(workspace.RoleUser, req.System))
		messages = append(messages, textMessage(workspace.RoleAssistant, "Understood."))
	}
	for _, m := range req.History {
		if m.Content == "" {
			continue
		}
		role := m.Role
		if role != workspace.RoleAssistant {
			role = workspace.RoleUser
		}
		messages = append(messages, textMessage(role, m.Content))
	}
	return append(messages, textMessage(workspace.RoleUser, req.Prompt))
}

func textMessage(role, text string) llmprovider.Message {
	return llmprovider.Message{
		Role: role,
		Blocks: []*llmprovider.Block{{
			BlockType:   blockTypeText,
			Sequence:    0,
			TextContent: &text,
		}},
	}
}
