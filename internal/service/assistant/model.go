package assistant

import (
	"fmt"
	"strings"
)

// Provider names
const (
	ProviderAnthropic = "anthropic"
	ProviderLorem     = "lorem"
)

// loremModel is sent to the lorem provider when the requested model belongs
// to a provider that is not configured.
const loremModel = "lorem-fast"

// ModelInfo is a model string split into provider and provider-local model.
type ModelInfo struct {
	Provider string
	Model    string
}

// ParseModel extracts the provider from a model string.
//
//   - "claude-haiku-4-5" -> anthropic / claude-haiku-4-5
//   - "lorem-fast"       -> lorem / lorem-fast
//   - "anthropic/claude-haiku-4-5" -> anthropic / claude-haiku-4-5
func ParseModel(model string) (*ModelInfo, error) {
	if model == "" {
		return nil, fmt.Errorf("model string cannot be empty")
	}

	if provider, rest, ok := strings.Cut(model, "/"); ok {
		if provider == "" || rest == "" {
			return nil, fmt.Errorf("invalid model format: %s (expected provider/model)", model)
		}
		return &ModelInfo{Provider: provider, Model: rest}, nil
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude-"):
		return &ModelInfo{Provider: ProviderAnthropic, Model: model}, nil
	case strings.HasPrefix(lower, "lorem-"):
		return &ModelInfo{Provider: ProviderLorem, Model: model}, nil
	}
	return nil, fmt.Errorf("unable to infer provider from model: %s", model)
}
