package assistant

import (
	"fmt"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"
)

// NewProvider creates a library provider by name.
//
// Supported providers:
//   - "anthropic" - Claude models via the Anthropic API
//   - "lorem" - offline provider generating placeholder text
func NewProvider(name, anthropicAPIKey string) (llmprovider.Provider, error) {
	switch name {
	case ProviderAnthropic:
		if anthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		provider, err := anthropic.NewProvider(anthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return provider, nil
	case ProviderLorem:
		return lorem.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
