// Package capabilities is the catalog of assistant models, loaded from
// embedded per-provider YAML files.
package capabilities

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Providers with an embedded catalog file.
var knownProviders = []string{"anthropic", "lorem"}

// Registry is read-only after NewRegistry returns.
type Registry struct {
	providers map[string]*ProviderCapabilities
}

// NewRegistry loads every embedded provider file.
func NewRegistry() (*Registry, error) {
	r := &Registry{providers: make(map[string]*ProviderCapabilities, len(knownProviders))}
	for _, provider := range knownProviders {
		if err := r.loadProviderFile(provider); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}

	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filename, err)
	}
	if caps.Provider != provider {
		return fmt.Errorf("%s declares provider %q", filename, caps.Provider)
	}
	r.providers[provider] = &caps
	return nil
}

// GetModelCapabilities returns one model of a provider.
func (r *Registry) GetModelCapabilities(provider, model string) (*ModelCapabilities, error) {
	caps, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	for i := range caps.Models {
		if caps.Models[i].ID == model {
			return &caps.Models[i], nil
		}
	}
	return nil, fmt.Errorf("unknown model %s for provider %s", model, provider)
}

// ListProviderModels returns a provider's models in catalog order.
func (r *Registry) ListProviderModels(provider string) ([]ModelCapabilities, error) {
	caps, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	return caps.Models, nil
}
