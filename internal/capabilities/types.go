package capabilities

import "gopkg.in/yaml.v3"

// Pricing is the per-million-token price of a model in USD.
type Pricing struct {
	InputPer1M  float64 `yaml:"input_per_1m" json:"input_per_1m"`
	OutputPer1M float64 `yaml:"output_per_1m" json:"output_per_1m"`
}

// ModelCapabilities describes one assistant model.
type ModelCapabilities struct {
	// Model identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	DisplayName   string  `yaml:"display_name" json:"display_name"`
	Description   string  `yaml:"description" json:"description"`
	ContextWindow int     `yaml:"context_window" json:"context_window"`
	MaxOutput     int     `yaml:"max_output" json:"max_output"`
	Pricing       Pricing `yaml:"pricing" json:"pricing"`
}

// ProviderCapabilities lists a provider's models in file order.
type ProviderCapabilities struct {
	Provider string              `yaml:"provider" json:"provider"`
	Models   []ModelCapabilities `yaml:"-" json:"models"`
}

// UnmarshalYAML keeps the model order of the YAML mapping, which a plain map
// decode would lose.
func (p *ProviderCapabilities) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Provider string                       `yaml:"provider"`
		Models   map[string]ModelCapabilities `yaml:"models"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p.Provider = raw.Provider

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		keys := node.Content[i+1].Content
		for j := 0; j+1 < len(keys); j += 2 {
			id := keys[j].Value
			if model, ok := raw.Models[id]; ok {
				model.ID = id
				p.Models = append(p.Models, model)
			}
		}
	}
	return nil
}
