package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"insightboard/internal/domain/models"
)

//go:embed plans.yaml
var defaultPlans []byte

// Limit is one action ceiling. It decodes from an integer or "unlimited".
type Limit int

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Limit) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "unlimited" {
		*l = Limit(models.Unlimited)
		return nil
	}
	n, err := strconv.Atoi(node.Value)
	if err != nil || n < 0 {
		return fmt.Errorf("line %d: limit must be a non-negative integer or \"unlimited\", got %q", node.Line, node.Value)
	}
	*l = Limit(n)
	return nil
}

// Plans is the plan/limit table keyed by plan tier.
type Plans struct {
	Tiers map[string]map[models.Action]Limit `yaml:"plans"`
}

// LoadPlans reads the plan table from path, or the embedded default when
// path is empty.
func LoadPlans(path string) (*Plans, error) {
	data := defaultPlans
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read plans file: %w", err)
		}
	}
	return ParsePlans(data)
}

// ParsePlans decodes a YAML plan table and checks every action is known.
func ParsePlans(data []byte) (*Plans, error) {
	var p Plans
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	if _, ok := p.Tiers[models.PlanGuest]; !ok {
		return nil, fmt.Errorf("parse plans: missing %q tier", models.PlanGuest)
	}
	for tier, limits := range p.Tiers {
		for action := range limits {
			if !action.Valid() {
				return nil, fmt.Errorf("parse plans: tier %q: unknown action %q", tier, action)
			}
		}
	}
	return &p, nil
}

// Limit returns the ceiling for action under tier. Unknown tiers fall back to
// the free tier; actions missing from a tier are denied (limit 0).
func (p *Plans) Limit(tier string, action models.Action) int {
	limits, ok := p.Tiers[tier]
	if !ok {
		limits = p.Tiers[models.PlanFree]
	}
	limit, ok := limits[action]
	if !ok {
		return 0
	}
	return int(limit)
}

// Limits returns every ceiling for tier.
func (p *Plans) Limits(tier string) map[models.Action]int {
	out := make(map[models.Action]int, len(models.Actions))
	for _, action := range models.Actions {
		out[action] = p.Limit(tier, action)
	}
	return out
}
