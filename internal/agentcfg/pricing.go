package agentcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archrt/architect/internal/cost"
)

// pricingFile is the on-disk shape of a pricing table, keyed by model name
// or prefix per cost.PriceBook's own resolution order.
type pricingFile struct {
	Default struct {
		InputPerMillion       float64 `yaml:"input_per_million"`
		OutputPerMillion      float64 `yaml:"output_per_million"`
		CachedInputPerMillion float64 `yaml:"cached_input_per_million"`
	} `yaml:"default"`
	ZeroCostPrefixes []string `yaml:"zero_cost_prefixes"`
	Models           map[string]struct {
		InputPerMillion       float64 `yaml:"input_per_million"`
		OutputPerMillion      float64 `yaml:"output_per_million"`
		CachedInputPerMillion float64 `yaml:"cached_input_per_million"`
	} `yaml:"models"`
}

// LoadPriceBook parses a YAML pricing table from path and returns a ready
// cost.PriceBook.
func LoadPriceBook(path string) (*cost.PriceBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agentcfg: read pricing table %q: %w", path, err)
	}

	var pf pricingFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("agentcfg: parse pricing table %q: %w", path, err)
	}

	entries := make(map[string]cost.PricingEntry, len(pf.Models))
	for name, m := range pf.Models {
		entries[name] = cost.PricingEntry{
			InputPerMillion:       m.InputPerMillion,
			OutputPerMillion:      m.OutputPerMillion,
			CachedInputPerMillion: m.CachedInputPerMillion,
		}
	}

	def := cost.PricingEntry{
		InputPerMillion:       pf.Default.InputPerMillion,
		OutputPerMillion:      pf.Default.OutputPerMillion,
		CachedInputPerMillion: pf.Default.CachedInputPerMillion,
	}

	return cost.NewPriceBook(entries, def, pf.ZeroCostPrefixes...), nil
}
