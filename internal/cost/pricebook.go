// Package cost resolves per-model token pricing and accumulates spend across
// an agent loop, enforcing an optional USD budget.
package cost

import "strings"

// PricingEntry is the USD-per-million-token price for one model.
type PricingEntry struct {
	InputPerMillion       float64
	OutputPerMillion      float64
	CachedInputPerMillion float64
}

// PriceBook resolves a model name to a PricingEntry: exact match, else
// longest matching prefix, else the configured default. A model name that
// begins with one of ZeroCostPrefixes always resolves to all zeros,
// regardless of what's in the table (local/self-hosted models the host
// doesn't want billed).
type PriceBook struct {
	entries         map[string]PricingEntry
	defaultEntry    PricingEntry
	zeroCostPrefixes []string
}

// NewPriceBook creates a PriceBook from a name/prefix → PricingEntry map and
// a default used when nothing matches.
func NewPriceBook(entries map[string]PricingEntry, def PricingEntry, zeroCostPrefixes ...string) *PriceBook {
	cp := make(map[string]PricingEntry, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &PriceBook{entries: cp, defaultEntry: def, zeroCostPrefixes: zeroCostPrefixes}
}

// Resolve returns the pricing entry for model, per §3's resolution order:
// exact match, longest-prefix match, default; zero-cost provider tags win
// over all of those.
func (b *PriceBook) Resolve(model string) PricingEntry {
	for _, prefix := range b.zeroCostPrefixes {
		if strings.HasPrefix(model, prefix) {
			return PricingEntry{}
		}
	}
	if e, ok := b.entries[model]; ok {
		return e
	}
	var best string
	var bestEntry PricingEntry
	found := false
	for k, e := range b.entries {
		if strings.HasPrefix(model, k) && len(k) > len(best) {
			best, bestEntry, found = k, e, true
		}
	}
	if found {
		return bestEntry
	}
	return b.defaultEntry
}
