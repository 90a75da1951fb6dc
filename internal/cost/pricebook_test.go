package cost

import "testing"

func TestPriceBook_ExactMatch(t *testing.T) {
	book := NewPriceBook(map[string]PricingEntry{
		"gpt-4o": {InputPerMillion: 2.5, OutputPerMillion: 10, CachedInputPerMillion: 1.25},
	}, PricingEntry{InputPerMillion: 1})

	got := book.Resolve("gpt-4o")
	if got.InputPerMillion != 2.5 || got.OutputPerMillion != 10 {
		t.Fatalf("exact match resolved wrong entry: %+v", got)
	}
}

func TestPriceBook_LongestPrefix(t *testing.T) {
	book := NewPriceBook(map[string]PricingEntry{
		"gpt-4":    {InputPerMillion: 1},
		"gpt-4o":   {InputPerMillion: 2.5},
		"gpt-4o-m": {InputPerMillion: 0.15},
	}, PricingEntry{InputPerMillion: 99})

	got := book.Resolve("gpt-4o-mini")
	if got.InputPerMillion != 0.15 {
		t.Fatalf("expected longest prefix gpt-4o-m (0.15), got %+v", got)
	}
}

func TestPriceBook_DefaultFallback(t *testing.T) {
	book := NewPriceBook(map[string]PricingEntry{
		"gpt-4o": {InputPerMillion: 2.5},
	}, PricingEntry{InputPerMillion: 1, OutputPerMillion: 3})

	got := book.Resolve("claude-3-opus")
	if got.InputPerMillion != 1 || got.OutputPerMillion != 3 {
		t.Fatalf("expected default entry, got %+v", got)
	}
}

func TestPriceBook_ZeroCostPrefix(t *testing.T) {
	book := NewPriceBook(map[string]PricingEntry{
		"ollama/llama3": {InputPerMillion: 5, OutputPerMillion: 5},
	}, PricingEntry{InputPerMillion: 1}, "ollama/")

	got := book.Resolve("ollama/llama3")
	if got.InputPerMillion != 0 || got.OutputPerMillion != 0 || got.CachedInputPerMillion != 0 {
		t.Fatalf("expected all-zero entry for zero-cost prefix, got %+v", got)
	}
}

func TestPriceBook_ZeroCostPrefixBeatsExactMatch(t *testing.T) {
	book := NewPriceBook(map[string]PricingEntry{
		"local/model": {InputPerMillion: 5},
	}, PricingEntry{}, "local/")

	got := book.Resolve("local/model")
	if got.InputPerMillion != 0 {
		t.Fatalf("zero-cost prefix must win even over an exact entry, got %+v", got)
	}
}
