package cost

import (
	"errors"
	"testing"

	"github.com/archrt/architect/internal/llm"
)

func testBook() *PriceBook {
	return NewPriceBook(map[string]PricingEntry{
		"gpt-4o": {InputPerMillion: 2.0, OutputPerMillion: 4.0, CachedInputPerMillion: 1.0},
	}, PricingEntry{})
}

func TestCostTracker_RecordAccumulates(t *testing.T) {
	tr := NewTracker(testBook(), 0, 0, nil, nil)

	err := tr.Record(1, "gpt-4o", llm.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000, CachedInputTokens: 200_000}, "build")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total, bd := tr.Summary()
	wantCost := 1.0*2.0 + 0.5*4.0 + 0.2*1.0
	if diff := total.CostUSD - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cost mismatch: got %v want %v", total.CostUSD, wantCost)
	}
	if total.InputTokens != 1_000_000 || total.OutputTokens != 500_000 || total.CachedTokens != 200_000 {
		t.Fatalf("token totals wrong: %+v", total)
	}
	if bd["build"].CostUSD != total.CostUSD {
		t.Fatalf("breakdown for source %q should match total with a single source, got %+v", "build", bd["build"])
	}
}

func TestCostTracker_BudgetExceeded(t *testing.T) {
	tr := NewTracker(testBook(), 0.001, 0, nil, nil)

	err := tr.Record(1, "gpt-4o", llm.Usage{PromptTokens: 1_000_000}, "build")
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	total, _ := tr.Summary()
	if total.CostUSD < 0.001 {
		t.Fatalf("budget_exceeded must still apply the update: total=%v", total.CostUSD)
	}
}

func TestCostTracker_WarnOnce(t *testing.T) {
	var calls int
	tr := NewTracker(testBook(), 0, 0.001, nil, func(total, warnAt float64) {
		calls++
	})

	for i := 0; i < 3; i++ {
		_ = tr.Record(i+1, "gpt-4o", llm.Usage{PromptTokens: 1_000_000}, "build")
	}

	if calls != 1 {
		t.Fatalf("expected exactly one warning callback, got %d", calls)
	}
}

func TestCostTracker_BreakdownBySource(t *testing.T) {
	tr := NewTracker(testBook(), 0, 0, nil, nil)

	_ = tr.Record(1, "gpt-4o", llm.Usage{PromptTokens: 1_000_000}, "plan")
	_ = tr.Record(2, "gpt-4o", llm.Usage{PromptTokens: 2_000_000}, "build")

	_, bd := tr.Summary()
	if bd["plan"].InputTokens != 1_000_000 {
		t.Fatalf("plan breakdown wrong: %+v", bd["plan"])
	}
	if bd["build"].InputTokens != 2_000_000 {
		t.Fatalf("build breakdown wrong: %+v", bd["build"])
	}
}

func TestCostTracker_FormatSummaryLine(t *testing.T) {
	tr := NewTracker(testBook(), 0, 0, nil, nil)
	_ = tr.Record(1, "gpt-4o", llm.Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, "build")

	line := tr.FormatSummaryLine()
	if line == "" {
		t.Fatal("expected non-empty summary line")
	}
}
