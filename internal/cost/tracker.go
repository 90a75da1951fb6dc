package cost

import (
	"fmt"
	"sync"

	"github.com/archrt/architect/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrBudgetExceeded is returned by Record when the running total would
// exceed the configured budget. The update is still applied before the
// error is returned, per spec: the state must reflect the attempt.
var ErrBudgetExceeded = fmt.Errorf("BudgetExceeded")

// Totals is the running accounting for one CostTracker.
type Totals struct {
	InputTokens  int64
	OutputTokens int64
	CachedTokens int64
	CostUSD      float64
}

// Breakdown is Totals keyed by an arbitrary source label (e.g. the agent
// profile name, or "plan"/"build" for MixedRunner phases).
type Breakdown map[string]Totals

// Metrics is the subset of Prometheus collectors CostTracker updates. Nil
// fields are skipped, so a tracker can run with no metrics wired at all.
type Metrics struct {
	TokensTotal *prometheus.CounterVec // labels: source, kind (input|output|cached)
	CostTotal   *prometheus.CounterVec // labels: source
}

// NewMetrics registers architect_cost_tokens_total and architect_cost_usd_total
// on reg and returns a Metrics ready to pass to NewTracker.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "architect_cost_tokens_total",
			Help: "Tokens billed by the agent loop, by source and kind.",
		}, []string{"source", "kind"}),
		CostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "architect_cost_usd_total",
			Help: "USD cost billed by the agent loop, by source.",
		}, []string{"source"}),
	}
	reg.MustRegister(m.TokensTotal, m.CostTotal)
	return m
}

// CostTracker accumulates token usage and USD cost for one agent loop.
// Shared by every ModelAdapter dispatch within that loop; not shared across
// loops (each MixedRunner phase owns its own tracker).
type CostTracker struct {
	mu        sync.Mutex
	book      *PriceBook
	budgetUSD float64 // 0 = unlimited
	warnAtUSD float64 // 0 = disabled
	warned    bool
	total     Totals
	bySource  Breakdown
	metrics   *Metrics
	onWarning func(totalUSD, warnAtUSD float64)
}

// NewTracker creates a CostTracker. budgetUSD and warnAtUSD of 0 disable the
// respective check. onWarning, if non-nil, fires exactly once when the
// running total first crosses warnAtUSD.
func NewTracker(book *PriceBook, budgetUSD, warnAtUSD float64, metrics *Metrics, onWarning func(totalUSD, warnAtUSD float64)) *CostTracker {
	return &CostTracker{
		book:      book,
		budgetUSD: budgetUSD,
		warnAtUSD: warnAtUSD,
		bySource:  make(Breakdown),
		metrics:   metrics,
		onWarning: onWarning,
	}
}

// Record adds usage for model, billed under source (e.g. an agent profile
// name), to the running totals. Cost is:
//
//	input/1e6*p_in + output/1e6*p_out + cached/1e6*p_cached
//
// with cached tokens billed at the cached rate, not double-counted against
// input. If budgetUSD is set and the new total exceeds it, Record returns
// ErrBudgetExceeded AFTER applying the update, so the tracker's state
// reflects the attempt that tripped the budget.
func (t *CostTracker) Record(step int, model string, usage llm.Usage, source string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	price := t.book.Resolve(model)
	stepCost := float64(usage.PromptTokens)/1e6*price.InputPerMillion +
		float64(usage.CompletionTokens)/1e6*price.OutputPerMillion +
		float64(usage.CachedInputTokens)/1e6*price.CachedInputPerMillion

	t.total.InputTokens += int64(usage.PromptTokens)
	t.total.OutputTokens += int64(usage.CompletionTokens)
	t.total.CachedTokens += int64(usage.CachedInputTokens)
	t.total.CostUSD += stepCost

	b := t.bySource[source]
	b.InputTokens += int64(usage.PromptTokens)
	b.OutputTokens += int64(usage.CompletionTokens)
	b.CachedTokens += int64(usage.CachedInputTokens)
	b.CostUSD += stepCost
	t.bySource[source] = b

	if t.metrics != nil {
		if t.metrics.TokensTotal != nil {
			t.metrics.TokensTotal.WithLabelValues(source, "input").Add(float64(usage.PromptTokens))
			t.metrics.TokensTotal.WithLabelValues(source, "output").Add(float64(usage.CompletionTokens))
			t.metrics.TokensTotal.WithLabelValues(source, "cached").Add(float64(usage.CachedInputTokens))
		}
		if t.metrics.CostTotal != nil {
			t.metrics.CostTotal.WithLabelValues(source).Add(stepCost)
		}
	}

	if t.warnAtUSD > 0 && !t.warned && t.total.CostUSD >= t.warnAtUSD {
		t.warned = true
		if t.onWarning != nil {
			t.onWarning(t.total.CostUSD, t.warnAtUSD)
		}
	}

	if t.budgetUSD > 0 && t.total.CostUSD > t.budgetUSD {
		return fmt.Errorf("%w: step %d pushed total to $%.6f / budget $%.6f", ErrBudgetExceeded, step, t.total.CostUSD, t.budgetUSD)
	}
	return nil
}

// Summary returns the running totals and per-source breakdown.
func (t *CostTracker) Summary() (Totals, Breakdown) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bd := make(Breakdown, len(t.bySource))
	for k, v := range t.bySource {
		bd[k] = v
	}
	return t.total, bd
}

// FormatSummaryLine renders the running totals as one human-readable line.
func (t *CostTracker) FormatSummaryLine() string {
	total, _ := t.Summary()
	return fmt.Sprintf("tokens: %d in / %d out / %d cached — $%.4f",
		total.InputTokens, total.OutputTokens, total.CachedTokens, total.CostUSD)
}
