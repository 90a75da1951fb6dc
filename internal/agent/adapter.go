package agent

import (
	"context"
	"fmt"

	"github.com/archrt/architect/internal/cache"
	"github.com/archrt/architect/internal/llm"
)

// ModelAdapter is spec.md §4.6's component: a single complete(messages,
// tools) → Reply operation, distinct from the raw llm.Backend it wraps.
// It adds response-cache lookup/store-back around the backend dispatch.
// Usage normalization and retry/backoff are the Backend's own
// responsibility (see DESIGN.md) — ModelAdapter's job is caching only.
type ModelAdapter struct {
	backend llm.Backend
	cache   *cache.ResponseCache // nil disables response caching entirely

	// PromptCacheEnabled marks intent to rewrite the system message into a
	// provider cache-control segment list. The wired Backend (OpenAI) does
	// its own automatic prefix-based prompt caching with no client-side
	// marker API, so this is currently a documented no-op kept as the hook
	// a future non-OpenAI backend would implement against.
	PromptCacheEnabled bool
}

// NewModelAdapter creates a ModelAdapter. respCache may be nil to disable
// the response cache entirely (every call dispatches to backend).
func NewModelAdapter(backend llm.Backend, respCache *cache.ResponseCache) *ModelAdapter {
	return &ModelAdapter{backend: backend, cache: respCache}
}

// Complete implements spec.md §4.6: cache lookup before dispatch (hit
// returns the stored Reply with zeroed Usage, since a cache hit bills zero
// tokens regardless of what the original call cost), miss dispatches to the
// backend and stores the result back on success.
func (a *ModelAdapter) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Reply, error) {
	if a.cache != nil {
		if reply, ok := a.cache.Get(messages, tools); ok {
			reply.Usage = llm.Usage{}
			return reply, nil
		}
	}

	reply, err := a.backend.Complete(ctx, messages, tools)
	if err != nil {
		return llm.Reply{}, fmt.Errorf("model adapter: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Set(messages, tools, reply); err != nil {
			// Cache-write failure must not fail the turn; the reply is still
			// valid, it simply won't be cached for next time.
			_ = err
		}
	}
	return reply, nil
}
