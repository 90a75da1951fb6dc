package agent

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ── Loop Detection Constants ──

const (
	loopWindowSize          = 8   // recent tool calls to analyze
	loopSameToolLimit       = 3   // Rule 1: same tool call limit
	loopConsecErrorLimit    = 3   // Rule 3: consecutive error limit
	loopSimilarityThreshold = 0.6 // Rule 2: bigram Jaccard threshold
)

// ToolEvent is the flattened record LoopDetector reasons over: one entry per
// tool call issued during the loop, in emission order. Unlike the old
// decide/think/answer step model, every entry here is a real tool
// invocation — there is no step "kind" to filter by first.
type ToolEvent struct {
	ToolName string
	Input    string // raw JSON arguments, as sent to the tool
	IsError  bool
}

// pathKeyedTools maps tool names whose dedup key should be their "path"
// argument rather than a full-argument hash — repeated edits to different
// files are not a loop, repeated edits to the same file might be.
var pathKeyedTools = map[string]string{
	"read_file":   "path",
	"write_file":  "path",
	"edit_file":   "path",
	"apply_patch": "path",
	"delete_file": "path",
	"list_files":  "path",
	"find_files":  "path",
}

// toolCallKey returns the deduplication key for Rule 1: path-keyed tools
// dedup on their path argument, everything else on a full-argument hash.
func toolCallKey(e ToolEvent) (name, key string) {
	if paramKey, ok := pathKeyedTools[e.ToolName]; ok {
		return e.ToolName, extractParam(e.Input, paramKey)
	}
	// #nosec G401 -- MD5 used only for deduplication, not security
	h := md5.Sum([]byte(e.Input))
	return e.ToolName, fmt.Sprintf("%x", h)
}

// LoopDetector analyzes a ToolEvent history to detect repetitive agent
// behavior. Stateless: all detection is based on the slice passed in.
type LoopDetector struct{}

// DetectionResult describes a detected loop pattern.
type DetectionResult struct {
	Detected    bool   // whether a loop was detected
	Rule        string // which rule triggered: "same_tool_freq", "similar_params", "consecutive_errors"
	Description string // human-readable description for prompt injection
	ToolName    string // the tool that triggered the detection
}

// Check analyzes the event history and returns the first matching
// detection. Rules are evaluated in order; first match wins.
func (d *LoopDetector) Check(events []ToolEvent) DetectionResult {
	if len(events) < 2 {
		return DetectionResult{}
	}

	if r := d.checkSameToolFrequency(events); r.Detected {
		return r
	}
	if r := d.checkSimilarParams(events); r.Detected {
		return r
	}
	if r := d.checkConsecutiveErrors(events); r.Detected {
		return r
	}
	return DetectionResult{}
}

// ── Rule 1: Same Tool Frequency ──

func (d *LoopDetector) checkSameToolFrequency(events []ToolEvent) DetectionResult {
	window := recentWindow(events, loopWindowSize)

	type dedupKey struct{ name, key string }
	freq := make(map[dedupKey]int)

	for _, e := range window {
		name, key := toolCallKey(e)
		freq[dedupKey{name, key}]++
	}

	for k, count := range freq {
		if count >= loopSameToolLimit {
			desc := fmt.Sprintf("%s was called %d times", k.name, count)
			if k.key != "" && len(k.key) <= 60 {
				desc += fmt.Sprintf(" (argument: %s)", k.key)
			}
			return DetectionResult{
				Detected:    true,
				Rule:        "same_tool_freq",
				Description: desc,
				ToolName:    k.name,
			}
		}
	}
	return DetectionResult{}
}

// ── Rule 2: Similar Params ──

func (d *LoopDetector) checkSimilarParams(events []ToolEvent) DetectionResult {
	if len(events) < 2 {
		return DetectionResult{}
	}

	last := events[len(events)-1]
	prev := events[len(events)-2]

	if last.ToolName != prev.ToolName {
		return DetectionResult{}
	}

	similar := false
	switch {
	case isSearchTool(last.ToolName):
		// grep/search_code take "pattern" or "text"; MCP search tools
		// commonly take "query".
		var q1, q2 string
		for _, key := range []string{"query", "pattern", "text"} {
			if q1 == "" {
				q1 = extractParam(prev.Input, key)
			}
			if q2 == "" {
				q2 = extractParam(last.Input, key)
			}
		}
		if q1 != "" && q2 != "" {
			similar = jaccardSimilarity(bigrams(q1), bigrams(q2)) > loopSimilarityThreshold
		}
	case pathKeyedTools[last.ToolName] == "path":
		p1 := extractParam(prev.Input, "path")
		p2 := extractParam(last.Input, "path")
		similar = p1 != "" && p1 == p2
	default:
		similar = prev.Input == last.Input
	}

	if similar {
		return DetectionResult{
			Detected:    true,
			Rule:        "similar_params",
			Description: fmt.Sprintf("%s called consecutively with similar arguments", last.ToolName),
			ToolName:    last.ToolName,
		}
	}
	return DetectionResult{}
}

// ── Rule 3: Consecutive Errors ──

func (d *LoopDetector) checkConsecutiveErrors(events []ToolEvent) DetectionResult {
	if len(events) < loopConsecErrorLimit {
		return DetectionResult{}
	}

	tail := events[len(events)-loopConsecErrorLimit:]
	for _, e := range tail {
		if !e.IsError {
			return DetectionResult{}
		}
	}

	return DetectionResult{
		Detected:    true,
		Rule:        "consecutive_errors",
		Description: "the last " + strconv.Itoa(loopConsecErrorLimit) + " tool calls all failed",
	}
}

// ── Helpers ──

// recentWindow returns the last n items from a slice.
func recentWindow(events []ToolEvent, n int) []ToolEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// extractParam parses JSON input and extracts a string parameter by key.
// Returns "" on any failure (invalid JSON, missing key, non-string value).
func extractParam(jsonInput string, key string) string {
	var params map[string]any
	if err := json.Unmarshal([]byte(jsonInput), &params); err != nil {
		return ""
	}
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// isSearchTool returns true for tools where query similarity matters
// rather than exact-match dedup.
func isSearchTool(name string) bool {
	return name == "grep" || name == "search_code" ||
		(strings.HasPrefix(name, "mcp_") && strings.Contains(name, "search"))
}

// bigrams splits a string into a character bigram set. Rune-based, so it
// works for multi-byte content (CJK, etc.) as well as ASCII.
func bigrams(s string) map[string]bool {
	runes := []rune(s)
	set := make(map[string]bool)
	for i := 0; i < len(runes)-1; i++ {
		set[string(runes[i:i+2])] = true
	}
	return set
}

// jaccardSimilarity computes |A∩B| / |A∪B|.
// Guard: two empty sets are treated as fully similar (avoids 0/0 = NaN).
func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
