// Package reviewer implements AutoReviewer: a single-shot review pass run
// against the diff a build phase produced, distinct from the multi-turn
// AgentLoop. It never calls tools and never mutates the workspace — its only
// output is a verdict plus free-form feedback.
package reviewer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/archrt/architect/internal/cost"
	"github.com/archrt/architect/internal/llm"
)

// reviewSystemPrompt mirrors the original architect-cli's
// reviewer.prompt template: render the task and the diff, ask for an
// APPROVE/REJECT verdict plus the reasoning behind it.
const reviewSystemPrompt = `You are a senior engineer doing a final code review before a change ships.
You will be given the task that was requested and the diff that was produced
to satisfy it. Judge only what's in the diff: correctness, whether it
actually does what the task asked, and any obvious regressions.

Reply in exactly this form:

VERDICT: APPROVE or REJECT
FEEDBACK: one paragraph explaining the verdict`

// ReviewResult is AutoReviewer's verdict on one diff.
type ReviewResult struct {
	Approved bool
	Feedback string
	CostUSD  float64
}

// Completer is the subset of agent.ModelAdapter AutoReviewer depends on —
// kept as an interface so tests can script replies without constructing a
// real backend/cache pair.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Reply, error)
}

// AutoReviewer runs one read-only review turn over a git diff. Cost may be
// nil to run with no budget accounting, same convention as AgentState.Cost.
type AutoReviewer struct {
	Adapter Completer
	Model   string
	Cost    *cost.CostTracker
}

// Review shells out to `git diff` in workspaceDir, sends it to the model
// alongside task, and parses the VERDICT/FEEDBACK reply. An empty diff
// (nothing staged or changed) short-circuits to an approval without calling
// the model — there is nothing to review.
func (r *AutoReviewer) Review(ctx context.Context, task, workspaceDir string) (ReviewResult, error) {
	diff, err := gitDiff(ctx, workspaceDir)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("reviewer: %w", err)
	}
	if strings.TrimSpace(diff) == "" {
		return ReviewResult{Approved: true, Feedback: "no changes to review"}, nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: reviewSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("# Task\n\n%s\n\n# Diff\n\n```diff\n%s\n```", task, diff)},
	}

	reply, err := r.Adapter.Complete(ctx, messages, nil)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("reviewer: %w", err)
	}

	var costUSD float64
	if r.Cost != nil {
		// A review pass has no step counter of its own; billed under a
		// fixed step number so it shows up as one line in the breakdown
		// rather than colliding with the build loop's own step numbering.
		_ = r.Cost.Record(0, r.Model, reply.Usage, "review")
		total, _ := r.Cost.Summary()
		costUSD = total.CostUSD
	}

	approved, feedback := parseVerdict(reply.Content)
	return ReviewResult{Approved: approved, Feedback: feedback, CostUSD: costUSD}, nil
}

// gitDiff runs `git diff HEAD` in dir, falling back to `git diff` (no HEAD,
// e.g. a repo with no commits yet) if the first form fails.
func gitDiff(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "diff", "HEAD")
	if err == nil {
		return out, nil
	}
	out, err2 := runGit(ctx, dir, "diff")
	if err2 != nil {
		return "", err
	}
	return out, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// parseVerdict extracts the VERDICT/FEEDBACK lines from a reply. A reply
// that doesn't follow the requested form is treated as a REJECT with the
// raw content as feedback — silently approving an unparseable review would
// defeat the point of running one.
func parseVerdict(content string) (approved bool, feedback string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "VERDICT:"):
			v := strings.TrimSpace(line[len("VERDICT:"):])
			approved = strings.EqualFold(v, "APPROVE")
		case strings.HasPrefix(strings.ToUpper(line), "FEEDBACK:"):
			feedback = strings.TrimSpace(line[len("FEEDBACK:"):])
		}
	}
	if feedback == "" {
		feedback = content
	}
	return approved, feedback
}

// FormatVerdict renders a ReviewResult as a one-line summary, e.g. for a CLI.
func FormatVerdict(r ReviewResult) string {
	status := "REJECTED"
	if r.Approved {
		status = "APPROVED"
	}
	return status + " ($" + strconv.FormatFloat(r.CostUSD, 'f', 4, 64) + "): " + r.Feedback
}
