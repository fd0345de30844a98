package orchestrator

import (
	"fmt"
	"strings"

	"github.com/gosuda/duet/internal/domain"
)

// historyWindow is how many recent turns each prompt carries as context.
const historyWindow = 5

func renderHistory(turns []domain.Turn) string {
	if len(turns) == 0 {
		return "(no prior conversation)"
	}

	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func taskPrompt(query string, history []domain.Turn) string {
	return fmt.Sprintf(`You are a planning assistant. Turn the user's request into a clear, actionable task description for another AI to execute.

Recent conversation:
%s

User request: %s

Describe the task precisely: what to produce, the expected format, and any constraints. Output only the task description.`, renderHistory(history), query)
}

func executionPrompt(task string) string {
	return fmt.Sprintf(`You are an execution assistant. Carry out the following task and produce the final deliverable.

Task:
%s

Produce the deliverable directly, without commentary about the task itself.`, task)
}

func reviewPrompt(query, candidate string) string {
	return fmt.Sprintf(`You are a strict quality reviewer. Evaluate whether the response below fully answers the original request.

Original request: %s

Response to review:
%s

If the response is satisfactory, reply with the single word APPROVED. Otherwise list the concrete problems to fix, one per line.`, query, candidate)
}

func revisionPrompt(candidate, critique string) string {
	return fmt.Sprintf(`Revise the response below to address every point of the critique. Output only the revised response, with no lead-in phrases.

Current response:
%s

Critique:
%s`, candidate, critique)
}

func chatPrompt(query string, history []domain.Turn) string {
	return fmt.Sprintf(`You are a friendly assistant. Reply conversationally and briefly.

Recent conversation:
%s

User: %s`, renderHistory(history), query)
}
