package briefing

import (
	"fmt"
	"strings"

	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/domain/types"
)

const (
	summaryHeader     = "## Summary"
	actionItemsHeader = "## Action Items"
)

// sectionTitles gives each category a human-readable prompt section
var sectionTitles = map[types.EventCategory]string{
	types.EventCategoryMeeting:    "Meetings",
	types.EventCategoryTask:       "Tasks",
	types.EventCategoryMessage:    "Messages",
	types.EventCategoryDeployment: "Code & Deployments",
}

// systemPrompt fixes the voice and the output structure the parser expects
func systemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that writes a concise daily briefing from a person's activity across their work tools. The briefing should take about two minutes to read and focus on actionable insight, not a restatement of the data.\n\n")
	sb.WriteString("Respond in exactly this structure:\n\n")
	sb.WriteString(summaryHeader + "\n")
	sb.WriteString("A natural language summary (2-3 short paragraphs) covering the day's meetings, important messages and pending work.\n\n")
	sb.WriteString(actionItemsHeader + "\n")
	sb.WriteString("- One short actionable item per line, most important first. Omit the section content entirely if nothing needs action.\n")

	return sb.String()
}

// renderPrompt builds the user prompt: events grouped by category, listed in
// rank order within each section. The transformation is deterministic so it
// can be tested independently of the model call.
func renderPrompt(date model.BriefingDate, ranked []*model.RankedEvent) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Activity for %s:\n", date)

	for _, cat := range types.AllEventCategories() {
		var lines []string
		for _, re := range ranked {
			if re.Event.Category != cat {
				continue
			}
			line := fmt.Sprintf("- [%s] %s", re.Event.OccurredAt.UTC().Format("15:04"), re.Event.Title)
			if re.Event.Body != "" {
				line += "\n  " + strings.ReplaceAll(re.Event.Body, "\n", "\n  ")
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "\n### %s\n", sectionTitles[cat])
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}

	return sb.String()
}

// parseOutput splits the model output into summary text and action items
// following the fixed section contract. If the structure is missing, the
// whole output becomes the summary with no action items, never an error.
func parseOutput(text string) (string, []string) {
	trimmed := strings.TrimSpace(text)

	sumIdx := strings.Index(trimmed, summaryHeader)
	actIdx := strings.Index(trimmed, actionItemsHeader)
	if sumIdx < 0 || actIdx < 0 || actIdx < sumIdx {
		return trimmed, nil
	}

	summary := strings.TrimSpace(trimmed[sumIdx+len(summaryHeader) : actIdx])
	if summary == "" {
		return trimmed, nil
	}

	var items []string
	for _, line := range strings.Split(trimmed[actIdx+len(actionItemsHeader):], "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "- "); ok {
			if item := strings.TrimSpace(after); item != "" {
				items = append(items, item)
			}
		}
	}

	return summary, items
}
