package classify

import (
	"strings"
)

const promptHeader = `You sort bank transactions into spending categories.
Assign every transaction label below to exactly one of the allowed categories.
Only use category names from the allowed list, spelled exactly as given.
If no category fits a label, leave that label out.
Reply with a single JSON object mapping each label to its category and nothing else.`

// BuildPrompt renders the instruction sent along with a MatchRequest.
func BuildPrompt(labels, categories []string) string {
	var b strings.Builder

	b.WriteString(promptHeader)
	b.WriteString("\n\nAllowed categories:\n")

	for _, c := range categories {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}

	b.WriteString("\nTransaction labels:\n")

	for _, l := range labels {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}

	return b.String()
}
