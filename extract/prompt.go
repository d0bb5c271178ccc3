package extract

import (
	_ "embed"
	"strings"
)

// PromptVersion identifies the instruction template. Bump it whenever the
// template or the worked example changes.
const PromptVersion = "2024-11.3"

const systemPrompt = "You are an expert analyst of carbon credit and nature-based climate projects. " +
	"You always respond with a single valid JSON object and nothing else."

var (
	//go:embed prompts/instructions.txt
	instructions string

	//go:embed prompts/example.txt
	workedExample string
)

// BuildPrompt concatenates the instruction template, the optional worked example
// and the caller's text into the user message.
func BuildPrompt(text string, includeExample bool) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(workedExample) + len(text) + 64)
	b.WriteString(instructions)
	if includeExample {
		b.WriteString("\n")
		b.WriteString(workedExample)
	}
	b.WriteString("\nPROJECT DESCRIPTION:\n")
	b.WriteString(text)
	return b.String()
}
