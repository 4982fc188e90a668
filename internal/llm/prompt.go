package llm

import "strings"

// SystemPrompt instructs the model to emit bare JSON in the analysis shape.
const SystemPrompt = "You are a document analyst. Return ONLY a JSON object with the keys " +
	`"summary" (string), "key_points" (array of strings), "keywords" (array of strings), ` +
	`"category" (one short label), "sentiment" ("positive", "neutral" or "negative"), ` +
	`"word_count" (integer) and "char_count" (integer). ` +
	"Never wrap the JSON in markdown fences and never output anything else."

func BuildUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze the following document text:\n\n")
	b.WriteString(text)
	return b.String()
}
