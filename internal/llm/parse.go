package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doclens/doclens/pkg/models"
)

// ParseAnalysis decodes a model's raw completion into a DocumentAnalysis,
// tolerating the code-fence wrapping chat models like to add around JSON.
func ParseAnalysis(content string) (models.DocumentAnalysis, error) {
	cleaned := StripCodeFence(content)

	var out models.DocumentAnalysis
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return models.DocumentAnalysis{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return out, nil
}

// StripCodeFence removes a surrounding ``` block if present and otherwise
// trims to the outermost JSON object.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	// models sometimes prepend prose before the object
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
