package extract

import "strings"

// decodeText decodes the buffer as UTF-8, replacing invalid sequences so a
// stray latin-1 file never poisons downstream JSON encoding.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
