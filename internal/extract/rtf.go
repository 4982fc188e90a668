package extract

import (
	"strconv"
	"strings"
)

// Destination groups whose contents are metadata, not document text.
var rtfSkipGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
}

// extractRTF strips RTF control words and groups down to the plain text.
// It is a tolerant scanner, not a full RTF parser.
func extractRTF(data []byte) (string, error) {
	var b strings.Builder
	i := 0
	n := len(data)

	for i < n {
		c := data[i]
		switch c {
		case '{':
			// peek at the group's destination and skip metadata groups
			if name, ok := peekGroupName(data, i); ok && rtfSkipGroups[name] {
				i = skipGroup(data, i)
				continue
			}
			i++
		case '}':
			i++
		case '\\':
			word, param, next := readControl(data, i)
			i = next
			switch word {
			case "par", "line", "sect", "page":
				b.WriteString("\n")
			case "tab":
				b.WriteString("\t")
			case "'":
				// hex escape, decoded as Latin-1 so the output stays valid UTF-8
				if v, err := strconv.ParseUint(param, 16, 8); err == nil {
					b.WriteRune(rune(v))
				}
			case "{", "}", "\\":
				b.WriteString(word)
			}
		case '\r', '\n':
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}

// readControl consumes a control word or symbol starting at the backslash
// and returns its name, parameter, and the next scan position.
func readControl(data []byte, i int) (word, param string, next int) {
	i++ // backslash
	n := len(data)
	if i >= n {
		return "", "", i
	}

	c := data[i]
	if !isLetter(c) {
		// control symbol: \{  \}  \\  \'hh
		if c == '\'' {
			end := i + 3
			if end > n {
				end = n
			}
			return "'", string(data[i+1 : end]), end
		}
		return string(c), "", i + 1
	}

	start := i
	for i < n && isLetter(data[i]) {
		i++
	}
	word = string(data[start:i])

	// optional signed numeric parameter
	pStart := i
	if i < n && (data[i] == '-' || isDigit(data[i])) {
		i++
		for i < n && isDigit(data[i]) {
			i++
		}
	}
	param = string(data[pStart:i])

	// a single space terminates the control word and is consumed with it
	if i < n && data[i] == ' ' {
		i++
	}
	return word, param, i
}

func peekGroupName(data []byte, i int) (string, bool) {
	j := i + 1
	if j < len(data) && data[j] == '\\' {
		j++
		if j < len(data) && data[j] == '*' {
			j += 2 // \*\destination
		}
		start := j
		for j < len(data) && isLetter(data[j]) {
			j++
		}
		if j > start {
			return string(data[start:j]), true
		}
	}
	return "", false
}

func skipGroup(data []byte, i int) int {
	depth := 0
	for ; i < len(data); i++ {
		switch data[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '\\':
			i++ // skip escaped brace
		}
	}
	return i
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
