package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// extractDOCX pulls the text runs out of word/document.xml. A .docx file is
// a zip of XML, so no external parser is needed.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("missing word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var b strings.Builder
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			// w:t holds a literal text run
			if t.Name.Local == "t" {
				var run string
				if err := dec.DecodeElement(&run, &t); err != nil {
					return "", fmt.Errorf("decode text run: %w", err)
				}
				b.WriteString(run)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}

// extractDOC recovers readable runs from a legacy binary .doc file. The CFB
// container is not parsed; printable runs of at least minRunLen characters
// are kept, which captures the document body well enough for analysis.
func extractDOC(data []byte) (string, error) {
	const minRunLen = 4

	var b strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= minRunLen {
			b.WriteString(string(run))
			b.WriteString("\n")
		}
		run = run[:0]
	}

	for _, c := range data {
		r := rune(c)
		if r == ' ' || unicode.IsPrint(r) && r < 127 {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}
