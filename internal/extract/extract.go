// Package extract converts raw document bytes into plain text, dispatching
// on the declared media type. Extraction failures are structural (bad
// input), never transient, so nothing here retries.
package extract

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// ErrEmptyExtraction means a format we do parse yielded no text at all.
var ErrEmptyExtraction = errors.New("no text could be extracted")

// Placeholder texts for formats the pipeline deliberately does not parse.
// The job still proceeds; the analysis stage produces a short, low-value
// summary over these.
const (
	placeholderImage        = "This file is an image. Its visual content is not analyzed and no embedded text was extracted."
	placeholderSpreadsheet  = "This file is a spreadsheet. Tabular contents are not extracted for analysis."
	placeholderPresentation = "This file is a presentation. Slide contents are not extracted for analysis."
	placeholderArchive      = "This file is a compressed archive. Archived contents are not extracted for analysis."
	placeholderUnknown      = "This file is in an unrecognized binary format and no text was extracted."
)

type kind int

const (
	kindPDF kind = iota
	kindWordDoc
	kindDOCX
	kindRTF
	kindText
	kindImage
	kindSpreadsheet
	kindPresentation
	kindArchive
	kindUnknown
)

// Extractor dispatches a byte buffer plus declared media type to a codec.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract converts data into plain text. Formats outside the deeply
// supported set return a fixed descriptive placeholder rather than failing.
func (e *Extractor) Extract(data []byte, mediaType, fileName string) (string, error) {
	switch classify(mediaType, fileName) {
	case kindPDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("pdf: %w", err)
		}
		return text, nil
	case kindDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return "", fmt.Errorf("docx: %w", err)
		}
		return text, nil
	case kindWordDoc:
		text, err := extractDOC(data)
		if err != nil {
			return "", fmt.Errorf("doc: %w", err)
		}
		return text, nil
	case kindRTF:
		text, err := extractRTF(data)
		if err != nil {
			return "", fmt.Errorf("rtf: %w", err)
		}
		return text, nil
	case kindText:
		return decodeText(data), nil
	case kindImage:
		return placeholderImage, nil
	case kindSpreadsheet:
		return placeholderSpreadsheet, nil
	case kindPresentation:
		return placeholderPresentation, nil
	case kindArchive:
		return placeholderArchive, nil
	default:
		return placeholderUnknown, nil
	}
}

func classify(mediaType, fileName string) kind {
	mt := normalizeMediaType(mediaType)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))

	switch {
	case mt == "application/pdf" || ext == "pdf":
		return kindPDF
	case mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" || ext == "docx":
		return kindDOCX
	case mt == "application/msword" || ext == "doc":
		return kindWordDoc
	case mt == "application/rtf" || mt == "text/rtf" || ext == "rtf":
		return kindRTF
	case mt == "text/plain" || mt == "text/csv" || ext == "txt" || ext == "csv" || ext == "md" || ext == "log":
		return kindText
	case strings.HasPrefix(mt, "image/"):
		return kindImage
	case mt == "application/vnd.ms-excel" ||
		mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" ||
		ext == "xls" || ext == "xlsx":
		return kindSpreadsheet
	case mt == "application/vnd.ms-powerpoint" ||
		mt == "application/vnd.openxmlformats-officedocument.presentationml.presentation" ||
		ext == "ppt" || ext == "pptx":
		return kindPresentation
	case mt == "application/zip" || mt == "application/gzip" || mt == "application/x-tar" ||
		ext == "zip" || ext == "gz" || ext == "tar" || ext == "rar" || ext == "7z":
		return kindArchive
	default:
		return kindUnknown
	}
}

func normalizeMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
	}
	return mt
}
