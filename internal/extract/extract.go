// Package extract pulls plain text and bibliographic metadata out of
// uploaded documents. Extraction never panics on malformed input: metadata
// falls back field by field, and text extraction reports an error instead.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a document encoding the extractor understands.
type Format string

const (
	FormatUnknown  Format = ""
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Metadata is the best-effort bibliographic data of a document. Zero values mean unknown.
type Metadata struct {
	Title  string
	Author string
	Year   int
}

// Page is a run of extracted text. Number is 1-based for paged formats and 0 otherwise.
type Page struct {
	Number int
	Text   string
}

var (
	magicPDF = []byte("%PDF")
	magicZip = []byte("PK\x03\x04")
)

// DetectFormat resolves a format from the filename extension, then from the leading bytes.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt", ".text":
		return FormatText
	}

	switch {
	case bytes.HasPrefix(data, magicPDF):
		return FormatPDF
	case bytes.HasPrefix(data, magicZip):
		return FormatDOCX
	case len(data) > 0 && isMostlyText(data):
		return FormatText
	}
	return FormatUnknown
}

// ExtractMetadata returns title, author and year. Embedded properties are
// read first, then the document text, then the filename (title only).
func ExtractMetadata(data []byte, format Format, filename string) Metadata {
	var meta Metadata
	switch format {
	case FormatPDF:
		meta = pdfMetadata(data)
	case FormatDOCX:
		meta = docxMetadata(data)
	case FormatMarkdown:
		meta = markdownMetadata(data)
	case FormatText:
		meta = textMetadata(string(data))
	}

	if meta.Title == "" {
		meta.Title = TitleFromFilename(filename)
	}
	return meta
}

// ExtractText returns the document's text, one Page per physical page for
// paged formats and a single Page otherwise.
func ExtractText(data []byte, format Format) ([]Page, error) {
	switch format {
	case FormatPDF:
		return pdfText(data)
	case FormatDOCX:
		return docxText(data)
	case FormatMarkdown:
		return markdownText(data)
	case FormatText:
		return []Page{{Text: string(data)}}, nil
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

func isMostlyText(data []byte) bool {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	control := 0
	for _, b := range sample {
		if b == 0 {
			return false
		}
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			control++
		}
	}
	return control*10 < len(sample)
}
