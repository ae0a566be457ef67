package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func openPDF(data []byte) (*pdf.Reader, error) {
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pdfMetadata reads the Info dictionary, then fills gaps from the first page.
func pdfMetadata(data []byte) (meta Metadata) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			meta = Metadata{}
		}
	}()

	reader, err := openPDF(data)
	if err != nil {
		return Metadata{}
	}

	info := reader.Trailer().Key("Info")
	meta.Title = cleanProperty(info.Key("Title").Text())
	meta.Author = cleanProperty(info.Key("Author").Text())
	meta.Year = yearFromDate(info.Key("CreationDate").Text())
	if meta.Year == 0 {
		meta.Year = yearFromDate(info.Key("ModDate").Text())
	}

	if meta.Title != "" && meta.Author != "" && meta.Year != 0 {
		return meta
	}
	if reader.NumPage() < 1 {
		return meta
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return meta
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return meta
	}
	return fillFromText(meta, text)
}

// pdfText extracts text page by page. Pages that fail to decode are skipped.
func pdfText(data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := openPDF(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// cleanProperty drops placeholder values some authoring tools write.
func cleanProperty(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	switch strings.ToLower(s) {
	case "", "untitled", "unknown", "microsoft word", "title":
		return ""
	}
	if strings.HasPrefix(strings.ToLower(s), "microsoft word - ") {
		return strings.TrimSuffix(strings.TrimSpace(s[len("microsoft word - "):]), ".docx")
	}
	return s
}
