package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	docxBodyPart = "word/document.xml"
	docxCorePart = "docProps/core.xml"
)

// maxZipPartSize caps the decompressed size of any part read from a DOCX.
var maxZipPartSize int64 = 32 << 20

// coreProperties matches docProps/core.xml by local name.
type coreProperties struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

func openDocx(data []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		if f.UncompressedSize64 > uint64(maxZipPartSize) {
			return nil, fmt.Errorf("part %s is %d bytes, limit is %d", name, f.UncompressedSize64, maxZipPartSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = rc.Close()
		}()
		data, err := io.ReadAll(io.LimitReader(rc, maxZipPartSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > maxZipPartSize {
			return nil, fmt.Errorf("part %s exceeds %d bytes", name, maxZipPartSize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// docxMetadata reads core properties, then uses the first short paragraph as title.
func docxMetadata(data []byte) Metadata {
	zr, err := openDocx(data)
	if err != nil {
		return Metadata{}
	}

	var meta Metadata
	if raw, err := readZipPart(zr, docxCorePart); err == nil {
		var props coreProperties
		if xml.Unmarshal(raw, &props) == nil {
			meta.Title = cleanProperty(props.Title)
			meta.Author = cleanProperty(props.Creator)
			meta.Year = yearFromDate(props.Created)
			if meta.Year == 0 {
				meta.Year = yearFromDate(props.Modified)
			}
		}
	}

	if meta.Title != "" {
		return meta
	}
	raw, err := readZipPart(zr, docxBodyPart)
	if err != nil {
		return meta
	}
	paragraphs, err := docxParagraphs(raw)
	if err != nil {
		return meta
	}
	for _, p := range paragraphs {
		if n := utf8.RuneCountInString(p); n > 0 && n < maxTitleRunes {
			meta.Title = p
			break
		}
	}
	return meta
}

func docxText(data []byte) ([]Page, error) {
	zr, err := openDocx(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	raw, err := readZipPart(zr, docxBodyPart)
	if err != nil {
		return nil, fmt.Errorf("failed to read docx body: %w", err)
	}
	paragraphs, err := docxParagraphs(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx body: %w", err)
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []Page{{Text: strings.Join(paragraphs, "\n\n")}}, nil
}

// docxParagraphs streams word/document.xml and returns the non-empty
// paragraph texts (w:p), honoring tabs and line breaks inside runs.
func docxParagraphs(raw []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
