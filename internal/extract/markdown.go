package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.Table))

func parseMarkdown(content []byte) ast.Node {
	return markdownParser.Parser().Parse(text.NewReader(content))
}

// markdownMetadata uses the first level-1 heading, else the first level-2
// heading, as the title. Author and year come from the body text.
func markdownMetadata(content []byte) Metadata {
	doc := parseMarkdown(content)

	var firstH1, firstH2 string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			headingText := inlineText(heading, content)
			if heading.Level == 1 && firstH1 == "" {
				firstH1 = headingText
				return ast.WalkStop, nil
			}
			if heading.Level == 2 && firstH2 == "" {
				firstH2 = headingText
			}
		}
		return ast.WalkContinue, nil
	})

	meta := Metadata{Title: firstH1}
	if meta.Title == "" {
		meta.Title = firstH2
	}

	blocks := markdownBlocks(doc, content)
	sample := firstRunes(strings.Join(blocks, "\n"), 4000)
	meta.Author = authorFromText(sample)
	meta.Year = yearFromText(sample)
	return meta
}

// markdownText flattens the document to plain text, one block per paragraph.
func markdownText(content []byte) ([]Page, error) {
	blocks := markdownBlocks(parseMarkdown(content), content)
	if len(blocks) == 0 {
		return nil, nil
	}
	return []Page{{Text: strings.Join(blocks, "\n\n")}}, nil
}

func markdownBlocks(doc ast.Node, content []byte) []string {
	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		var block string
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			block = inlineText(node, content)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			block = blockLines(node, content)
		default:
			if strings.HasSuffix(n.Kind().String(), "TableRow") || strings.HasSuffix(n.Kind().String(), "TableHeader") {
				block = tableRowText(n, content)
			} else {
				return ast.WalkContinue, nil
			}
		}

		if block = strings.TrimSpace(block); block != "" {
			blocks = append(blocks, block)
		}
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// inlineText concatenates the text leaves under n.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func blockLines(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(content))
	}
	return b.String()
}

func tableRowText(row ast.Node, content []byte) string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, inlineText(c, content))
	}
	return strings.Join(cells, " | ")
}
