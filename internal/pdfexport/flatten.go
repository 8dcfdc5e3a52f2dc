package pdfexport

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type blockKind int

const (
	blockHeading blockKind = iota
	blockParagraph
	blockListItem
	blockTableRow
)

type block struct {
	kind blockKind
	text string
}

// flattenHTML turns the sanitized report markup into an ordered list of
// text blocks the PDF renderer can lay out. Unknown wrappers contribute
// their text; structure beyond headings, lists and tables is dropped.
func flattenHTML(html string) []block {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Sanitized input should always parse; fall back to raw text.
		return []block{{kind: blockParagraph, text: strings.TrimSpace(html)}}
	}

	var out []block
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, tr, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "li":
			if t := squash(s.Text()); t != "" {
				out = append(out, block{kind: blockListItem, text: t})
			}
		case "tr":
			var cells []string
			s.Find("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, squash(c.Text()))
			})
			if row := strings.TrimSpace(strings.Join(cells, "  |  ")); row != "" {
				out = append(out, block{kind: blockTableRow, text: row})
			}
		case "p", "blockquote", "pre":
			if t := squash(s.Text()); t != "" {
				out = append(out, block{kind: blockParagraph, text: t})
			}
		default: // headings
			if t := squash(s.Text()); t != "" {
				out = append(out, block{kind: blockHeading, text: t})
			}
		}
	})

	if len(out) == 0 {
		if t := squash(doc.Text()); t != "" {
			out = append(out, block{kind: blockParagraph, text: t})
		}
	}
	return out
}

// squash collapses runs of whitespace left over from markup removal.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
