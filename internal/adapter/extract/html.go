// Package extract converts article HTML into plain text for embedding input.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLExtractor pulls visible text out of article HTML.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// ExtractText returns the text content of doc with whitespace collapsed.
// Script, style and template contents are dropped. Input that fails to parse
// is returned unchanged.
func (e *HTMLExtractor) ExtractText(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return strings.Join(strings.Fields(doc), " ")
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Br, atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Tr, atom.Blockquote:
				sb.WriteByte(' ')
				defer sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(strings.Fields(sb.String()), " ")
}
