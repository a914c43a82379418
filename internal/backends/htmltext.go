package backends

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLineRuns   = regexp.MustCompile(`\n{3,}`)
)

// PlainTextFromHTML derives the plain-text alternative for a markup body:
// head, style and script subtrees are dropped, anchors become
// "link text (url)", runs of horizontal whitespace collapse to one space and
// runs of blank lines collapse to a single blank line.
func PlainTextFromHTML(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		// Malformed markup degrades to the raw text rather than nothing.
		return strings.TrimSpace(markup)
	}

	var sb strings.Builder
	writeNodeText(&sb, root)

	text := sb.String()
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func writeNodeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Head, atom.Style, atom.Script:
			return
		case atom.A:
			writeAnchor(sb, n)
			return
		case atom.Br:
			sb.WriteString("\n")
			return
		}
	}

	block := isBlock(n)
	if block {
		sb.WriteString("\n")
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeNodeText(sb, child)
	}
	if block {
		sb.WriteString("\n")
	}
}

// writeAnchor renders an anchor as "link text (url)"; anchors without an
// href or whose text already is the URL render as the text alone.
func writeAnchor(sb *strings.Builder, n *html.Node) {
	var inner strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeNodeText(&inner, child)
	}
	text := strings.TrimSpace(inner.String())

	href := ""
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}

	switch {
	case text == "" && href == "":
	case href == "" || text == href:
		sb.WriteString(text)
	case text == "":
		sb.WriteString(href)
	default:
		sb.WriteString(text)
		sb.WriteString(" (")
		sb.WriteString(href)
		sb.WriteString(")")
	}
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Table, atom.Tr,
		atom.Li, atom.Ul, atom.Ol, atom.H1, atom.H2, atom.H3, atom.H4,
		atom.H5, atom.H6, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}
