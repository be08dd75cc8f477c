package render

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
)

// stripHTML drops markup from raw and keeps text, turning block elements and
// <br> into line breaks. Markdown outside of tags passes through.
func stripHTML(raw string) string {
	doc, err := nethtml.Parse(strings.NewReader("<html><body>" + raw + "</body></html>"))
	if err != nil {
		return html.UnescapeString(raw)
	}
	body := findBodyNode(doc)
	if body == nil {
		return html.UnescapeString(raw)
	}
	var b strings.Builder
	collectText(&b, body)
	return strings.Join(trimBlankLines(strings.Split(b.String(), "\n")), "\n")
}

func collectText(b *strings.Builder, node *nethtml.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case nethtml.TextNode:
			b.WriteString(child.Data)
		case nethtml.ElementNode:
			tag := strings.ToLower(child.Data)
			switch tag {
			case "script", "style", "noscript":
				continue
			case "br":
				b.WriteString("\n")
				continue
			case "img":
				if alt := nodeAttr(child, "alt"); alt != "" {
					b.WriteString(alt)
				}
				continue
			}
			block := isBlockElement(tag)
			if block {
				b.WriteString("\n")
			}
			collectText(b, child)
			if block {
				b.WriteString("\n")
			}
		}
	}
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "blockquote", "pre", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "tr", "hr", "figure":
		return true
	}
	return false
}

func findBodyNode(node *nethtml.Node) *nethtml.Node {
	if node == nil {
		return nil
	}
	if node.Type == nethtml.ElementNode && strings.EqualFold(node.Data, "body") {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findBodyNode(child); found != nil {
			return found
		}
	}
	return nil
}

func nodeAttr(node *nethtml.Node, name string) string {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}
