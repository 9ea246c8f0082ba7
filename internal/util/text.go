package util

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	generatedRE  = regexp.MustCompile(`\*[^*]*自动生成\*`)
	htmlHintRE   = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br)\b`)
)

// NormalizeClaims prepares raw claim text for segmentation: strips HTML
// markup when the input is an HTML export, drops document front matter
// separated by "---", removes generator footers, and collapses whitespace.
func NormalizeClaims(text string) string {
	if htmlHintRE.MatchString(text) {
		text = StripHTML(text)
	}

	// Front matter before the final "---" is page furniture, not claims.
	if strings.Contains(text, "---") {
		parts := strings.Split(text, "---")
		text = parts[len(parts)-1]
	}

	text = generatedRE.ReplaceAllString(text, "")
	text = whitespaceRE.ReplaceAllString(strings.TrimSpace(text), " ")
	return strings.TrimSpace(text)
}

// StripHTML extracts the visible text of an HTML document, skipping
// script, style and other non-content subtrees.
func StripHTML(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String())
}
