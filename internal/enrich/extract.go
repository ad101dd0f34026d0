package enrich

import (
	"strings"

	"golang.org/x/net/html"
)

// The remote markup is untrusted and unstable, so extraction degrades
// through an ordered list of strategies rather than failing outright.
// Each strategy is total: it returns an empty string instead of erroring.
type strategy func(doc *html.Node) string

func strategies() []strategy {
	return []strategy{
		aboutSection,
		metaDescription,
		pageText,
	}
}

// extractSummary parses the page and runs the strategy chain, returning the
// first non-empty body plus the page's image reference (may be empty).
func extractSummary(page string) (body, imageRef string) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", ""
	}

	for _, s := range strategies() {
		if text := s(doc); text != "" {
			body = text
			break
		}
	}
	return body, metaImage(doc)
}

// aboutSection returns the text of the first semantically tagged content
// block: a <section> or <div> whose id/class mentions "about", else the
// first <article> or <main>.
func aboutSection(doc *html.Node) string {
	var about, article *html.Node

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "section", "div":
			marker := strings.ToLower(attr(n, "id") + " " + attr(n, "class"))
			if about == nil && strings.Contains(marker, "about") {
				about = n
			}
		case "article", "main":
			if article == nil {
				article = n
			}
		}
	})

	if about != nil {
		return nodeText(about)
	}
	if article != nil {
		return nodeText(article)
	}
	return ""
}

// metaDescription returns og:description, falling back to the standard
// description meta tag.
func metaDescription(doc *html.Node) string {
	if v := findMeta(doc, "property", "og:description"); v != "" {
		return v
	}
	return findMeta(doc, "name", "description")
}

// pageText returns the whole visible body text as the last resort.
func pageText(doc *html.Node) string {
	var bodyNode *html.Node
	walk(doc, func(n *html.Node) {
		if bodyNode == nil && n.Type == html.ElementNode && n.Data == "body" {
			bodyNode = n
		}
	})
	if bodyNode == nil {
		return ""
	}
	return nodeText(bodyNode)
}

// metaImage returns the page's og:image reference, if any.
func metaImage(doc *html.Node) string {
	if v := findMeta(doc, "property", "og:image"); v != "" {
		return v
	}
	return findMeta(doc, "name", "twitter:image")
}

func findMeta(doc *html.Node, key, value string) string {
	var content string
	walk(doc, func(n *html.Node) {
		if content != "" || n.Type != html.ElementNode || n.Data != "meta" {
			return
		}
		if strings.EqualFold(attr(n, key), value) {
			content = strings.TrimSpace(attr(n, "content"))
		}
	})
	return content
}

// nodeText collects the text content of a subtree, skipping script and
// style elements, with blank lines collapsed.
func nodeText(root *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode && blockElement(n.Data) {
			sb.WriteString("\n")
		}
	}
	visit(root)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func blockElement(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "br", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// truncateSummary caps s at max characters, cutting at a rune boundary and
// preferring a paragraph or sentence break when one falls in the second
// half of the allowance.
func truncateSummary(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])

	best := -1
	for _, sep := range []string{"\n", ". ", "؟ ", "! ", "، "} {
		if i := strings.LastIndex(cut, sep); i > best {
			best = i + len(sep)
		}
	}
	if best >= len(cut)/2 {
		cut = cut[:best]
	}
	return strings.TrimSpace(cut)
}
