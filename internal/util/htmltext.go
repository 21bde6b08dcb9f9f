package util

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// ErrorText turns an upstream error body into a single readable line.
// MediaWiki answers some OAuth and API failures with an HTML page; for those
// the visible text of the page content is returned. Plain bodies are trimmed.
func ErrorText(body []byte, maxLen int) string {
	text := strings.TrimSpace(string(body))
	if looksLikeHTML(body) {
		if extracted := visibleText(body); extracted != "" {
			text = extracted
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<body"))
}

// visibleText collects text nodes, preferring the MediaWiki content area.
func visibleText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	root := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && attr(n, "id") == "mw-content-text"
	})
	if root == nil {
		root = findFirst(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "body"
		})
	}
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.TrimSpace(sb.String())
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
