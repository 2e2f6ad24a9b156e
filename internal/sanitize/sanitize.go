// Package sanitize reduces a captured DOM subtree to canonical, inert HTML.
//
// The output carries no scripts, styles, comments or event handlers, keeps only
// href, src, alt and title attributes, and has its whitespace collapsed.
// Sanitizing the output again yields the same bytes.
package sanitize

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// removedTags are dropped together with their whole subtree.
var removedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"link":     true,
	"meta":     true,
	"noscript": true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	// raw-text elements whose bodies would render unescaped
	"xmp":       true,
	"plaintext": true,
	"noembed":   true,
	"noframes":  true,
}

var allowedAttrs = map[string]bool{
	"href":  true,
	"src":   true,
	"alt":   true,
	"title": true,
}

// containerTags are removed when they hold no text and no image.
var containerTags = map[string]bool{
	"div":     true,
	"span":    true,
	"p":       true,
	"section": true,
	"article": true,
}

var (
	whitespaceRun = regexp.MustCompile(`\s{2,}|[\n\t\r]`)
	betweenTags   = regexp.MustCompile(`>\s+<`)
)

// Node returns the sanitized inner HTML of n. n itself is never modified.
func Node(n *html.Node) string {
	if n == nil {
		return ""
	}
	return clean(cloneTree(n))
}

// Fragment parses raw as the body of a <div> and returns it sanitized.
// Unparseable input yields "".
func Fragment(raw string) string {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(raw), root)
	if err != nil {
		return ""
	}
	for _, c := range nodes {
		root.AppendChild(c)
	}
	return clean(root)
}

// clean strips root's subtree in place and renders its children.
func clean(root *html.Node) string {
	strip(root)
	dropEmpty(root)

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return collapse(buf.String())
}

// strip removes unsafe elements, comments and disallowed attributes.
func strip(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		case html.ElementNode:
			if removedTags[c.Data] {
				n.RemoveChild(c)
				break
			}
			c.Attr = filterAttrs(c.Attr)
			strip(c)
		}
		c = next
	}
}

func filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if a.Namespace != "" || !allowedAttrs[a.Key] {
			continue
		}
		if (a.Key == "href" || a.Key == "src") && scriptURL(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// scriptURL reports whether v uses a scheme that executes code when followed.
func scriptURL(v string) bool {
	v = strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v)
	v = strings.ToLower(v)
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:")
}

// dropEmpty removes containers with no text and no image. A parent is checked
// before its children, so an empty wrapper goes in one step.
func dropEmpty(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if containerTags[c.Data] && strings.TrimSpace(textContent(c)) == "" && !hasImage(c) {
				n.RemoveChild(c)
			} else {
				dropEmpty(c)
			}
		}
		c = next
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func hasImage(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "img" {
			return true
		}
		if hasImage(c) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = betweenTags.ReplaceAllString(s, "><")
	return strings.TrimSpace(s)
}

// cloneTree deep-copies n and its descendants into a detached tree.
func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneTree(child))
	}
	return c
}
