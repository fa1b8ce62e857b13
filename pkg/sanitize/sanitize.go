// Package sanitize makes third-party email HTML safe to embed in a dark-themed page.
package sanitize

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements removed together with their subtrees, in any namespace. The svg and math roots go
// because foreign content parses raw-text children differently on a second pass.
var droppedElements = map[string]bool{
	"svg":      true,
	"math":     true,
	"script":   true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"form":     true,
	"frame":    true,
	"frameset": true,
	"applet":   true,
	"noscript": true,
	"noembed":  true,
	"noframes": true,
	"base":     true,
	"meta":     true,
}

const (
	brokenImageKey = "data-broken"
	brokenImageVal = "hide"
	linkTarget     = "_blank"
	linkRel        = "noopener noreferrer"
)

// Sanitize returns the cleaned markup. On malformed input it returns whatever could be rendered.
func Sanitize(input string) string {
	out, _ := Clean(input)
	return out
}

// Clean is Sanitize with the render error exposed. The returned markup is usable even when err != nil.
func Clean(input string) (out string, err error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	defer func() {
		if r := recover(); r != nil {
			out = buf.String()
			err = fmt.Errorf("sanitize panic: %v", r)
		}
	}()

	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(input), container)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	for _, n := range nodes {
		if !keepNode(n) {
			continue
		}
		clean(n)
		if rerr := html.Render(&buf, n); rerr != nil && err == nil {
			err = fmt.Errorf("failed to render html: %w", rerr)
		}
	}
	return buf.String(), err
}

func keepNode(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return false
	case html.ElementNode:
		return !droppedElements[strings.ToLower(n.Data)]
	}
	return true
}

func clean(n *html.Node) {
	if n.Type == html.ElementNode {
		cleanAttributes(n)
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if !keepNode(c) {
			n.RemoveChild(c)
		} else {
			clean(c)
		}
		c = next
	}
}

func cleanAttributes(n *html.Node) {
	tag := strings.ToLower(n.Data)
	isImg := tag == "img"

	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case strings.HasPrefix(key, "on"):
			continue
		case !isImg && (key == "color" || key == "bgcolor"):
			continue
		case !isImg && key == "href" && isScriptURL(a.Val):
			continue
		case key == "style":
			a.Val = stripThemeColors(a.Val)
			if a.Val == "" {
				continue
			}
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs

	switch tag {
	case "img":
		setAttr(n, "loading", "lazy")
		setAttr(n, "style", withImageSizing(getAttr(n, "style")))
		setAttr(n, brokenImageKey, brokenImageVal)
	case "a":
		setAttr(n, "target", linkTarget)
		setAttr(n, "rel", linkRel)
	}
}

// isScriptURL reports a javascript: URL, ignoring case, whitespace and control characters.
func isScriptURL(val string) bool {
	var b strings.Builder
	for _, r := range val {
		if r <= 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.HasPrefix(strings.ToLower(b.String()), "javascript:")
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
