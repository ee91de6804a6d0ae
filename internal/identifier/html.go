package identifier

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlElement adapts a parsed golang.org/x/net/html element node.
type htmlElement struct {
	node *html.Node
}

// FromHTML wraps n as an Element. It returns nil for non-element nodes.
func FromHTML(n *html.Node) Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return htmlElement{node: n}
}

func (e htmlElement) TagName() string {
	return strings.ToLower(e.node.Data)
}

func (e htmlElement) Attribute(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e htmlElement) Parent() Element {
	if e.node.Parent == nil || e.node.Parent.Type != html.ElementNode {
		return nil
	}
	return htmlElement{node: e.node.Parent}
}

func (e htmlElement) SiblingIndex() int {
	index := 1
	for prev := e.node.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode {
			index++
		}
	}
	return index
}

func (e htmlElement) TextContent() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

// Node returns the wrapped html node.
func (e htmlElement) Node() *html.Node {
	return e.node
}
