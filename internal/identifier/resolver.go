// Package identifier derives ranked selector candidates for a page element.
package identifier

import (
	"fmt"
	"strings"

	"webtestflow/recorder/internal/models"
)

// Element is the minimal describable-element capability the resolver needs. Any DOM-like
// binding can satisfy it.
type Element interface {
	// TagName returns the lowercase tag name.
	TagName() string
	Attribute(name string) (string, bool)
	// Parent returns the parent element, or nil when the parent is not an element.
	Parent() Element
	// SiblingIndex is the 1-based position among the parent's element children.
	SiblingIndex() int
}

// Geometry is implemented by elements that know their layout box.
type Geometry interface {
	BoundingBox() models.BoundingBox
}

// TextElement is implemented by elements that expose their text content.
type TextElement interface {
	TextContent() string
}

// Resolve collects every identifier kind available for el, ranked id, data-test,
// aria-label, name, title, nth. The nth path is always present.
func Resolve(el Element) models.Identifiers {
	ids := models.Identifiers{}
	if el == nil {
		return ids
	}

	if id, ok := el.Attribute("id"); ok && id != "" {
		ids = append(ids, models.Identifier{Kind: models.KindID, Selector: "#" + Escape(id)})
	}

	tag := el.TagName()
	for _, attr := range models.AttributeKinds {
		value, ok := el.Attribute(attr)
		if !ok || value == "" {
			continue
		}
		ids = append(ids, models.Identifier{
			Kind:     attr,
			Selector: fmt.Sprintf(`%s[%s="%s"]`, tag, attr, Escape(value)),
		})
	}

	ids = append(ids, models.Identifier{Kind: models.KindNth, Selector: NthPath(el)})
	return ids
}

// Primary returns the single best selector for el.
func Primary(el Element) string {
	first, ok := Resolve(el).First()
	if !ok {
		return "body"
	}
	return first.Selector
}

// NthPath builds the body-rooted nth-child chain for el.
func NthPath(el Element) string {
	var segments []string
	for cur := el; cur != nil && cur.TagName() != "body"; cur = cur.Parent() {
		segments = append(segments, fmt.Sprintf(">%s:nth-child(%d)", cur.TagName(), cur.SiblingIndex()))
	}

	var b strings.Builder
	b.WriteString("body")
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteString(segments[i])
	}
	return b.String()
}

// ElementType is the lowercase tag name, or the control subtype for inputs.
func ElementType(el Element) string {
	if el == nil {
		return ""
	}
	tag := el.TagName()
	if tag != "input" {
		return tag
	}
	if t, ok := el.Attribute("type"); ok && t != "" {
		return strings.ToLower(t)
	}
	return "text"
}
