package capture

import (
	"strings"

	"webtestflow/recorder/internal/identifier"
	"webtestflow/recorder/internal/models"
)

// Described is an element as the page script saw it at event time: the attributes the
// resolver and classifier read, its position among its siblings, its layout box and its
// ancestry up to body.
type Described struct {
	Tag        string              `json:"tag"`
	Attrs      map[string]string   `json:"attrs,omitempty"`
	Index      int                 `json:"index"`
	Text       string              `json:"text,omitempty"`
	Rect       *models.BoundingBox `json:"rect,omitempty"`
	ParentNode *Described          `json:"parent,omitempty"`
}

var (
	_ identifier.Element     = (*Described)(nil)
	_ identifier.Geometry    = (*Described)(nil)
	_ identifier.TextElement = (*Described)(nil)
)

func (d *Described) TagName() string {
	return strings.ToLower(d.Tag)
}

func (d *Described) Attribute(name string) (string, bool) {
	v, ok := d.Attrs[strings.ToLower(name)]
	return v, ok
}

func (d *Described) Parent() identifier.Element {
	if d.ParentNode == nil {
		return nil
	}
	return d.ParentNode
}

func (d *Described) SiblingIndex() int {
	if d.Index < 1 {
		return 1
	}
	return d.Index
}

func (d *Described) BoundingBox() models.BoundingBox {
	if d.Rect == nil {
		return models.BoundingBox{}
	}
	return *d.Rect
}

func (d *Described) TextContent() string {
	return d.Text
}
