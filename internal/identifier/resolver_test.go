package identifier_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"webtestflow/recorder/internal/identifier"
	"webtestflow/recorder/internal/models"
)

const fixture = `<html><head><title>t</title></head><body>` +
	`<div><p>intro</p><form>` +
	`<input name="q" type="Checkbox"><button id="go">Go</button>` +
	`</form></div>` +
	`<section><span data-test="submit btn" aria-label="Close" name="n" title="Tip">x</span>` +
	`<em></em><em id="">bare</em></section>` +
	`<ul><li>a</li><li>b</li><li><a href="#">c</a></li></ul>` +
	`</body></html>`

func parse(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	return doc
}

// find returns the n-th (0-based) element with the given tag in document order.
func find(doc *html.Node, tag string, n int) *html.Node {
	var found *html.Node
	count := 0
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			if count == n {
				found = node
				return
			}
			count++
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func TestResolve_ButtonWithID(t *testing.T) {
	doc := parse(t)
	el := identifier.FromHTML(find(doc, "button", 0))
	require.NotNil(t, el)

	ids := identifier.Resolve(el)
	assert.Equal(t, []string{models.KindID, models.KindNth}, ids.Kinds())

	id, _ := ids.Get(models.KindID)
	assert.Equal(t, "#go", id)
	nth, _ := ids.Get(models.KindNth)
	assert.Equal(t, "body>div:nth-child(1)>form:nth-child(2)>button:nth-child(2)", nth)
	assert.Equal(t, "button", identifier.ElementType(el))
	assert.Equal(t, "#go", identifier.Primary(el))
}

func TestResolve_AttributeKindsInOrder(t *testing.T) {
	doc := parse(t)
	el := identifier.FromHTML(find(doc, "span", 0))

	ids := identifier.Resolve(el)
	assert.Equal(t, []string{
		models.KindDataTest, models.KindAriaLabel, models.KindName, models.KindTitle, models.KindNth,
	}, ids.Kinds())

	dataTest, _ := ids.Get(models.KindDataTest)
	assert.Equal(t, `span[data-test="submit\ btn"]`, dataTest)
	aria, _ := ids.Get(models.KindAriaLabel)
	assert.Equal(t, `span[aria-label="Close"]`, aria)
	assert.Equal(t, dataTest, identifier.Primary(el))
}

func TestResolve_NoSemanticAttributes(t *testing.T) {
	doc := parse(t)

	tests := []struct {
		name string
		node *html.Node
		want string
	}{
		{"empty element", find(doc, "em", 0), "body>section:nth-child(2)>em:nth-child(2)"},
		{"empty id is ignored", find(doc, "em", 1), "body>section:nth-child(2)>em:nth-child(3)"},
		{"nested list anchor", find(doc, "a", 0), "body>ul:nth-child(3)>li:nth-child(3)>a:nth-child(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := identifier.Resolve(identifier.FromHTML(tt.node))
			require.Len(t, ids, 1)
			assert.Equal(t, models.KindNth, ids[0].Kind)
			assert.Equal(t, tt.want, ids[0].Selector)
			assert.Equal(t, independentPath(tt.node), ids[0].Selector)
		})
	}
}

func TestResolve_BodyItself(t *testing.T) {
	doc := parse(t)
	ids := identifier.Resolve(identifier.FromHTML(find(doc, "body", 0)))
	nth, ok := ids.Get(models.KindNth)
	require.True(t, ok)
	assert.Equal(t, "body", nth)
}

func TestResolve_DoesNotMutate(t *testing.T) {
	doc := parse(t)
	var before, after strings.Builder
	require.NoError(t, html.Render(&before, doc))

	identifier.Resolve(identifier.FromHTML(find(doc, "span", 0)))
	identifier.Resolve(identifier.FromHTML(find(doc, "a", 0)))

	require.NoError(t, html.Render(&after, doc))
	assert.Equal(t, before.String(), after.String())
}

func TestElementType(t *testing.T) {
	doc := parse(t)
	assert.Equal(t, "checkbox", identifier.ElementType(identifier.FromHTML(find(doc, "input", 0))))
	assert.Equal(t, "span", identifier.ElementType(identifier.FromHTML(find(doc, "span", 0))))

	bare, err := html.Parse(strings.NewReader(`<body><input></body>`))
	require.NoError(t, err)
	assert.Equal(t, "text", identifier.ElementType(identifier.FromHTML(find(bare, "input", 0))))
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"go", "go"},
		{"1abc", `\31 abc`},
		{"-1x", `-\31 x`},
		{"-", `\-`},
		{"a.b#c", `a\.b\#c`},
		{`say "hi"`, `say\ \"hi\"`},
		{"café_x-y", "café_x-y"},
		{"a\x00b", "a\uFFFDb"},
		{"tab\there", `tab\9 here`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, identifier.Escape(tt.in), "escape %q", tt.in)
	}
}

func TestFromHTML_NonElement(t *testing.T) {
	doc := parse(t)
	assert.Nil(t, identifier.FromHTML(doc))
	assert.Nil(t, identifier.FromHTML(nil))
}

// independentPath recomputes the sibling path directly from the html tree.
func independentPath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode && cur.Data != "body"; cur = cur.Parent {
		i := 0
		for c := cur.Parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				i++
			}
			if c == cur {
				break
			}
		}
		parts = append([]string{cur.Data + ":nth-child(" + strconv.Itoa(i) + ")"}, parts...)
	}
	if len(parts) == 0 {
		return "body"
	}
	return "body>" + strings.Join(parts, ">")
}
