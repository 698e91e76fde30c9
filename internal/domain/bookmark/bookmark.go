// Package bookmark renders a grouping tree as a Netscape bookmark file.
package bookmark

import (
	"net/url"
	"strings"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	"github.com/kailas-cloud/stockmarks/internal/domain/grouping"
)

// DefaultLinkBase is the stock-lookup URL prefix; the escaped SKU is appended as a path segment.
const DefaultLinkBase = "https://products.jbhifi.tech/au/product/"

// DefaultFileName is the download name of the rendered document.
const DefaultFileName = "products-app-bookmarks.html"

// MIMEType is the content type of the rendered document.
const MIMEType = "text/html"

const indent = "    "

const header = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
`

const footer = `
</DL><p>`

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape replaces &, <, > and " with their HTML entities.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Option configures Serialize.
type Option func(*serializer)

// WithLinkBase overrides the URL prefix links are built from.
func WithLinkBase(base string) Option {
	return func(s *serializer) {
		if base != "" {
			s.linkBase = base
		}
	}
}

type serializer struct {
	linkBase string
}

// Serialize renders root as a complete bookmark document. Branch children are
// emitted in stored order. A leaf with a single unique SKU becomes one link
// titled with its key; otherwise each unique SKU gets a link titled "key SKU".
func Serialize(root *grouping.Node, opts ...Option) (string, error) {
	s := &serializer{linkBase: DefaultLinkBase}
	for _, o := range opts {
		o(s)
	}

	lines := make([]string, 0, 64)
	var err error
	lines, err = s.render(lines, root, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString(footer)
	return b.String(), nil
}

func (s *serializer) render(lines []string, node *grouping.Node, level int) ([]string, error) {
	pad := strings.Repeat(indent, level)
	lines = append(lines, pad+"<DL><p>")

	for _, key := range node.Keys() {
		child, _ := node.Child(key)
		if child.IsLeaf() {
			var err error
			lines, err = s.renderLeaf(lines, key, child, pad+indent)
			if err != nil {
				return nil, err
			}
			continue
		}

		lines = append(lines, pad+indent+`<DT><H3 ADD_DATE="0" LAST_MODIFIED="0">`+Escape(key)+"</H3>")
		var err error
		lines, err = s.render(lines, child, level+1)
		if err != nil {
			return nil, err
		}
	}

	lines = append(lines, pad+"</DL><p>")
	return lines, nil
}

func (s *serializer) renderLeaf(lines []string, key string, leaf *grouping.Node, pad string) ([]string, error) {
	skus := leaf.UniqueSKUs()
	if len(skus) == 0 {
		return nil, &domain.EmptyLeafError{Key: key}
	}

	for _, sku := range skus {
		title := Escape(key)
		if len(skus) > 1 {
			title += " " + Escape(sku)
		}
		lines = append(lines, pad+`<DT><A HREF="`+s.href(sku)+`">`+title+"</A>")
	}
	return lines, nil
}

func (s *serializer) href(sku string) string {
	return Escape(s.linkBase + url.PathEscape(sku))
}
