package richtext

import (
	"net/url"
	"sort"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LinkResolver maps a link to a document inside the CMS to a site URL.
type LinkResolver func(data SpanData) string

// DefaultLinkResolver sends post links to /post/{uid} and anything else home.
func DefaultLinkResolver(data SpanData) string {
	if data.Type == "posts" && data.UID != "" {
		return "/post/" + data.UID
	}
	return "/"
}

// HTMLRenderer renders documents to HTML. The zero value is ready to use.
type HTMLRenderer struct {
	LinkResolver LinkResolver
}

var _ Renderer = (*HTMLRenderer)(nil)

// Text implements Renderer.
func (r *HTMLRenderer) Text(doc Document) string {
	return AsText(doc)
}

// HTML implements Renderer. Consecutive list items are grouped in a single
// <ul> or <ol>.
func (r *HTMLRenderer) HTML(doc Document) string {
	var sb strings.Builder
	var list *html.Node
	var listType string

	flush := func() {
		if list != nil {
			_ = html.Render(&sb, list)
			list = nil
			listType = ""
		}
	}

	for _, b := range doc {
		if b.Type == TypeListItem || b.Type == TypeOListItem {
			if listType != b.Type {
				flush()
				list = element(atom.Ul)
				if b.Type == TypeOListItem {
					list = element(atom.Ol)
				}
				listType = b.Type
			}
			li := element(atom.Li)
			r.appendText(li, b)
			list.AppendChild(li)
			continue
		}
		flush()
		if n := r.block(b); n != nil {
			_ = html.Render(&sb, n)
		}
	}
	flush()
	return sb.String()
}

func (r *HTMLRenderer) block(b Block) *html.Node {
	switch {
	case b.Type == TypeParagraph:
		p := element(atom.P)
		r.appendText(p, b)
		return p
	case IsHeading(b.Type):
		h := element(atom.Lookup([]byte("h" + b.Type[7:])))
		r.appendText(h, b)
		return h
	case b.Type == TypePreformatted:
		pre := element(atom.Pre)
		r.appendText(pre, b)
		return pre
	case b.Type == TypeImage:
		p := element(atom.P, html.Attribute{Key: "class", Val: "block-img"})
		img := element(atom.Img,
			html.Attribute{Key: "src", Val: safeURL(b.URL)},
			html.Attribute{Key: "alt", Val: b.Alt},
		)
		p.AppendChild(img)
		return p
	case b.Type == TypeEmbed:
		if b.OEmbed == nil {
			return nil
		}
		div := element(atom.Div,
			html.Attribute{Key: "data-oembed", Val: b.OEmbed.EmbedURL},
			html.Attribute{Key: "data-oembed-type", Val: b.OEmbed.Type},
			html.Attribute{Key: "data-oembed-provider", Val: b.OEmbed.ProviderName},
		)
		div.AppendChild(&html.Node{Type: html.RawNode, Data: b.OEmbed.HTML})
		return div
	default:
		return nil
	}
}

// appendText writes the block text into parent, nesting span elements. Spans
// that overlap are split so the output stays well formed.
func (r *HTMLRenderer) appendText(parent *html.Node, b Block) {
	text := utf16.Encode([]rune(b.Text))
	spans := normalizeSpans(b.Spans, len(text))
	if len(spans) == 0 {
		appendLines(parent, b.Text)
		return
	}

	bounds := []int{0, len(text)}
	for _, s := range spans {
		bounds = append(bounds, s.Start, s.End)
	}
	sort.Ints(bounds)

	var open []int
	stack := []*html.Node{parent}
	prev := -1
	for _, at := range bounds {
		if prev >= 0 && at > prev {
			active := activeSpans(spans, prev, at)
			keep := commonPrefix(open, active)
			stack = stack[:keep+1]
			open = open[:keep]
			for _, idx := range active[keep:] {
				n := r.spanElement(spans[idx])
				stack[len(stack)-1].AppendChild(n)
				stack = append(stack, n)
				open = append(open, idx)
			}
			appendLines(stack[len(stack)-1], string(utf16.Decode(text[prev:at])))
		}
		prev = at
	}
}

func (r *HTMLRenderer) spanElement(s Span) *html.Node {
	switch s.Type {
	case SpanStrong:
		return element(atom.Strong)
	case SpanEm:
		return element(atom.Em)
	case SpanHyperlink:
		href := ""
		var attrs []html.Attribute
		if s.Data != nil {
			if s.Data.LinkType == "Document" {
				resolve := r.LinkResolver
				if resolve == nil {
					resolve = DefaultLinkResolver
				}
				href = resolve(*s.Data)
			} else {
				href = safeURL(s.Data.URL)
			}
			if s.Data.Target != "" {
				attrs = append(attrs,
					html.Attribute{Key: "target", Val: s.Data.Target},
					html.Attribute{Key: "rel", Val: "noopener noreferrer"},
				)
			}
		}
		return element(atom.A, append([]html.Attribute{{Key: "href", Val: href}}, attrs...)...)
	default:
		label := s.Type
		if s.Data != nil && s.Data.Label != "" {
			label = s.Data.Label
		}
		return element(atom.Span, html.Attribute{Key: "class", Val: label})
	}
}

// safeURL returns raw when it is relative or uses http, https or mailto, and
// "#" otherwise.
func safeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return raw
	}
	return "#"
}

// normalizeSpans clamps spans to the text and drops empty ones, ordered so
// that outer spans open first.
func normalizeSpans(spans []Span, n int) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > n {
			s.End = n
		}
		if s.Start >= s.End {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

func activeSpans(spans []Span, from, to int) []int {
	var idx []int
	for i, s := range spans {
		if s.Start <= from && s.End >= to {
			idx = append(idx, i)
		}
	}
	return idx
}

func commonPrefix(a, b []int) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// appendLines appends text, turning newlines into <br> elements.
func appendLines(parent *html.Node, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			parent.AppendChild(element(atom.Br))
		}
		if line != "" {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}
