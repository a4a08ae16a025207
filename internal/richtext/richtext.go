// Package richtext decodes Prismic structured text and renders it as plain
// text or HTML.
package richtext

import "strings"

// Block types emitted by the content API.
const (
	TypeParagraph    = "paragraph"
	TypePreformatted = "preformatted"
	TypeListItem     = "list-item"
	TypeOListItem    = "o-list-item"
	TypeImage        = "image"
	TypeEmbed        = "embed"
)

// Span types.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// Document is a rich-text field: an ordered list of blocks.
type Document []Block

// Block is a single structured-text block.
type Block struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Spans []Span `json:"spans"`

	// Image blocks.
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`

	// Embed blocks.
	OEmbed *OEmbed `json:"oembed,omitempty"`
}

// Span marks up the [Start, End) range of a block's text. Offsets count
// UTF-16 code units.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData carries link targets and label names.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	ID       string `json:"id,omitempty"`
	UID      string `json:"uid,omitempty"`
	Type     string `json:"type,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OEmbed is the payload of an embed block.
type OEmbed struct {
	Type         string `json:"type"`
	EmbedURL     string `json:"embed_url"`
	ProviderName string `json:"provider_name"`
	HTML         string `json:"html"`
}

// Renderer turns documents into text and markup.
type Renderer interface {
	Text(doc Document) string
	HTML(doc Document) string
}

// AsText returns the text of every text-bearing block joined by a space.
func AsText(doc Document) string {
	parts := make([]string, 0, len(doc))
	for _, b := range doc {
		if b.Type == TypeImage || b.Type == TypeEmbed {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, " ")
}

// AsHTML renders doc with the default link resolver.
func AsHTML(doc Document) string {
	return (&HTMLRenderer{}).HTML(doc)
}

// IsHeading reports whether t is heading1 through heading6.
func IsHeading(t string) bool {
	return len(t) == len("heading1") && strings.HasPrefix(t, "heading") && t[7] >= '1' && t[7] <= '6'
}
