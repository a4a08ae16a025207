// Package feed exports the post listing as an RSS 2.0 document.
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/spacetraveling/internal/model"
)

// RSS represents the root of an RSS 2.0 document.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel contains the feed metadata and its items.
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []Item `xml:"item"`
}

// Item is a single post.
type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        GUID   `xml:"guid"`
	Description string `xml:"description,omitempty"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
}

// GUID identifies an item. The post UID is not a URL.
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Site describes the channel.
type Site struct {
	Title       string
	BaseURL     string
	Description string
}

// Export generates an RSS document listing posts in the given order.
func Export(site Site, posts []model.PostSummary) ([]byte, error) {
	base := strings.TrimRight(site.BaseURL, "/")
	description := site.Description
	if description == "" {
		description = site.Title
	}
	doc := RSS{
		Version: "2.0",
		Channel: Channel{
			Title:       site.Title,
			Link:        base + model.PathHome,
			Description: description,
			Language:    "pt-BR",
			Items:       make([]Item, 0, len(posts)),
		},
	}

	var newest time.Time
	for _, p := range posts {
		item := Item{
			Title:       p.Title,
			Link:        base + model.PostPath(p.UID),
			GUID:        GUID{Value: p.UID},
			Description: p.Subtitle,
			Author:      p.Author,
		}
		if item.Description == "" {
			item.Description = p.Title
		}
		if p.FirstPublicationDate != nil {
			item.PubDate = p.FirstPublicationDate.Format(time.RFC1123Z)
			if p.FirstPublicationDate.After(newest) {
				newest = *p.FirstPublicationDate
			}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}
	if !newest.IsZero() {
		doc.Channel.LastBuildDate = newest.Format(time.RFC1123Z)
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode rss: %w", err)
	}
	return append([]byte(xml.Header), output...), nil
}
