// Package feed generates RSS 2.0 and Atom 1.0 feeds of gallery
// collections.
package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Item represents one collection in a feed.
type Item struct {
	Title      string
	Link       string // full collection page URL
	CoverURL   string // full URL of the canonical cover variant
	Year       int
	PhotoCount int
}

// Options configures feed generation.
type Options struct {
	Title       string
	Description string
	Link        string // site URL e.g. "https://example.com"
	FeedLink    string // feed URL e.g. "https://example.com/index.xml"
	Author      string
	Limit       int // 0 means no limit
}

// pubDate maps a collection year onto a stable feed timestamp. Collections
// carry no finer-grained date than their year.
func (it Item) pubDate() time.Time {
	return time.Date(it.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func (it Item) description() string {
	if it.PhotoCount == 1 {
		return "1 photo"
	}
	return fmt.Sprintf("%d photos", it.PhotoCount)
}

// limit truncates items to opts.Limit when set. Items are expected in
// manifest order, which already places the newest collections first.
func limit(items []Item, opts Options) []Item {
	if opts.Limit > 0 && len(items) > opts.Limit {
		return items[:opts.Limit]
	}
	return items
}

// rssFeed is the top-level RSS 2.0 XML structure.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	Description string      `xml:"description"`
	AtomLink    rssAtomLink `xml:"atom:link"`
	Items       []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	PubDate     string        `xml:"pubDate"`
	GUID        string        `xml:"guid"`
	Description string        `xml:"description"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

// rssEnclosure references the collection's cover image. RSS 2.0 requires a
// length attribute; the byte size is unknown here, so 0 stands in.
type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int    `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// GenerateRSS generates an RSS 2.0 feed from the given items and options.
func GenerateRSS(items []Item, opts Options) ([]byte, error) {
	items = limit(items, opts)

	rssItems := make([]rssItem, 0, len(items))
	for _, it := range items {
		ri := rssItem{
			Title:       it.Title,
			Link:        it.Link,
			PubDate:     it.pubDate().Format(time.RFC1123Z),
			GUID:        it.Link,
			Description: it.description(),
		}
		if it.CoverURL != "" {
			ri.Enclosure = &rssEnclosure{URL: it.CoverURL, Type: "image/jpeg"}
		}
		rssItems = append(rssItems, ri)
	}

	f := rssFeed{
		Version: "2.0",
		AtomNS:  "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:       opts.Title,
			Link:        opts.Link,
			Description: opts.Description,
			AtomLink: rssAtomLink{
				Href: opts.FeedLink,
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: rssItems,
		},
	}

	output, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

// atomFeed is the top-level Atom 1.0 XML structure.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	Links   []atomLink  `xml:"link"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Author  *atomAuthor `xml:"author,omitempty"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title     string      `xml:"title"`
	Link      atomLink    `xml:"link"`
	ID        string      `xml:"id"`
	Published string      `xml:"published"`
	Updated   string      `xml:"updated"`
	Summary   atomSummary `xml:"summary"`
}

type atomSummary struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

// GenerateAtom generates an Atom 1.0 feed from the given items and options.
func GenerateAtom(items []Item, opts Options) ([]byte, error) {
	items = limit(items, opts)

	updated := time.Now().UTC()
	if len(items) > 0 {
		updated = items[0].pubDate()
	}

	entries := make([]atomEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, atomEntry{
			Title:     it.Title,
			Link:      atomLink{Href: it.Link},
			ID:        it.Link,
			Published: it.pubDate().Format(time.RFC3339),
			Updated:   it.pubDate().Format(time.RFC3339),
			Summary:   atomSummary{Type: "text", Body: it.description()},
		})
	}

	f := atomFeed{
		Xmlns: "http://www.w3.org/2005/Atom",
		Title: opts.Title,
		Links: []atomLink{
			{Href: opts.FeedLink, Rel: "self"},
			{Href: opts.Link},
		},
		ID:      opts.Link + "/",
		Updated: updated.Format(time.RFC3339),
		Entries: entries,
	}
	if opts.Author != "" {
		f.Author = &atomAuthor{Name: opts.Author}
	}

	output, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
