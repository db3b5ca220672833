// Package catalog indexes a department's course catalog page so scraped
// records can be enriched with their level and description.
package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"subject-eval-scraper/models"
	"subject-eval-scraper/services"
)

// Entry is one catalog listing: everything from an <h3> heading up to the
// next one.
type Entry struct {
	Token       string
	Heading     string
	Level       models.Level
	Description string

	text string
}

// Index maps catalog tokens to their entries. The zero value is an empty
// index that resolves everything to unknown.
type Index struct {
	entries map[string][]Entry
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	n := 0
	for _, es := range ix.entries {
		n += len(es)
	}
	return n
}

// Resolve looks up a course by number and confirms the match against the
// subject name. Any mismatch yields (LevelUnknown, "unknown").
func (ix *Index) Resolve(number, name string) (models.Level, string) {
	if ix == nil || ix.entries == nil {
		return models.LevelUnknown, models.UnknownDescription
	}
	for _, e := range ix.entries[Token(number)] {
		if !services.ContainsFold(e.text, name) {
			continue
		}
		desc := e.Description
		if desc == "" {
			desc = models.UnknownDescription
		}
		return e.Level, desc
	}
	return models.LevelUnknown, models.UnknownDescription
}

// Token normalizes a course number or heading word into an index key. The
// trailing "J" marks a joint listing and is not part of the number.
func Token(raw string) string {
	word, _, _ := strings.Cut(services.NormaliseText(raw), " ")
	word = strings.TrimRight(word, ",;:")
	return strings.TrimSuffix(word, "J")
}

// Parse walks the catalog page in document order. Catalog markup nests
// headings and paragraphs loosely, so entries are cut at every <h3>
// regardless of where it sits in the tree.
func Parse(doc *goquery.Document) *Index {
	b := &builder{}
	for _, n := range doc.Nodes {
		b.walk(n)
	}
	b.finish()

	ix := &Index{entries: make(map[string][]Entry, len(b.entries))}
	for _, e := range b.entries {
		if e.Token == "" {
			continue
		}
		ix.entries[e.Token] = append(ix.entries[e.Token], *e)
	}
	return ix
}

var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "ul": true, "ol": true,
	"tr": true, "table": true, "h1": true, "h2": true, "h4": true, "h5": true,
	"hr": true, "blockquote": true,
}

type builder struct {
	entries []*Entry
	cur     *Entry
	line    strings.Builder
	lines   []string
	text    strings.Builder
}

func (b *builder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if b.cur != nil {
			b.line.WriteString(n.Data)
			b.text.WriteString(n.Data)
			b.text.WriteString(" ")
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "h3":
			b.finish()
			heading := services.NormaliseText(goquery.NewDocumentFromNode(n).Text())
			b.cur = &Entry{Token: Token(heading), Heading: heading, Level: models.LevelUnknown}
			b.text.WriteString(heading)
			b.text.WriteString(" ")
			return
		case "img":
			if b.cur != nil && b.cur.Level == models.LevelUnknown {
				b.cur.Level = levelOf(n)
			}
			return
		}
		if blockTags[n.Data] {
			b.breakLine()
			defer b.breakLine()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
}

func (b *builder) breakLine() {
	if line := services.NormaliseText(b.line.String()); line != "" {
		b.lines = append(b.lines, line)
	}
	b.line.Reset()
}

func (b *builder) finish() {
	if b.cur == nil {
		return
	}
	b.breakLine()
	for _, l := range b.lines {
		if len(l) > len(b.cur.Description) {
			b.cur.Description = l
		}
	}
	b.cur.text = b.text.String()
	b.entries = append(b.entries, b.cur)

	b.cur = nil
	b.lines = nil
	b.text.Reset()
}

// levelOf reads the level badge image. "Undergrad" is checked first since
// "Undergraduate" also contains "graduate".
func levelOf(n *html.Node) models.Level {
	for _, a := range n.Attr {
		if a.Key != "alt" && a.Key != "title" {
			continue
		}
		v := strings.ToLower(a.Val)
		switch {
		case strings.Contains(v, "undergrad"):
			return models.LevelUndergraduate
		case strings.Contains(v, "graduate"):
			return models.LevelGraduate
		}
	}
	return models.LevelUnknown
}
