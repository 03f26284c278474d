package feed

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/article-index/app/article"
	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS or Atom document into article previews. Items without
// a link are skipped.
func (p *Parser) Run(data []byte) (*Metadata, []article.FeedPreview, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:    feed.Title,
		Link:     feed.Link,
		Language: feed.Language,
	}

	if feed.PublishedParsed != nil {
		metadata.FeedPublishedAt = feed.PublishedParsed
	}

	previews := make([]article.FeedPreview, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		previews = append(previews, p.normalizeItem(item))
	}

	return metadata, previews, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) article.FeedPreview {
	preview := article.FeedPreview{
		URL: strings.TrimSpace(item.Link),
	}

	if title := strings.TrimSpace(item.Title); title != "" {
		preview.DisplayTitle = &title
	}

	if snippet := p.extractText(item.Description); snippet != "" {
		preview.Snippet = &snippet
	}

	if source, width, height := p.extractImage(item); source != "" {
		preview.ImageSource = &source
		if width > 0 {
			preview.ImageWidth = &width
		}
		if height > 0 {
			preview.ImageHeight = &height
		}
		if _, ok := article.SizePrefix(source); ok {
			preview.ThumbnailURL = &source
		}
	}

	return preview
}

// extractImage returns the first image enclosure, else the first media
// thumbnail or image content, else the item image.
func (p *Parser) extractImage(item *gofeed.Item) (string, int, int) {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			width, _ := article.SizePrefix(enclosure.URL)
			return enclosure.URL, width, 0
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"thumbnail", "content"} {
			for _, ext := range media[name] {
				src := ext.Attrs["url"]
				if src == "" {
					continue
				}
				if name == "content" && ext.Attrs["medium"] != "image" && !strings.HasPrefix(ext.Attrs["type"], "image/") {
					continue
				}
				width, _ := strconv.Atoi(ext.Attrs["width"])
				height, _ := strconv.Atoi(ext.Attrs["height"])
				if width == 0 {
					width, _ = article.SizePrefix(src)
				}
				return src, width, height
			}
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		width, _ := article.SizePrefix(item.Image.URL)
		return item.Image.URL, width, 0
	}

	return "", 0, 0
}

// extractText flattens an HTML fragment to whitespace-normalized text.
func (p *Parser) extractText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	doc.Find("script, style").Remove()
	// Block elements would otherwise run their text together
	doc.Find("p, div, li, br, tr, h1, h2, h3, h4, h5, h6").AppendHtml(" ")

	return strings.Join(strings.Fields(doc.Text()), " ")
}
