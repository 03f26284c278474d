package wiki

import (
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/article-index/app/article"
)

type queryResponse struct {
	Error map[string]any `json:"error"`
	Query *struct {
		Pages []page `json:"pages"`
	} `json:"query"`
}

type page struct {
	PageID      int64             `json:"pageid"`
	Title       string            `json:"title"`
	Index       int               `json:"index"`
	Missing     bool              `json:"missing"`
	Description *string           `json:"description"`
	Extract     *string           `json:"extract"`
	Thumbnail   *image            `json:"thumbnail"`
	Original    *image            `json:"original"`
	PageProps   map[string]string `json:"pageprops"`
	Coordinates []coordinate      `json:"coordinates"`
	PageViews   map[string]*int64 `json:"pageviews"`
}

type image struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type coordinate struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Primary bool    `json:"primary"`
	Type    *string `json:"type"`
	Dim     *int64  `json:"dim"`
}

func (p page) searchResult(base *url.URL) article.SearchResult {
	pageURL := url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/wiki/" + strings.ReplaceAll(p.Title, " ", "_")}
	title := p.Title

	r := article.SearchResult{
		URL:                 pageURL.String(),
		Index:               p.Index,
		DisplayTitle:        &title,
		WikidataDescription: p.Description,
		Extract:             p.Extract,
	}

	if v, ok := p.PageProps["displaytitle"]; ok && v != "" {
		r.DisplayTitleHTML = &v
	}
	if v, ok := p.PageProps["wikibase_item"]; ok && v != "" {
		r.WikidataID = &v
	}

	switch {
	case p.Original != nil && p.Original.Source != "":
		r.ImageSource = &p.Original.Source
		r.OriginalImageWidth = &p.Original.Width
		r.OriginalImageHeight = &p.Original.Height
	case p.Thumbnail != nil && p.Thumbnail.Source != "":
		r.ImageSource = &p.Thumbnail.Source
	}
	if p.Thumbnail != nil && p.Thumbnail.Source != "" {
		r.ThumbnailURL = &p.Thumbnail.Source
	}

	if c := p.primaryCoordinate(); c != nil {
		lat, lon := c.Lat, c.Lon
		r.Latitude = &lat
		r.Longitude = &lon
		r.GeoType = c.Type
		r.GeoDimension = c.Dim
	}

	if len(p.PageViews) > 0 {
		views := article.PageViews{}
		for day, count := range p.PageViews {
			if count == nil {
				continue
			}
			t, err := time.Parse(article.PageViewDateLayout, day)
			if err != nil {
				continue
			}
			views[t] = *count
		}
		r.PageViews = views
	}

	return r
}

func (p page) primaryCoordinate() *coordinate {
	for i := range p.Coordinates {
		if p.Coordinates[i].Primary {
			return &p.Coordinates[i]
		}
	}
	if len(p.Coordinates) > 0 {
		return &p.Coordinates[0]
	}
	return nil
}
