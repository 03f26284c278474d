package article

import (
	"html"
	"net/url"
)

// SearchResult is one page returned by a search. Nil fields were not
// supplied by the upstream response and leave stored values untouched.
type SearchResult struct {
	URL                 string    `json:"url"`
	Index               int       `json:"index"`
	DisplayTitle        *string   `json:"display_title,omitempty"`
	DisplayTitleHTML    *string   `json:"display_title_html,omitempty"`
	WikidataDescription *string   `json:"wikidata_description,omitempty"`
	WikidataID          *string   `json:"wikidata_id,omitempty"`
	Extract             *string   `json:"extract,omitempty"`
	ImageSource         *string   `json:"image_source,omitempty"`
	OriginalImageWidth  *int      `json:"original_image_width,omitempty"`
	OriginalImageHeight *int      `json:"original_image_height,omitempty"`
	ThumbnailURL        *string   `json:"thumbnail_url,omitempty"`
	Latitude            *float64  `json:"latitude,omitempty"`
	Longitude           *float64  `json:"longitude,omitempty"`
	GeoType             *string   `json:"geo_type,omitempty"`
	GeoDimension        *int64    `json:"geo_dimension,omitempty"`
	PageViews           PageViews `json:"-"`
}

// FeedPreview is an article teaser taken from a feed.
type FeedPreview struct {
	URL                 string  `json:"url"`
	DisplayTitle        *string `json:"display_title,omitempty"`
	DisplayTitleHTML    *string `json:"display_title_html,omitempty"`
	WikidataDescription *string `json:"wikidata_description,omitempty"`
	Snippet             *string `json:"snippet,omitempty"`
	ImageSource         *string `json:"image_source,omitempty"`
	ImageWidth          *int    `json:"image_width,omitempty"`
	ImageHeight         *int    `json:"image_height,omitempty"`
	ThumbnailURL        *string `json:"thumbnail_url,omitempty"`
}

// mergeSearchResult overwrites every field the result supplies.
func (a *Article) mergeSearchResult(r *SearchResult) {
	a.mergeTitles(r.DisplayTitle, r.DisplayTitleHTML)
	setString(&a.WikidataDescription, r.WikidataDescription)
	setString(&a.WikidataID, r.WikidataID)
	setString(&a.Snippet, r.Extract)
	a.mergeImage(r.ImageSource, r.OriginalImageWidth, r.OriginalImageHeight)
	a.mergeLegacyThumbnail(r.ThumbnailURL)

	if r.Latitude != nil && r.Longitude != nil {
		a.Coordinate = &Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}

	switch {
	case r.GeoType != nil && r.GeoDimension != nil:
		a.GeoDimension = EncodeGeoDimension(ParseGeoType(*r.GeoType), *r.GeoDimension)
	case r.GeoType != nil:
		a.GeoDimension = EncodeGeoDimension(ParseGeoType(*r.GeoType), a.GeoDimensionMagnitude())
	case r.GeoDimension != nil:
		a.GeoDimension = EncodeGeoDimension(a.GeoType(), *r.GeoDimension)
	}

	a.mergePageViews(r.PageViews)
}

// mergeFeedPreview overwrites every field the preview supplies.
func (a *Article) mergeFeedPreview(p *FeedPreview) {
	a.mergeTitles(p.DisplayTitle, p.DisplayTitleHTML)
	setString(&a.WikidataDescription, p.WikidataDescription)
	setString(&a.Snippet, p.Snippet)
	a.mergeImage(p.ImageSource, p.ImageWidth, p.ImageHeight)
	a.mergeLegacyThumbnail(p.ThumbnailURL)
}

func (a *Article) mergeTitles(title, titleHTML *string) {
	if title != nil {
		a.DisplayTitle = *title
	}
	switch {
	case titleHTML != nil:
		a.DisplayTitleHTML = *titleHTML
	case title != nil:
		a.DisplayTitleHTML = html.EscapeString(*title)
	}
}

func (a *Article) mergeImage(source *string, width, height *int) {
	if source == nil {
		return
	}
	src := *source
	// A stored size only describes the stored source.
	if a.ImageSource == nil || *a.ImageSource != src {
		a.OriginalImageWidth = 0
		a.OriginalImageHeight = 0
	}
	a.ImageSource = &src
	if width != nil {
		a.OriginalImageWidth = *width
	}
	if height != nil {
		a.OriginalImageHeight = *height
	}
}

func (a *Article) mergeLegacyThumbnail(thumbnail *string) {
	if thumbnail == nil {
		return
	}
	if u, err := url.Parse(*thumbnail); err == nil {
		a.thumbnailURL = u.String()
	}
}

func (a *Article) mergePageViews(pageViews PageViews) {
	if len(pageViews) == 0 {
		return
	}
	if a.PageViews == nil {
		a.PageViews = make(PageViews, len(pageViews))
	}
	a.PageViews.Merge(pageViews)
}

func setString(dst **string, src *string) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}
