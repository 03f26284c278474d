package api

import (
	"context"
	"time"

	"github.com/lysyi3m/article-index/app/article"
	"github.com/lysyi3m/article-index/app/feed"
	"github.com/lysyi3m/article-index/app/tasks"
)

// DefaultImageWidth is the width image_url resolves to without a width parameter.
const DefaultImageWidth = 320

type Searcher interface {
	Search(ctx context.Context, site, query string, limit int) ([]article.SearchResult, error)
}

type SourceScheduler interface {
	EnqueueTask(task tasks.TaskInterface) error
	NewSourceTask(source *feed.Source) tasks.TaskInterface
}

var _ SourceScheduler = (*tasks.Scheduler)(nil)

type Handler struct {
	index       *article.Index
	searcher    Searcher
	sourceCache *feed.SourceCache
	scheduler   SourceScheduler
}

type coordinateView struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

type articleView struct {
	ID                             string           `json:"id"`
	Key                            string           `json:"key"`
	Language                       string           `json:"language,omitempty"`
	DisplayTitle                   string           `json:"display_title"`
	DisplayTitleHTML               string           `json:"display_title_html"`
	WikidataDescription            *string          `json:"wikidata_description"`
	CapitalizedWikidataDescription *string          `json:"capitalized_wikidata_description"`
	Snippet                        *string          `json:"snippet"`
	WikidataID                     *string          `json:"wikidata_id"`
	ImageSource                    *string          `json:"image_source"`
	OriginalImageWidth             int              `json:"original_image_width"`
	OriginalImageHeight            int              `json:"original_image_height"`
	ImageURL                       *string          `json:"image_url"`
	ThumbnailURL                   *string          `json:"thumbnail_url"`
	Coordinate                     *coordinateView  `json:"coordinate"`
	GeoType                        string           `json:"geo_type"`
	GeoMagnitude                   int64            `json:"geo_magnitude"`
	PageViews                      map[string]int64 `json:"page_views"`
	PageViewsSorted                []int64          `json:"page_views_sorted"`
	ViewedDate                     *time.Time       `json:"viewed_date"`
	ViewedDateWithoutTime          *time.Time       `json:"viewed_date_without_time"`
	SavedDate                      *time.Time       `json:"saved_date"`
	CreatedAt                      time.Time        `json:"created_at"`
	UpdatedAt                      time.Time        `json:"updated_at"`
}

func newArticleView(a *article.Article, width int) articleView {
	view := articleView{
		ID:                             a.ID,
		Key:                            a.Key,
		Language:                       a.Language(),
		DisplayTitle:                   a.DisplayTitle,
		DisplayTitleHTML:               a.DisplayTitleHTML,
		WikidataDescription:            a.WikidataDescription,
		CapitalizedWikidataDescription: a.CapitalizedWikidataDescription(),
		Snippet:                        a.Snippet,
		WikidataID:                     a.WikidataID,
		ImageSource:                    a.ImageSource,
		OriginalImageWidth:             a.OriginalImageWidth,
		OriginalImageHeight:            a.OriginalImageHeight,
		GeoType:                        a.GeoType().String(),
		GeoMagnitude:                   a.GeoDimensionMagnitude(),
		PageViews:                      a.PageViews.ToStrings(),
		PageViewsSorted:                a.PageViewsSortedByDate(),
		ViewedDate:                     a.ViewedDate,
		ViewedDateWithoutTime:          a.ViewedDateWithoutTime,
		SavedDate:                      a.SavedDate,
		CreatedAt:                      a.CreatedAt,
		UpdatedAt:                      a.UpdatedAt,
	}

	if u := a.ImageURLForWidth(width); u != nil {
		s := u.String()
		view.ImageURL = &s
	}
	if u := a.ThumbnailURL(); u != nil {
		s := u.String()
		view.ThumbnailURL = &s
	}
	if a.Coordinate != nil {
		view.Coordinate = &coordinateView{Latitude: a.Coordinate.Latitude, Longitude: a.Coordinate.Longitude}
	}

	return view
}

type putArticleRequest struct {
	SearchResult *article.SearchResult `json:"search_result"`
	FeedPreview  *article.FeedPreview  `json:"feed_preview"`
	PageViews    map[string]int64      `json:"page_views"`
}

type actionRequest struct {
	URL    string `json:"url" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type searchRequest struct {
	Site  string `json:"site"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}
