package feed

import (
	"strings"

	"github.com/lysyi3m/article-index/app/article"
)

var validFilterFields = map[string]bool{
	"title":       true,
	"snippet":     true,
	"description": true,
	"link":        true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the previews that pass every filter, keeping their order.
func (f *Filterer) Run(previews []article.FeedPreview, filters []SourceFilter) []article.FeedPreview {
	if len(filters) == 0 {
		return previews
	}

	kept := make([]article.FeedPreview, 0, len(previews))
	for _, preview := range previews {
		if f.passes(preview, filters) {
			kept = append(kept, preview)
		}
	}

	return kept
}

func (f *Filterer) passes(preview article.FeedPreview, filters []SourceFilter) bool {
	for _, filter := range filters {
		value := f.getFieldValue(preview, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return false
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}

	return true
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(preview article.FeedPreview, field string) string {
	switch field {
	case "title":
		return deref(preview.DisplayTitle)
	case "snippet":
		return deref(preview.Snippet)
	case "description":
		return deref(preview.WikidataDescription)
	case "link":
		return preview.URL
	default:
		return ""
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
