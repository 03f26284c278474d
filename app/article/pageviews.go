package article

import (
	"fmt"
	"sort"
	"time"
)

// PageViewDateLayout is the wire and storage layout of pageview dates.
const PageViewDateLayout = "2006-01-02"

// PageViews maps a day to the number of views on that day.
type PageViews map[time.Time]int64

// SortedByDate returns the counts ordered by ascending date. Dates are not
// carried; position encodes them. An empty map yields an empty slice.
func (p PageViews) SortedByDate() []int64 {
	dates := make([]time.Time, 0, len(p))
	for d := range p {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	counts := make([]int64, 0, len(dates))
	for _, d := range dates {
		counts = append(counts, p[d])
	}
	return counts
}

// Merge copies every entry of other into p, overwriting counts per day.
func (p PageViews) Merge(other PageViews) {
	for d, c := range other {
		p[PageViewDay(d)] = c
	}
}

// PageViewDay truncates t to the UTC day it falls on.
func PageViewDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToStrings returns a date-string keyed copy for JSON persistence.
func (p PageViews) ToStrings() map[string]int64 {
	out := make(map[string]int64, len(p))
	for d, c := range p {
		out[d.UTC().Format(PageViewDateLayout)] = c
	}
	return out
}

// PageViewsFromStrings parses a date-string keyed map. Dates are read as UTC days.
func PageViewsFromStrings(raw map[string]int64) (PageViews, error) {
	out := make(PageViews, len(raw))
	for s, c := range raw {
		d, err := time.Parse(PageViewDateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pageview date %q: %w", s, err)
		}
		out[d] = c
	}
	return out, nil
}

// PageViewsSortedByDate returns the stored pageview counts in date order.
func (a *Article) PageViewsSortedByDate() []int64 {
	return a.PageViews.SortedByDate()
}
