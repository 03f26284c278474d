package article

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultThumbnailWidth is the width the deprecated ThumbnailURL resolves to.
const DefaultThumbnailWidth = 240

// Article is a single indexed article record.
type Article struct {
	ID  string // Database UUID
	Key string // Canonical key derived from the article URL

	DisplayTitle        string
	DisplayTitleHTML    string // Never null, defaults to empty string
	WikidataDescription *string
	Snippet             *string
	WikidataID          *string

	ImageSource         *string // Raw image reference, not bound to a width
	OriginalImageWidth  int
	OriginalImageHeight int

	Coordinate   *Coordinate
	GeoDimension int64
	PageViews    PageViews

	ViewedDate            *time.Time
	ViewedDateWithoutTime *time.Time
	SavedDate             *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Deprecated: legacy thumbnail reference kept for rows written before
	// ImageSource existed. Read through ThumbnailURL.
	thumbnailURL string
}

type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// URL returns the article URL the key was derived from.
func (a *Article) URL() *url.URL {
	if a.Key == "" {
		return nil
	}
	u, err := url.Parse(a.Key)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// Language returns the wiki language code taken from the key host
// (e.g. "de" for de.wikipedia.org), or "" when it cannot be determined.
func (a *Article) Language() string {
	u := a.URL()
	if u == nil {
		return ""
	}
	sub, _, found := strings.Cut(u.Hostname(), ".")
	if !found {
		return ""
	}
	if _, err := language.Parse(sub); err != nil {
		return ""
	}
	return sub
}

// CapitalizedWikidataDescription upper-cases the first letter of the
// description using the article language. Nil in, nil out.
func (a *Article) CapitalizedWikidataDescription() *string {
	if a.WikidataDescription == nil {
		return nil
	}
	capitalized := capitalizeFirst(*a.WikidataDescription, a.Language())
	return &capitalized
}

func capitalizeFirst(s, lang string) string {
	if s == "" {
		return s
	}
	tag := language.Und
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			tag = parsed
		}
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(tag).String(string(r)) + s[size:]
}

// UpdateViewedDateWithoutTime projects ViewedDate onto local midnight.
// Call after setting ViewedDate.
func (a *Article) UpdateViewedDateWithoutTime() {
	if a.ViewedDate == nil {
		a.ViewedDateWithoutTime = nil
		return
	}
	v := a.ViewedDate.In(time.Local)
	day := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.Local)
	a.ViewedDateWithoutTime = &day
}

// ThumbnailURL resolves the thumbnail through ImageURLForWidth when an image
// source is stored and falls back to the legacy thumbnail reference otherwise.
//
// Deprecated: use ImageURLForWidth.
func (a *Article) ThumbnailURL() *url.URL {
	if a.ImageSource != nil && *a.ImageSource != "" {
		return a.ImageURLForWidth(DefaultThumbnailWidth)
	}
	if a.thumbnailURL == "" {
		return nil
	}
	u, err := url.Parse(a.thumbnailURL)
	if err != nil {
		return nil
	}
	return u
}

// SetThumbnailURL stores a legacy thumbnail reference.
//
// Deprecated: set ImageSource and OriginalImageWidth instead.
func (a *Article) SetThumbnailURL(u *url.URL) {
	if u == nil {
		a.thumbnailURL = ""
		return
	}
	a.thumbnailURL = u.String()
}

// LegacyThumbnailURL returns the raw legacy thumbnail string for persistence.
func (a *Article) LegacyThumbnailURL() string {
	return a.thumbnailURL
}

// SetLegacyThumbnailURL restores the raw legacy thumbnail string from storage.
func (a *Article) SetLegacyThumbnailURL(s string) {
	a.thumbnailURL = s
}

// Action is something a reader did with an article.
type Action int

const (
	ActionNone Action = iota
	ActionRead
	ActionSave
	ActionShare
)

var actionNames = map[Action]string{
	ActionNone:  "none",
	ActionRead:  "read",
	ActionSave:  "save",
	ActionShare: "share",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "none"
}

// ParseAction maps an action name to its Action. Unknown names report false.
func ParseAction(s string) (Action, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for action, name := range actionNames {
		if name == s {
			return action, true
		}
	}
	return ActionNone, false
}

// apply records the action on the article at the given time.
func (a *Article) apply(action Action, now time.Time) {
	switch action {
	case ActionRead:
		a.ViewedDate = &now
		a.UpdateViewedDateWithoutTime()
	case ActionSave:
		a.SavedDate = &now
	}
}
