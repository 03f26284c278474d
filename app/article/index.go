package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Index resolves, creates and updates article records by key.
//
// Fetch-or-create sequences are serialized per key, so concurrent callers
// asking for the same key observe a single record. Index is safe for
// concurrent use.
type Index struct {
	store      Store
	normalizer Normalizer
	locks      *keyLock
	now        func() time.Time
}

func NewIndex(store Store, normalizer Normalizer) *Index {
	return &Index{
		store:      store,
		normalizer: normalizer,
		locks:      newKeyLock(),
		now:        time.Now,
	}
}

// FetchByKey returns the first record stored under key, or nil when none exists.
func (i *Index) FetchByKey(ctx context.Context, key string) (*Article, error) {
	if key == "" {
		return nil, nil
	}
	articles, err := i.store.Query(ctx, ByKey(key).First())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %q: %w: %w", key, ErrStorage, err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return articles[0], nil
}

// Key returns the article key for rawURL. It reports false when the URL
// cannot be normalized.
func (i *Index) Key(rawURL string) (string, bool) {
	return i.normalizer.Normalize(rawURL)
}

// FetchByURL normalizes rawURL and fetches by the resulting key. A URL that
// cannot be normalized is reported as not found.
func (i *Index) FetchByURL(ctx context.Context, rawURL string) (*Article, error) {
	key, ok := i.normalizer.Normalize(rawURL)
	if !ok {
		return nil, nil
	}
	return i.FetchByKey(ctx, key)
}

// FetchAllByKey returns every record stored under key. Duplicates can exist
// when records were written through CreateByKey. Zero matches is an empty
// slice, not an error.
func (i *Index) FetchAllByKey(ctx context.Context, key string) ([]*Article, error) {
	if key == "" {
		return []*Article{}, nil
	}
	articles, err := i.store.Query(ctx, ByKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles %q: %w: %w", key, ErrStorage, err)
	}
	if articles == nil {
		articles = []*Article{}
	}
	return articles, nil
}

// CreateByKey inserts a new default record without checking for an existing
// one. Use FetchOrCreateByKey unless absence has already been verified.
func (i *Index) CreateByKey(ctx context.Context, key string) (*Article, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	a, err := i.store.Insert(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create article %q: %w: %w", key, ErrStorage, err)
	}
	slog.Debug("Article created", "key", key, "id", a.ID)
	return a, nil
}

// FetchOrCreateByKey returns the record stored under key, creating it first
// when it does not exist.
func (i *Index) FetchOrCreateByKey(ctx context.Context, key string) (*Article, error) {
	return i.update(ctx, key, nil)
}

// FetchOrCreateByURL is FetchOrCreateByKey for the key of rawURL. It returns
// nil only when the URL cannot be normalized.
func (i *Index) FetchOrCreateByURL(ctx context.Context, rawURL string) (*Article, error) {
	key, ok := i.normalizer.Normalize(rawURL)
	if !ok {
		return nil, nil
	}
	return i.update(ctx, key, nil)
}

// FetchOrCreateByURLWithSearchResult fetches or creates the record for
// rawURL and merges every field the search result supplies.
func (i *Index) FetchOrCreateByURLWithSearchResult(ctx context.Context, rawURL string, result *SearchResult) (*Article, error) {
	key, ok := i.normalizer.Normalize(rawURL)
	if !ok {
		return nil, nil
	}
	if result == nil {
		return i.update(ctx, key, nil)
	}
	return i.update(ctx, key, func(a *Article) {
		a.mergeSearchResult(result)
	})
}

// FetchOrCreateByURLWithFeedPreview fetches or creates the record for
// rawURL, merges the preview and then the pageviews. Either may be nil.
func (i *Index) FetchOrCreateByURLWithFeedPreview(ctx context.Context, rawURL string, preview *FeedPreview, pageViews PageViews) (*Article, error) {
	key, ok := i.normalizer.Normalize(rawURL)
	if !ok {
		return nil, nil
	}
	if preview == nil && len(pageViews) == 0 {
		return i.update(ctx, key, nil)
	}
	return i.update(ctx, key, func(a *Article) {
		if preview != nil {
			a.mergeFeedPreview(preview)
		}
		a.mergePageViews(pageViews)
	})
}

// FetchByWikidataID returns the earliest stored record carrying id, or nil.
func (i *Index) FetchByWikidataID(ctx context.Context, id string) (*Article, error) {
	if id == "" {
		return nil, nil
	}
	articles, err := i.store.Query(ctx, ByWikidataID(id).First())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article by wikidata id %q: %w: %w", id, ErrStorage, err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return articles[0], nil
}

// ApplyAction fetches or creates the record for key and records action on it.
func (i *Index) ApplyAction(ctx context.Context, key string, action Action) (*Article, error) {
	now := i.now()
	return i.update(ctx, key, func(a *Article) {
		a.apply(action, now)
	})
}

// Count returns the number of stored records.
func (i *Index) Count(ctx context.Context) (int, error) {
	n, err := i.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w: %w", ErrStorage, err)
	}
	return n, nil
}

// update runs the fetch-or-create sequence for key under its lock and, when
// mutate is non-nil, applies it and saves the result.
func (i *Index) update(ctx context.Context, key string, mutate func(*Article)) (*Article, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	unlock := i.locks.Lock(key)
	defer unlock()

	a, err := i.FetchByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		a, err = i.CreateByKey(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	if mutate == nil {
		return a, nil
	}

	mutate(a)
	a.UpdatedAt = i.now().UTC()
	if err := i.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save article %q: %w: %w", key, ErrStorage, err)
	}
	return a, nil
}
