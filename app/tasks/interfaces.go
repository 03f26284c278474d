package tasks

import (
	"context"

	"github.com/lysyi3m/article-index/app/article"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background source processing.
// Example usage:
//
//	scheduler := NewScheduler(sourceCache, index, client, parser, filterer, interval, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewImportFeedTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// ArticleIndexer is the part of the article index the tasks write through.
type ArticleIndexer interface {
	FetchOrCreateByURLWithFeedPreview(ctx context.Context, rawURL string, preview *article.FeedPreview, pageViews article.PageViews) (*article.Article, error)
	FetchOrCreateByURLWithSearchResult(ctx context.Context, rawURL string, result *article.SearchResult) (*article.Article, error)
}

// WikiClient fetches feed documents and runs site searches.
type WikiClient interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
	Search(ctx context.Context, site, query string, limit int) ([]article.SearchResult, error)
}
