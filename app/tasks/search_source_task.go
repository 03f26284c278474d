package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/article-index/app/feed"
)

type SearchSourceTask struct {
	Task
	Source *feed.Source
	client WikiClient
	index  ArticleIndexer
}

func NewSearchSourceTask(source *feed.Source, client WikiClient, index ArticleIndexer) *SearchSourceTask {
	return &SearchSourceTask{
		Task:   NewTask(TaskTypeSearchSource, source.Name),
		Source: source,
		client: client,
		index:  index,
	}
}

func (t *SearchSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Source.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, t.Source.Timeout())
	results, err := t.client.Search(timeoutCtx, t.Source.Site, t.Source.Query, t.Source.Settings.MaxItems)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to search %s: %w", t.Source.Site, err)
	}

	indexedCount := 0
	for i := range results {
		a, err := t.index.FetchOrCreateByURLWithSearchResult(ctx, results[i].URL, &results[i])
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", results[i].URL, err)
		}
		if a != nil {
			indexedCount++
		}
	}

	slog.Info("Task completed",
		"type", "SearchSource",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(results),
		"indexed", indexedCount)

	return nil
}
