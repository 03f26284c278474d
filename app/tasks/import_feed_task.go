package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/article-index/app/feed"
)

type ImportFeedTask struct {
	Task
	Source   *feed.Source
	Metadata *feed.Metadata // set once the feed has been parsed
	client   WikiClient
	parser   *feed.Parser
	filterer *feed.Filterer
	index    ArticleIndexer
}

func NewImportFeedTask(source *feed.Source, client WikiClient, parser *feed.Parser, filterer *feed.Filterer, index ArticleIndexer) *ImportFeedTask {
	return &ImportFeedTask{
		Task:     NewTask(TaskTypeImportFeed, source.Name),
		Source:   source,
		client:   client,
		parser:   parser,
		filterer: filterer,
		index:    index,
	}
}

func (t *ImportFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Source.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	data, err := t.fetchFeed(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, previews, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}
	t.Metadata = metadata

	kept := t.filterer.Run(previews, t.Source.Filters)
	filteredCount := len(previews) - len(kept)
	if limit := t.Source.Settings.MaxItems; limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	indexedCount := 0
	skippedCount := 0
	for i := range kept {
		a, err := t.index.FetchOrCreateByURLWithFeedPreview(ctx, kept[i].URL, &kept[i], nil)
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", kept[i].URL, err)
		}
		if a == nil {
			slog.Debug("Preview link is not an article URL, skipping", "source", t.SourceName, "url", kept[i].URL)
			skippedCount++
			continue
		}
		indexedCount++
	}

	slog.Info("Task completed",
		"type", "ImportFeed",
		"source", t.SourceName,
		"feed_title", metadata.Title,
		"feed_language", metadata.Language,
		"duration", t.GetDuration(),
		"total", len(previews),
		"filtered", filteredCount,
		"skipped", skippedCount,
		"indexed", indexedCount)

	return nil
}

func (t *ImportFeedTask) fetchFeed(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, t.Source.Timeout())
	defer cancel()

	return t.client.Get(timeoutCtx, t.Source.URL)
}
