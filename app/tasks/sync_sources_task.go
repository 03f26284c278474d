package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/article-index/app/feed"
)

// SyncSourcesTask rescans the sources directory so new and edited source
// files take effect without a restart.
type SyncSourcesTask struct {
	Task
	sourceCache *feed.SourceCache
}

func NewSyncSourcesTask(sourceCache *feed.SourceCache) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:        NewTask(TaskTypeSyncSources, ""),
		sourceCache: sourceCache,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.sourceCache.Run(); err != nil {
		return fmt.Errorf("failed to sync sources: %w", err)
	}

	slog.Debug("Task completed",
		"type", "SyncSources",
		"sources", t.sourceCache.GetSourceCount(),
		"duration", t.GetDuration())

	return nil
}
