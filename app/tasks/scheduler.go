package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/article-index/app/feed"
	"github.com/lysyi3m/article-index/app/network"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

// ErrSourceInFlight is returned when a source already has a queued or
// running task.
var ErrSourceInFlight = errors.New("source task already in flight")

type Scheduler struct {
	sourceCache *feed.SourceCache
	index       ArticleIndexer
	client      WikiClient
	parser      *feed.Parser
	filterer    *feed.Filterer
	interval    time.Duration
	workerCount int
	retryDelay  time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	mu          sync.Mutex
	nextRunAt   map[string]time.Time
	inFlight    map[string]bool
	now         func() time.Time
}

func NewScheduler(sourceCache *feed.SourceCache, index ArticleIndexer, client WikiClient,
	parser *feed.Parser, filterer *feed.Filterer, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount < 1 {
		workerCount = 1
	}

	return &Scheduler{
		sourceCache: sourceCache,
		index:       index,
		client:      client,
		parser:      parser,
		filterer:    filterer,
		interval:    interval,
		workerCount: workerCount,
		retryDelay:  time.Second,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
		nextRunAt:   make(map[string]time.Time),
		inFlight:    make(map[string]bool),
		now:         time.Now,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers and pending retries.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues task. Source tasks are rejected with ErrSourceInFlight
// while another task for the same source is queued or running.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	name, tracked := sourceKey(task)
	if tracked && !s.markInFlight(name) {
		return fmt.Errorf("%w: %s", ErrSourceInFlight, name)
	}

	if err := s.enqueue(task); err != nil {
		if tracked {
			s.clearInFlight(name)
		}
		return err
	}
	return nil
}

func (s *Scheduler) enqueue(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// tick rescans the sources directory and then queues every due source, so
// new source files are picked up on the same tick.
func (s *Scheduler) tick() {
	task := NewSyncSourcesTask(s.sourceCache)
	task.Start()
	if err := task.Execute(s.ctx); err != nil {
		slog.Warn("Failed to sync sources", "error", err)
	}
	s.enqueueDueTasks()
}

// NewSourceTask returns the task that refreshes source, or nil for an
// unknown source type.
func (s *Scheduler) NewSourceTask(source *feed.Source) TaskInterface {
	switch source.Type {
	case feed.SourceTypeFeed:
		return NewImportFeedTask(source, s.client, s.parser, s.filterer, s.index)
	case feed.SourceTypeSearch:
		return NewSearchSourceTask(source, s.client, s.index)
	default:
		return nil
	}
}

func (s *Scheduler) enqueueDueTasks() {
	sources := s.sourceCache.GetEnabledSources()
	if len(sources) == 0 {
		slog.Debug("No enabled sources found")
		return
	}

	slog.Debug("Processing enabled sources for task scheduling", "count", len(sources))

	now := s.now().UTC()
	for name, source := range sources {
		if s.isInFlight(name) {
			slog.Debug("Source task still in flight, skipping", "source", name)
			continue
		}
		if !s.claimRun(name, now, source.RefreshInterval()) {
			slog.Debug("Source not due for refresh yet", "source", name)
			continue
		}

		task := s.NewSourceTask(source)
		if task == nil {
			slog.Warn("Unknown source type, skipping", "source", name, "type", source.Type)
			continue
		}
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue source task", "source", name, "type", string(task.GetType()), "error", err)
			s.releaseRun(name)
		}
	}
}

// claimRun reports whether name is due at now and, if so, books its next run.
func (s *Scheduler) claimRun(name string, now time.Time, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next, ok := s.nextRunAt[name]; ok && next.After(now) {
		return false
	}
	s.nextRunAt[name] = now.Add(interval)
	return true
}

func (s *Scheduler) releaseRun(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nextRunAt, name)
}

// sourceKey returns the source a task refreshes, if it refreshes one.
func sourceKey(task TaskInterface) (string, bool) {
	switch task.GetType() {
	case TaskTypeImportFeed, TaskTypeSearchSource:
		return task.GetSourceName(), task.GetSourceName() != ""
	default:
		return "", false
	}
}

func (s *Scheduler) markInFlight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[name] {
		return false
	}
	s.inFlight[name] = true
	return true
}

func (s *Scheduler) clearInFlight(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
}

func (s *Scheduler) isInFlight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[name]
}

// finish releases the in-flight mark once task will not run again.
func (s *Scheduler) finish(task TaskInterface) {
	if name, tracked := sourceKey(task); tracked {
		s.clearInFlight(name)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.finish(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if errors.Is(err, network.ErrInvalidParameters) {
		slog.Error("Task parameters rejected, not retrying", "type", string(task.GetType()), "source", task.GetSourceName(), "error", err)
		s.finish(task)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.finish(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryDelay * time.Duration(1<<uint(task.GetRetryCount()-1))
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.finish(task)
		case <-timer.C:
			// The in-flight mark is still held by this task
			if retryErr := s.enqueue(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.finish(task)
			}
		}
	}()
}
