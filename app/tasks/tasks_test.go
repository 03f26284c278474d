package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/article-index/app/article"
	"github.com/lysyi3m/article-index/app/feed"
	"github.com/lysyi3m/article-index/app/network"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Featured</title>
    <link>https://en.wikipedia.org</link>
    <language>en</language>
    <item><title>Mont Blanc</title><link>https://en.wikipedia.org/wiki/Mont_Blanc</link></item>
    <item><title>List of peaks</title><link>https://en.wikipedia.org/wiki/List_of_peaks</link></item>
    <item><title>Matterhorn</title><link>https://en.wikipedia.org/wiki/Matterhorn</link></item>
    <item><title>Eiger</title><link>https://en.wikipedia.org/wiki/Eiger</link></item>
  </channel>
</rss>`

type MockIndexer struct {
	mu        sync.Mutex
	previews  []string
	results   []string
	err       error
	indexed   chan string
	unmatched map[string]bool
}

func newMockIndexer() *MockIndexer {
	return &MockIndexer{indexed: make(chan string, 100), unmatched: map[string]bool{}}
}

func (m *MockIndexer) FetchOrCreateByURLWithFeedPreview(ctx context.Context, rawURL string, preview *article.FeedPreview, pageViews article.PageViews) (*article.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.unmatched[rawURL] {
		return nil, nil
	}
	m.previews = append(m.previews, rawURL)
	m.indexed <- rawURL
	return &article.Article{Key: rawURL}, nil
}

func (m *MockIndexer) FetchOrCreateByURLWithSearchResult(ctx context.Context, rawURL string, result *article.SearchResult) (*article.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.results = append(m.results, rawURL)
	m.indexed <- rawURL
	return &article.Article{Key: rawURL}, nil
}

type MockClient struct {
	feed        []byte
	getErrs     []error
	searchErr   error
	results     []article.SearchResult
	gets        atomic.Int32
	searches    atomic.Int32
	searchLimit atomic.Int32
}

func (m *MockClient) Get(ctx context.Context, rawURL string) ([]byte, error) {
	n := int(m.gets.Add(1))
	if n <= len(m.getErrs) && m.getErrs[n-1] != nil {
		return nil, m.getErrs[n-1]
	}
	return m.feed, nil
}

func (m *MockClient) Search(ctx context.Context, site, query string, limit int) ([]article.SearchResult, error) {
	m.searches.Add(1)
	m.searchLimit.Store(int32(limit))
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func feedSource(maxItems int, filters ...feed.SourceFilter) *feed.Source {
	return &feed.Source{
		Name:     "featured",
		Type:     feed.SourceTypeFeed,
		URL:      "https://en.wikipedia.org/featured.xml",
		Settings: feed.SourceSettings{Enabled: true, RefreshInterval: 3600, MaxItems: maxItems, Timeout: 5},
		Filters:  filters,
	}
}

func TestImportFeedTask(t *testing.T) {
	client := &MockClient{feed: []byte(testFeed)}
	indexer := newMockIndexer()
	indexer.unmatched["https://en.wikipedia.org/wiki/Eiger"] = true

	source := feedSource(0, feed.SourceFilter{Field: "title", Excludes: []string{"list of"}})
	task := NewImportFeedTask(source, client, feed.NewParser(), feed.NewFilterer(), indexer)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.Metadata == nil || task.Metadata.Title != "Featured" || task.Metadata.Language != "en" {
		t.Errorf("Expected feed metadata Featured/en, got %+v", task.Metadata)
	}

	want := []string{"https://en.wikipedia.org/wiki/Mont_Blanc", "https://en.wikipedia.org/wiki/Matterhorn"}
	if len(indexer.previews) != len(want) {
		t.Fatalf("Expected %v, got %v", want, indexer.previews)
	}
	for i := range want {
		if indexer.previews[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, indexer.previews[i])
		}
	}
}

func TestImportFeedTaskMaxItems(t *testing.T) {
	client := &MockClient{feed: []byte(testFeed)}
	indexer := newMockIndexer()

	task := NewImportFeedTask(feedSource(2), client, feed.NewParser(), feed.NewFilterer(), indexer)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(indexer.previews) != 2 {
		t.Errorf("Expected 2 indexed previews, got %d", len(indexer.previews))
	}
}

func TestImportFeedTaskDisabled(t *testing.T) {
	client := &MockClient{feed: []byte(testFeed)}
	source := feedSource(0)
	source.Settings.Enabled = false

	task := NewImportFeedTask(source, client, feed.NewParser(), feed.NewFilterer(), newMockIndexer())
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if client.gets.Load() != 0 {
		t.Error("Expected no fetch for disabled source")
	}
}

func TestImportFeedTaskStorageFailure(t *testing.T) {
	client := &MockClient{feed: []byte(testFeed)}
	indexer := newMockIndexer()
	indexer.err = article.ErrStorage

	task := NewImportFeedTask(feedSource(0), client, feed.NewParser(), feed.NewFilterer(), indexer)
	err := task.Execute(context.Background())
	if !errors.Is(err, article.ErrStorage) {
		t.Errorf("Expected storage error, got %v", err)
	}
}

func TestSearchSourceTask(t *testing.T) {
	client := &MockClient{results: []article.SearchResult{
		{URL: "https://en.wikipedia.org/wiki/Alps", Index: 1},
		{URL: "https://en.wikipedia.org/wiki/Jura", Index: 2},
	}}
	indexer := newMockIndexer()

	source := &feed.Source{
		Name:     "alps",
		Type:     feed.SourceTypeSearch,
		Site:     "en.wikipedia.org",
		Query:    "mountain ranges",
		Settings: feed.SourceSettings{Enabled: true, MaxItems: 20, Timeout: 5},
	}
	task := NewSearchSourceTask(source, client, indexer)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(indexer.results) != 2 {
		t.Errorf("Expected 2 indexed results, got %d", len(indexer.results))
	}
	if client.searchLimit.Load() != 20 {
		t.Errorf("Expected search limit 20, got %d", client.searchLimit.Load())
	}

	client.searchErr = network.ErrorForAPIErrorObject(map[string]any{"code": "maxlag", "info": "lagged"})
	if err := task.Execute(context.Background()); !errors.Is(err, network.ErrAPI) {
		t.Errorf("Expected API error, got %v", err)
	}
}

func writeSources(t *testing.T, files map[string]string) *feed.SourceCache {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cache := feed.NewSourceCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}
	return cache
}

func waitIndexed(t *testing.T, indexer *MockIndexer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-indexer.indexed:
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for indexed article %d of %d", i+1, n)
		}
	}
}

func TestSchedulerRunsEnabledSources(t *testing.T) {
	cache := writeSources(t, map[string]string{
		"featured.yml": `
url: "https://en.wikipedia.org/featured.xml"
settings:
  enabled: true
  max_items: 1
`,
		"alps.yml": `
type: search
site: "en.wikipedia.org"
query: "alps"
settings:
  enabled: true
`,
		"disabled.yml": `
url: "https://en.wikipedia.org/other.xml"
settings:
  enabled: false
`,
	})

	client := &MockClient{
		feed:    []byte(testFeed),
		results: []article.SearchResult{{URL: "https://en.wikipedia.org/wiki/Alps", Index: 1}},
	}
	indexer := newMockIndexer()

	scheduler := NewScheduler(cache, indexer, client, feed.NewParser(), feed.NewFilterer(), time.Hour, 2)
	scheduler.Start()
	waitIndexed(t, indexer, 2)
	scheduler.Stop()

	if client.gets.Load() != 1 {
		t.Errorf("Expected 1 feed fetch, got %d", client.gets.Load())
	}
	if client.searches.Load() != 1 {
		t.Errorf("Expected 1 search, got %d", client.searches.Load())
	}
}

func TestSchedulerRetriesFailedTasks(t *testing.T) {
	cache := writeSources(t, map[string]string{
		"featured.yml": `
url: "https://en.wikipedia.org/featured.xml"
settings:
  enabled: true
  max_items: 1
`,
	})

	client := &MockClient{feed: []byte(testFeed), getErrs: []error{errors.New("connection reset")}}
	indexer := newMockIndexer()

	scheduler := NewScheduler(cache, indexer, client, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	scheduler.retryDelay = time.Millisecond
	scheduler.Start()
	waitIndexed(t, indexer, 1)
	scheduler.Stop()

	if client.gets.Load() != 2 {
		t.Errorf("Expected 2 fetch attempts, got %d", client.gets.Load())
	}
}

type countingTask struct {
	Task
	err   error
	calls atomic.Int32
	done  chan struct{}
}

func (c *countingTask) Execute(ctx context.Context) error {
	c.calls.Add(1)
	c.done <- struct{}{}
	return c.err
}

func TestSchedulerDoesNotRetryInvalidParameters(t *testing.T) {
	scheduler := NewScheduler(feed.NewSourceCache(t.TempDir()), newMockIndexer(), &MockClient{}, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	scheduler.retryDelay = time.Millisecond
	scheduler.Start()

	task := &countingTask{
		Task: NewTask(TaskTypeSearchSource, "broken"),
		err:  network.InvalidParametersError("empty query"),
		done: make(chan struct{}, 4),
	}
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	<-task.done
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	if task.calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", task.calls.Load())
	}
}

func TestSchedulerStopCancelsPendingRetries(t *testing.T) {
	scheduler := NewScheduler(feed.NewSourceCache(t.TempDir()), newMockIndexer(), &MockClient{}, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	scheduler.retryDelay = time.Hour
	scheduler.Start()

	task := &countingTask{
		Task: NewTask(TaskTypeImportFeed, "flaky"),
		err:  errors.New("temporary"),
		done: make(chan struct{}, 4),
	}
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-task.done

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a pending retry")
	}

	if err := scheduler.EnqueueTask(task); err == nil {
		t.Error("Expected enqueue after stop to fail")
	}
}

func TestSchedulerClaimRun(t *testing.T) {
	scheduler := NewScheduler(feed.NewSourceCache(""), newMockIndexer(), &MockClient{}, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	defer scheduler.Stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !scheduler.claimRun("a", now, time.Hour) {
		t.Error("Expected first claim to succeed")
	}
	if scheduler.claimRun("a", now.Add(30*time.Minute), time.Hour) {
		t.Error("Expected claim before the next run to fail")
	}
	if !scheduler.claimRun("a", now.Add(time.Hour), time.Hour) {
		t.Error("Expected claim at the next run to succeed")
	}

	scheduler.releaseRun("a")
	if !scheduler.claimRun("a", now.Add(time.Hour), time.Hour) {
		t.Error("Expected claim after release to succeed")
	}
}

func TestSchedulerRejectsSourceInFlight(t *testing.T) {
	scheduler := NewScheduler(feed.NewSourceCache(t.TempDir()), newMockIndexer(), &MockClient{}, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	scheduler.retryDelay = time.Hour
	defer scheduler.Stop()

	first := &countingTask{Task: NewTask(TaskTypeImportFeed, "featured"), done: make(chan struct{}, 4)}
	if err := scheduler.EnqueueTask(first); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	second := &countingTask{Task: NewTask(TaskTypeImportFeed, "featured"), done: make(chan struct{}, 4)}
	if err := scheduler.EnqueueTask(second); !errors.Is(err, ErrSourceInFlight) {
		t.Fatalf("Expected ErrSourceInFlight while queued, got %v", err)
	}
	other := &countingTask{Task: NewTask(TaskTypeSearchSource, "alps"), done: make(chan struct{}, 4)}
	if err := scheduler.EnqueueTask(other); err != nil {
		t.Errorf("Expected other source to be accepted, got %v", err)
	}

	// A failing run keeps the mark while its retry is pending
	first.err = errors.New("temporary")
	scheduler.executeTask(0, <-scheduler.taskQueue)
	if err := scheduler.EnqueueTask(second); !errors.Is(err, ErrSourceInFlight) {
		t.Fatalf("Expected ErrSourceInFlight while retry is pending, got %v", err)
	}

	// A successful run releases it
	scheduler.executeTask(0, other)
	<-scheduler.taskQueue
	if err := scheduler.EnqueueTask(other); err != nil {
		t.Errorf("Expected source to be accepted after its run finished, got %v", err)
	}
}

func TestSchedulerSkipsDueSourceInFlight(t *testing.T) {
	cache := writeSources(t, map[string]string{
		"featured.yml": `
url: "https://en.wikipedia.org/featured.xml"
settings:
  enabled: true
`,
	})
	scheduler := NewScheduler(cache, newMockIndexer(), &MockClient{}, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	defer scheduler.Stop()

	running := &countingTask{Task: NewTask(TaskTypeImportFeed, "featured"), done: make(chan struct{}, 4)}
	if err := scheduler.EnqueueTask(running); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	scheduler.enqueueDueTasks()
	if len(scheduler.taskQueue) != 1 {
		t.Fatalf("Expected due scan to skip the in-flight source, got %d queued", len(scheduler.taskQueue))
	}

	scheduler.executeTask(0, <-scheduler.taskQueue)
	scheduler.enqueueDueTasks()
	if len(scheduler.taskQueue) != 1 {
		t.Errorf("Expected source to be queued once its run finished, got %d queued", len(scheduler.taskQueue))
	}
}

func TestSchedulerTickPicksUpNewSources(t *testing.T) {
	dir := t.TempDir()
	cache := feed.NewSourceCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}
	scheduler := NewScheduler(cache, newMockIndexer(), &MockClient{}, feed.NewParser(), feed.NewFilterer(), time.Hour, 1)
	defer scheduler.Stop()

	source := `
type: search
site: "en.wikipedia.org"
query: "glaciers"
settings:
  enabled: true
`
	if err := os.WriteFile(filepath.Join(dir, "glaciers.yml"), []byte(source), 0644); err != nil {
		t.Fatal(err)
	}

	scheduler.tick()
	if len(scheduler.taskQueue) != 1 {
		t.Fatalf("Expected new source to be queued on the same tick, got %d queued", len(scheduler.taskQueue))
	}
	task := <-scheduler.taskQueue
	if task.GetType() != TaskTypeSearchSource || task.GetSourceName() != "glaciers" {
		t.Errorf("Unexpected task %s for %s", task.GetType(), task.GetSourceName())
	}
}

func TestTaskRetryCount(t *testing.T) {
	task := NewTask(TaskTypeImportFeed, "featured")
	if task.GetSourceName() != "featured" || task.GetType() != TaskTypeImportFeed {
		t.Errorf("Unexpected task identity: %s %s", task.GetSourceName(), task.GetType())
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}
}
