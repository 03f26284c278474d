package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultRefreshInterval = 3600
	defaultTimeout         = 30
	defaultFeedMaxItems    = 100
	defaultSearchMaxItems  = 20
	maxSearchItems         = 50
)

type SourceCache struct {
	sourcesDir string
	cache      map[string]*Source
	mu         sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Source),
	}
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		sourceName := fileName[:len(fileName)-4]

		source, err := sc.LoadSource(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", sourceName, "type", source.Type, "enabled", source.Settings.Enabled, "refresh_interval", source.Settings.RefreshInterval)
	}

	return nil
}

func (sc *SourceCache) LoadSource(sourceName string) (*Source, error) {
	sourceFile := sc.getSourceFilePath(sourceName)
	source, err := sc.parseSource(sourceFile)
	if err != nil {
		return nil, err
	}

	source.Name = sourceName

	if err := sc.validateSource(source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", sourceFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[source.Name] = source

	return source, nil
}

func (sc *SourceCache) GetSource(sourceName string) (*Source, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	source, ok := sc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source with name '%s' not found", sourceName)
	}
	return source, nil
}

func (sc *SourceCache) GetSources() map[string]*Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	sourcesCopy := make(map[string]*Source, len(sc.cache))
	for k, v := range sc.cache {
		sourcesCopy[k] = v
	}
	return sourcesCopy
}

func (sc *SourceCache) GetEnabledSources() map[string]*Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	enabledSources := make(map[string]*Source)
	for k, v := range sc.cache {
		if v.Settings.Enabled {
			enabledSources[k] = v
		}
	}
	return enabledSources
}

func (sc *SourceCache) GetSourceCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func (sc *SourceCache) parseSource(sourceFile string) (*Source, error) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if source.Type == "" {
		source.Type = SourceTypeFeed
	}
	if source.Settings.RefreshInterval == 0 {
		source.Settings.RefreshInterval = defaultRefreshInterval
	}
	if source.Settings.Timeout == 0 {
		source.Settings.Timeout = defaultTimeout
	}
	if source.Settings.MaxItems == 0 {
		source.Settings.MaxItems = defaultFeedMaxItems
		if source.Type == SourceTypeSearch {
			source.Settings.MaxItems = defaultSearchMaxItems
		}
	}

	return &source, nil
}

func (sc *SourceCache) validateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}
	if source.Name == "" {
		return fmt.Errorf("source name is required")
	}

	switch source.Type {
	case SourceTypeFeed:
		if source.URL == "" {
			return fmt.Errorf("feed URL is required")
		}
	case SourceTypeSearch:
		if source.Site == "" {
			return fmt.Errorf("search site is required")
		}
		if source.Query == "" {
			return fmt.Errorf("search query is required")
		}
		if source.Settings.MaxItems > maxSearchItems {
			return fmt.Errorf("max items for search sources must not exceed %d", maxSearchItems)
		}
	default:
		return fmt.Errorf("unknown source type: %s", source.Type)
	}

	nonNegativeFields := map[string]int{
		"refresh interval": source.Settings.RefreshInterval,
		"max items":        source.Settings.MaxItems,
		"timeout":          source.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range source.Filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (sc *SourceCache) getSourceFilePath(sourceName string) string {
	return filepath.Join(sc.sourcesDir, sourceName+".yml")
}
