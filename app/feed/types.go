package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Language        string
	FeedPublishedAt *time.Time
}

// Source configuration types

type SourceType string

const (
	SourceTypeFeed   SourceType = "feed"
	SourceTypeSearch SourceType = "search"
)

type Source struct {
	Name     string         // Derived from filename (without .yml extension)
	Type     SourceType     `yaml:"type"`
	URL      string         `yaml:"url"`   // feed sources
	Site     string         `yaml:"site"`  // search sources
	Query    string         `yaml:"query"` // search sources
	Settings SourceSettings `yaml:"settings"`
	Filters  []SourceFilter `yaml:"filters"`
}

type SourceSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"` // seconds
}

type SourceFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (s *Source) RefreshInterval() time.Duration {
	return time.Duration(s.Settings.RefreshInterval) * time.Second
}

func (s *Source) Timeout() time.Duration {
	if s.Settings.Timeout <= 0 {
		return defaultTimeout * time.Second
	}
	return time.Duration(s.Settings.Timeout) * time.Second
}
