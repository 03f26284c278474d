package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/lysyi3m/article-index/app/article"
	"github.com/lysyi3m/article-index/app/network"
)

const (
	apiPath  = "/w/api.php"
	MaxLimit = 50
)

var searchProperties = []string{"description", "pageimages", "pageprops", "coordinates", "pageviews", "extracts"}

// Client talks to the MediaWiki action API of any wiki site.
type Client struct {
	httpClient *http.Client
	userAgent  string
	publisher  network.Publisher
}

// NewClient creates a client. publisher may be nil.
func NewClient(httpClient *http.Client, userAgent string, publisher network.Publisher) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		publisher:  publisher,
	}
}

// Search runs a full text search on site and returns the matching pages
// ordered by relevance. site is a host name such as "en.wikipedia.org" or
// an absolute base URL.
func (c *Client) Search(ctx context.Context, site, query string, limit int) ([]article.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, network.InvalidParametersError("search query is empty")
	}
	if limit < 1 || limit > MaxLimit {
		return nil, network.InvalidParametersError(fmt.Sprintf("search limit %d is outside 1..%d", limit, MaxLimit))
	}
	base, err := siteURL(site)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrnamespace", "0")
	params.Set("gsrlimit", strconv.Itoa(limit))
	params.Set("prop", network.JoinedPropertyParameters(searchProperties))
	params.Set("piprop", network.JoinedPropertyParameters([]string{"thumbnail", "original"}))
	params.Set("pithumbsize", strconv.Itoa(article.DefaultThumbnailWidth))
	params.Set("pilimit", strconv.Itoa(limit))
	params.Set("coprop", network.JoinedPropertyParameters([]string{"type", "dim"}))
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", "max")

	endpoint := *base
	endpoint.Path = apiPath
	endpoint.RawQuery = params.Encode()

	data, err := c.Get(ctx, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", base.Host, err)
	}

	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if apiErr := network.ErrorForAPIErrorObject(resp.Error); apiErr != nil {
		return nil, fmt.Errorf("failed to search %s: %w", base.Host, apiErr)
	}
	if resp.Query == nil {
		return []article.SearchResult{}, nil
	}

	results := make([]article.SearchResult, 0, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		if p.Missing || p.Title == "" {
			continue
		}
		results = append(results, p.searchResult(base))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	return results, nil
}

// Get fetches rawURL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	network.PostNetworkRequestBeganNotification(c.publisher, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func siteURL(site string) (*url.URL, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return nil, network.InvalidParametersError("site is empty")
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return nil, network.InvalidParametersError(fmt.Sprintf("invalid site %q", site))
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
