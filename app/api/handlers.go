package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/article-index/app/article"
	"github.com/lysyi3m/article-index/app/feed"
	"github.com/lysyi3m/article-index/app/network"
	"github.com/lysyi3m/article-index/app/tasks"
)

func NewHandler(index *article.Index, searcher Searcher, sourceCache *feed.SourceCache, scheduler SourceScheduler) *Handler {
	return &Handler{
		index:       index,
		searcher:    searcher,
		sourceCache: sourceCache,
		scheduler:   scheduler,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}
	status := http.StatusOK

	if articleCount, err := h.index.Count(c.Request.Context()); err == nil {
		health["articles"] = articleCount
	} else {
		slog.Error("Database error", "operation", "count_articles", "error", err)
		health["status"] = "degraded"
		health["error"] = "Storage unavailable"
		status = http.StatusServiceUnavailable
	}

	health["loaded_sources"] = h.sourceCache.GetSourceCount()

	c.JSON(status, health)
}

func (h *Handler) GetArticle(c *gin.Context) {
	width, ok := imageWidth(c)
	if !ok {
		return
	}

	rawURL, key := c.Query("url"), c.Query("key")

	var a *article.Article
	var err error
	switch {
	case rawURL != "":
		a, err = h.index.FetchByURL(c.Request.Context(), rawURL)
	case key != "":
		a, err = h.index.FetchByKey(c.Request.Context(), key)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url or key parameter"})
		return
	}
	if err != nil {
		writeError(c, "get_article", err)
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, newArticleView(a, width))
}

func (h *Handler) GetAllArticles(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing key parameter"})
		return
	}

	articles, err := h.index.FetchAllByKey(c.Request.Context(), key)
	if err != nil {
		writeError(c, "get_all_articles", err)
		return
	}

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, newArticleView(a, DefaultImageWidth))
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": views,
		"total":    len(views),
	})
}

func (h *Handler) GetArticleByWikidataID(c *gin.Context) {
	id := c.Param("id")

	a, err := h.index.FetchByWikidataID(c.Request.Context(), id)
	if err != nil {
		writeError(c, "get_article_by_wikidata_id", err)
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, newArticleView(a, DefaultImageWidth))
}

func (h *Handler) PutArticle(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	var req putArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.SearchResult != nil && req.FeedPreview != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide either search_result or feed_preview, not both"})
		return
	}

	pageViews, err := article.PageViewsFromStrings(req.PageViews)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_views", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var a *article.Article
	switch {
	case req.SearchResult != nil:
		req.SearchResult.PageViews = pageViews
		a, err = h.index.FetchOrCreateByURLWithSearchResult(ctx, rawURL, req.SearchResult)
	case req.FeedPreview != nil || len(pageViews) > 0:
		a, err = h.index.FetchOrCreateByURLWithFeedPreview(ctx, rawURL, req.FeedPreview, pageViews)
	default:
		a, err = h.index.FetchOrCreateByURL(ctx, rawURL)
	}
	if err != nil {
		writeError(c, "put_article", err)
		return
	}
	if a == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL does not identify an article"})
		return
	}

	c.JSON(http.StatusOK, newArticleView(a, DefaultImageWidth))
}

func (h *Handler) PostArticleAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	action, ok := article.ParseAction(req.Action)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown action", "action": req.Action})
		return
	}

	key, ok := h.index.Key(req.URL)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL does not identify an article"})
		return
	}

	a, err := h.index.ApplyAction(c.Request.Context(), key, action)
	if err != nil {
		writeError(c, "article_action", err)
		return
	}

	slog.Debug("Article action applied", "key", a.Key, "action", action.String())

	c.JSON(http.StatusOK, newArticleView(a, DefaultImageWidth))
}

func (h *Handler) GetArticleImage(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}
	width, ok := imageWidth(c)
	if !ok {
		return
	}

	a, err := h.index.FetchByURL(c.Request.Context(), rawURL)
	if err != nil {
		writeError(c, "get_article_image", err)
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	u := a.ImageURLForWidth(width)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article has no image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   a.Key,
		"width": width,
		"url":   u.String(),
	})
}

func (h *Handler) PostSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	results, err := h.searcher.Search(ctx, req.Site, req.Query, req.Limit)
	if err != nil {
		writeError(c, "search", err)
		return
	}

	views := make([]articleView, 0, len(results))
	for i := range results {
		a, err := h.index.FetchOrCreateByURLWithSearchResult(ctx, results[i].URL, &results[i])
		if err != nil {
			writeError(c, "search", err)
			return
		}
		if a == nil {
			slog.Debug("Search result is not an article URL, skipping", "url", results[i].URL)
			continue
		}
		views = append(views, newArticleView(a, DefaultImageWidth))
	}

	c.JSON(http.StatusOK, gin.H{
		"results": views,
		"total":   len(views),
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	sources := h.sourceCache.GetSources()

	list := make([]map[string]interface{}, 0, len(sources))
	for _, source := range sources {
		list = append(list, map[string]interface{}{
			"name":             source.Name,
			"type":             source.Type,
			"url":              source.URL,
			"site":             source.Site,
			"query":            source.Query,
			"enabled":          source.Settings.Enabled,
			"max_items":        source.Settings.MaxItems,
			"refresh_interval": source.RefreshInterval().String(),
			"timeout":          source.Timeout().String(),
			"filters":          len(source.Filters),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) RefreshSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.sourceCache.GetSource(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	source, err := h.sourceCache.LoadSource(name)
	if err != nil {
		slog.Error("Error reloading source", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload source",
			"details": err.Error(),
		})
		return
	}

	task := h.scheduler.NewSourceTask(source)
	if task == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported source type", "type": source.Type})
		return
	}
	if err := h.scheduler.EnqueueTask(task); errors.Is(err, tasks.ErrSourceInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": "Source refresh already in progress", "source": name})
		return
	} else if err != nil {
		slog.Error("Error enqueueing source task", "source", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue source task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"source":  name,
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

// imageWidth reads the width query parameter, writing a 400 response when
// it is not a positive integer.
func imageWidth(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("width"))
	if raw == "" {
		return DefaultImageWidth, true
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid width parameter"})
		return 0, false
	}
	return width, true
}

func writeError(c *gin.Context, operation string, err error) {
	var netErr *network.Error
	switch {
	case errors.Is(err, network.ErrInvalidParameters):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parameters", "details": err.Error()})
	case errors.As(err, &netErr) && netErr.Kind == network.KindAPIError:
		slog.Warn("Upstream API error", "operation", operation, "code", netErr.Code, "info", netErr.Info)
		c.JSON(http.StatusBadGateway, gin.H{"error": netErr.Info, "code": netErr.Code})
	case errors.Is(err, article.ErrStorage):
		slog.Error("Database error", "operation", operation, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable, try again later", "retryable": true})
	default:
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
