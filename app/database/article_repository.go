package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lysyi3m/article-index/app/article"
)

var _ article.Store = (*ArticleRepository)(nil)

// ArticleRepository handles database operations for articles
type ArticleRepository struct {
	db *DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

var articleColumns = []string{
	"id", "key", "display_title", "display_title_html", "wikidata_description", "snippet",
	"wikidata_id", "image_source", "original_image_width", "original_image_height", "thumbnail_url",
	"latitude", "longitude", "geo_dimension", "page_views", "viewed_date", "viewed_day", "saved_date",
	"created_at", "updated_at",
}

var predicateColumns = map[article.Field]string{
	article.FieldKey:        "key",
	article.FieldWikidataID: "wikidata_id",
}

// Insert stores a new article with default values under key
func (r *ArticleRepository) Insert(ctx context.Context, key string) (*article.Article, error) {
	now := time.Now().UTC()
	a := &article.Article{
		ID:        uuid.NewString(),
		Key:       key,
		PageViews: article.PageViews{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	query, args, err := sq.Insert("articles").
		Columns("id", "key", "created_at", "updated_at").
		Values(a.ID, a.Key, a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert article: %w", err)
	}

	return a, nil
}

// Query returns the articles matching predicate in insertion order
func (r *ArticleRepository) Query(ctx context.Context, predicate article.Predicate) ([]*article.Article, error) {
	column, ok := predicateColumns[predicate.Field]
	if !ok {
		return nil, fmt.Errorf("unsupported predicate field: %s", predicate.Field)
	}

	builder := sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{column: predicate.Value}).
		OrderBy("rowid")
	if predicate.Limit > 0 {
		builder = builder.Limit(uint64(predicate.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*article.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

// Save writes every field of the article back to its row
func (r *ArticleRepository) Save(ctx context.Context, a *article.Article) error {
	pageViews, err := json.Marshal(a.PageViews.ToStrings())
	if err != nil {
		return fmt.Errorf("failed to marshal page views: %w", err)
	}

	var latitude, longitude sql.NullFloat64
	if a.Coordinate != nil {
		latitude = sql.NullFloat64{Float64: a.Coordinate.Latitude, Valid: true}
		longitude = sql.NullFloat64{Float64: a.Coordinate.Longitude, Valid: true}
	}

	query, args, err := sq.Update("articles").
		SetMap(map[string]interface{}{
			"display_title":         a.DisplayTitle,
			"display_title_html":    a.DisplayTitleHTML,
			"wikidata_description":  nullString(a.WikidataDescription),
			"snippet":               nullString(a.Snippet),
			"wikidata_id":           nullString(a.WikidataID),
			"image_source":          nullString(a.ImageSource),
			"original_image_width":  a.OriginalImageWidth,
			"original_image_height": a.OriginalImageHeight,
			"thumbnail_url":         a.LegacyThumbnailURL(),
			"latitude":              latitude,
			"longitude":             longitude,
			"geo_dimension":         a.GeoDimension,
			"page_views":            string(pageViews),
			"viewed_date":           nullTime(a.ViewedDate),
			"viewed_day":            nullTime(a.ViewedDateWithoutTime),
			"saved_date":            nullTime(a.SavedDate),
			"updated_at":            a.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": a.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build article update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to save article: no row with id %s", a.ID)
	}

	return nil
}

// Count returns the total number of stored articles
func (r *ArticleRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func scanArticle(rows *sql.Rows) (*article.Article, error) {
	var a article.Article
	var description, snippet, wikidataID, imageSource sql.NullString
	var latitude, longitude sql.NullFloat64
	var pageViews, thumbnailURL string
	var viewedDate, viewedDay, savedDate sql.NullTime

	err := rows.Scan(
		&a.ID, &a.Key, &a.DisplayTitle, &a.DisplayTitleHTML, &description, &snippet,
		&wikidataID, &imageSource, &a.OriginalImageWidth, &a.OriginalImageHeight, &thumbnailURL,
		&latitude, &longitude, &a.GeoDimension, &pageViews, &viewedDate, &viewedDay, &savedDate,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan article row: %w", err)
	}

	a.WikidataDescription = stringPtr(description)
	a.Snippet = stringPtr(snippet)
	a.WikidataID = stringPtr(wikidataID)
	a.ImageSource = stringPtr(imageSource)
	a.SetLegacyThumbnailURL(thumbnailURL)
	a.ViewedDate = timePtr(viewedDate)
	a.ViewedDateWithoutTime = timePtr(viewedDay)
	a.SavedDate = timePtr(savedDate)

	if latitude.Valid && longitude.Valid {
		a.Coordinate = &article.Coordinate{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}

	raw := map[string]int64{}
	if err := json.Unmarshal([]byte(pageViews), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page views for article %s: %w", a.ID, err)
	}
	if a.PageViews, err = article.PageViewsFromStrings(raw); err != nil {
		return nil, fmt.Errorf("invalid page views for article %s: %w", a.ID, err)
	}

	return &a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
