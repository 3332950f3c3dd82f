package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ancile/internal/news"
)

const articleColumns = "id, source_fingerprint, category, title, body, summary, caption, keywords_json, source_url, source_name, word_count, relevance_score, status, error_message, created_at, updated_at"

// CreateArticle persists a new article and assigns its identifier.
func (s *Store) CreateArticle(ctx context.Context, article *news.Article) error {
	if article == nil {
		return errors.New("article is nil")
	}
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	keywordsJSON, err := marshalKeywords(article.Keywords)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (
            source_fingerprint, category, title, body, summary, caption,
            keywords_json, source_url, source_name, word_count, relevance_score,
            status, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.SourceFingerprint,
		string(article.Category),
		article.Title,
		article.Body,
		nullableString(article.Summary),
		nullableString(article.Caption),
		keywordsJSON,
		nullableString(article.SourceURL),
		nullableString(article.SourceName),
		article.WordCount,
		article.RelevanceScore,
		string(article.Status),
		nullableString(article.ErrorMessage),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	article.ID = id
	return nil
}

// SaveArticleWithFingerprint persists the article and its dedup fingerprint in
// one transaction, so the process terminating mid-run can never leave a
// fingerprint without the row it accounts for. When the fingerprint already
// exists nothing is written and inserted is false; the caller that committed
// first owns the item.
func (s *Store) SaveArticleWithFingerprint(ctx context.Context, article *news.Article, fingerprint, sourceURL string) (bool, error) {
	if article == nil {
		return false, errors.New("article is nil")
	}
	if fingerprint == "" {
		return false, errors.New("fingerprint must not be empty")
	}
	now := time.Now().UTC()

	keywordsJSON, err := marshalKeywords(article.Keywords)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO fingerprints (fingerprint, source_url, first_seen_at)
         VALUES (?, ?, ?)
         ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint,
		nullableString(sourceURL),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("record fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO articles (
            source_fingerprint, category, title, body, summary, caption,
            keywords_json, source_url, source_name, word_count, relevance_score,
            status, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.SourceFingerprint,
		string(article.Category),
		article.Title,
		article.Body,
		nullableString(article.Summary),
		nullableString(article.Caption),
		keywordsJSON,
		nullableString(article.SourceURL),
		nullableString(article.SourceName),
		article.WordCount,
		article.RelevanceScore,
		string(article.Status),
		nullableString(article.ErrorMessage),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit save: %w", err)
	}
	article.ID = id
	article.CreatedAt = now
	article.UpdatedAt = now
	return true, nil
}

// UpdateArticle persists status and error changes to an existing article.
func (s *Store) UpdateArticle(ctx context.Context, article *news.Article) error {
	if article == nil {
		return errors.New("article is nil")
	}
	article.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(article.Status),
		nullableString(article.ErrorMessage),
		article.UpdatedAt.Format(time.RFC3339Nano),
		article.ID,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	return nil
}

// GetArticle fetches an article by identifier, or nil when absent.
func (s *Store) GetArticle(ctx context.Context, id int64) (*news.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return article, nil
}

// ArticlesByStatus returns articles matching a status ordered by creation.
func (s *Store) ArticlesByStatus(ctx context.Context, status news.ArticleStatus) ([]*news.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE status = ? ORDER BY created_at`, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("query articles by status: %w", err)
	}
	defer rows.Close()

	var articles []*news.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// ArticleStats returns a count of articles grouped by status.
func (s *Store) ArticleStats(ctx context.Context) (map[news.ArticleStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM articles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("article stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[news.ArticleStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[news.ArticleStatus(status)] = count
	}
	return stats, rows.Err()
}

func scanArticle(scanner interface{ Scan(dest ...any) error }) (*news.Article, error) {
	var (
		id           int64
		fingerprint  string
		category     string
		title        string
		body         string
		summary      sql.NullString
		caption      sql.NullString
		keywordsJSON sql.NullString
		sourceURL    sql.NullString
		sourceName   sql.NullString
		wordCount    int
		relevance    float64
		status       string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&fingerprint,
		&category,
		&title,
		&body,
		&summary,
		&caption,
		&keywordsJSON,
		&sourceURL,
		&sourceName,
		&wordCount,
		&relevance,
		&status,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	article := &news.Article{
		ID:                id,
		SourceFingerprint: fingerprint,
		Category:          news.Category(category),
		Title:             title,
		Body:              body,
		Summary:           summary.String,
		Caption:           caption.String,
		SourceURL:         sourceURL.String,
		SourceName:        sourceName.String,
		WordCount:         wordCount,
		RelevanceScore:    relevance,
		Status:            news.ArticleStatus(status),
		ErrorMessage:      errorMessage.String,
	}
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &article.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		article.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		article.UpdatedAt = updated
	}
	return article, nil
}

func marshalKeywords(keywords []string) (any, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	return string(encoded), nil
}
