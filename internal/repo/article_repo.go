package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/playmate/server/internal/model"
)

type articleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates a new ArticleRepo instance
func NewArticleRepo(db *sql.DB) ArticleRepo {
	return &articleRepo{db: db}
}

// UpsertMany writes articles keyed by external_id inside one transaction
func (r *articleRepo) UpsertMany(ctx context.Context, articles []model.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO news_articles (external_id, title, summary, url, image_url, source, sport, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO UPDATE
		SET title = EXCLUDED.title, summary = EXCLUDED.summary, url = EXCLUDED.url,
		    image_url = EXCLUDED.image_url, source = EXCLUDED.source, sport = EXCLUDED.sport,
		    published_at = EXCLUDED.published_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ExternalID, a.Title, a.Summary, a.URL, a.ImageURL, a.Source, a.Sport, a.PublishedAt); err != nil {
			return 0, fmt.Errorf("upsert article %q: %w", a.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(articles), nil
}

// List returns articles newest first, optionally filtered by sport (case-insensitive)
func (r *articleRepo) List(ctx context.Context, sport string, limit, offset int) ([]model.Article, int, error) {
	where := "TRUE"
	args := []any{}
	if s := strings.TrimSpace(sport); s != "" {
		where = "lower(sport) = $1"
		args = append(args, strings.ToLower(s))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_articles WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, external_id, title, summary, url, image_url, source, sport, published_at, created_at
		FROM news_articles
		WHERE %s
		ORDER BY published_at DESC, id
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := []model.Article{}
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Title, &a.Summary, &a.URL, &a.ImageURL, &a.Source, &a.Sport, &a.PublishedAt, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate articles: %w", err)
	}
	return out, total, nil
}
